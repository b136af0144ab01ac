// Package domain defines the core types shared across the ingestion pipeline:
// labels from the stream, subjects they point at, and the enrichment records
// written to the store.
package domain

import (
	"fmt"
	"time"
)

// MaxLabelValueLength is the longest label value accepted off the wire.
const MaxLabelValueLength = 128

// Label is the wire shape of a single label as carried by the
// com.atproto.label.subscribeLabels stream. Field names follow the lexicon.
type Label struct {
	Version   *int64  `json:"ver,omitempty" cbor:"ver,omitempty"`
	Source    string  `json:"src" cbor:"src"`
	URI       string  `json:"uri" cbor:"uri"`
	CID       *string `json:"cid,omitempty" cbor:"cid,omitempty"`
	Value     string  `json:"val" cbor:"val"`
	Negated   bool    `json:"neg,omitempty" cbor:"neg,omitempty"`
	CreatedAt string  `json:"cts" cbor:"cts"`
	ExpiresAt *string `json:"exp,omitempty" cbor:"exp,omitempty"`
	Signature []byte  `json:"sig,omitempty" cbor:"sig,omitempty"`
}

// Validate checks the required wire fields.
func (l *Label) Validate() error {
	if l.Source == "" {
		return fmt.Errorf("label missing src")
	}
	if l.URI == "" {
		return fmt.Errorf("label missing uri")
	}
	if l.Value == "" {
		return fmt.Errorf("label missing val")
	}
	if len(l.Value) > MaxLabelValueLength {
		return fmt.Errorf("label val exceeds %d chars", MaxLabelValueLength)
	}
	if l.CreatedAt == "" {
		return fmt.Errorf("label missing cts")
	}
	if _, err := time.Parse(time.RFC3339, l.CreatedAt); err != nil {
		return fmt.Errorf("label cts %q: %w", l.CreatedAt, err)
	}
	return nil
}

// LabelEvent is the durable form of a Label. It is immutable once written;
// (URI, Value, CreatedAt) identifies the event, so redelivery upserts the
// same row instead of creating a duplicate.
type LabelEvent struct {
	Source     string     `json:"src"`
	URI        string     `json:"uri"`
	CID        string     `json:"cid,omitempty"`
	Value      string     `json:"val"`
	Negated    bool       `json:"neg"`
	CreatedAt  time.Time  `json:"cts"`
	ExpiresAt  *time.Time `json:"exp,omitempty"`
	StreamSeq  int64      `json:"streamSeq"`
	ReceivedAt time.Time  `json:"receivedAt"`
}

// EventFromLabel converts a validated wire label into its durable form.
// seq is the stream sequence of the frame that carried it.
func EventFromLabel(l *Label, seq int64, received time.Time) (*LabelEvent, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}

	cts, err := time.Parse(time.RFC3339, l.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse cts: %w", err)
	}

	ev := &LabelEvent{
		Source:     l.Source,
		URI:        l.URI,
		Value:      l.Value,
		Negated:    l.Negated,
		CreatedAt:  cts,
		StreamSeq:  seq,
		ReceivedAt: received,
	}
	if l.CID != nil {
		ev.CID = *l.CID
	}
	if l.ExpiresAt != nil {
		exp, err := time.Parse(time.RFC3339, *l.ExpiresAt)
		if err != nil {
			return nil, fmt.Errorf("parse exp: %w", err)
		}
		ev.ExpiresAt = &exp
	}
	return ev, nil
}

// Key returns the identity triple used as the storage key.
func (e *LabelEvent) Key() string {
	return e.URI + "|" + e.Value + "|" + e.CreatedAt.UTC().Format(time.RFC3339Nano)
}
