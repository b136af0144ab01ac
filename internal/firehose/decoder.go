// Package firehose subscribes to a labeler's label stream: it owns the
// long-lived websocket connection, replay-from-cursor, reconnect backoff,
// and the binary frame decoding that turns stream frames into label events.
package firehose

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/skywatch-app/skywatch-server/internal/domain"
	"github.com/skywatch-app/skywatch-server/internal/errors"
)

// Frame ops per the event-stream framing: 1 is a regular typed message,
// -1 is a terminal error frame.
const (
	opMessage = 1
	opError   = -1
)

// typeLabels is the only label-carrying frame type on this stream.
const typeLabels = "#labels"

// frameHeader is the first CBOR value of every frame.
type frameHeader struct {
	Op   int64  `cbor:"op"`
	Type string `cbor:"t"`
}

// labelsBody is the second CBOR value of a #labels frame.
type labelsBody struct {
	Seq    int64          `cbor:"seq"`
	Labels []domain.Label `cbor:"labels"`
}

// errorBody is the second CBOR value of an error frame.
type errorBody struct {
	Error   string `cbor:"error"`
	Message string `cbor:"message"`
}

// Message is a decoded label-carrying frame. Frames of other types decode to
// an empty Message (zero labels, no sequence) rather than an error.
type Message struct {
	Seq    int64
	HasSeq bool
	Labels []domain.Label
}

// StreamError is a terminal error frame sent by the remote before it closes
// the connection (e.g. FutureCursor).
type StreamError struct {
	Name    string
	Message string
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("stream error %s: %s", e.Name, e.Message)
	}
	return fmt.Sprintf("stream error %s", e.Name)
}

// DecodeFrame decodes one binary stream frame: a CBOR header followed by a
// CBOR body. A malformed frame yields a decode error the caller logs and
// drops; it never terminates the connection.
func DecodeFrame(frame []byte) (*Message, error) {
	dec := cbor.NewDecoder(bytes.NewReader(frame))

	var header frameHeader
	if err := dec.Decode(&header); err != nil {
		return nil, errors.Wrap(err, errors.CodeDecode, "decode frame header")
	}

	switch header.Op {
	case opError:
		var body errorBody
		if err := dec.Decode(&body); err != nil {
			return nil, errors.Wrap(err, errors.CodeDecode, "decode error frame body")
		}
		return nil, &StreamError{Name: body.Error, Message: body.Message}

	case opMessage:
		if header.Type != typeLabels {
			// Not a label-carrying frame type; yields zero events.
			return &Message{}, nil
		}

		var body labelsBody
		if err := dec.Decode(&body); err != nil {
			return nil, errors.Wrap(err, errors.CodeDecode, "decode labels frame body")
		}
		return &Message{
			Seq:    body.Seq,
			HasSeq: true,
			Labels: body.Labels,
		}, nil

	default:
		return nil, errors.Decodef("unknown frame op %d", header.Op)
	}
}
