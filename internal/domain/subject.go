package domain

import (
	"fmt"
	"strings"
)

// SubjectKind distinguishes what a label's uri points at.
type SubjectKind int

const (
	// SubjectUnknown is a uri that is neither a DID nor a full AT-URI.
	SubjectUnknown SubjectKind = iota
	// SubjectAccount is a bare DID (the label applies to the account).
	SubjectAccount
	// SubjectContent is a three-segment AT-URI (the label applies to a record).
	SubjectContent
)

// String returns a short name for logging.
func (k SubjectKind) String() string {
	switch k {
	case SubjectAccount:
		return "account"
	case SubjectContent:
		return "content"
	default:
		return "unknown"
	}
}

// Subject is a parsed label target. For content subjects all four fields are
// set; for account subjects only DID is.
type Subject struct {
	Kind       SubjectKind
	DID        string
	Collection string
	RecordKey  string
	URI        string // original uri for content subjects
}

// ParseSubject classifies a label uri. A bare "did:..." identifier is an
// account subject; "at://did/collection/rkey" is a content subject.
func ParseSubject(uri string) (Subject, error) {
	if strings.HasPrefix(uri, "did:") {
		return Subject{Kind: SubjectAccount, DID: uri}, nil
	}

	rest, ok := strings.CutPrefix(uri, "at://")
	if !ok {
		return Subject{}, fmt.Errorf("unrecognized subject uri %q", uri)
	}

	parts := strings.Split(rest, "/")
	switch len(parts) {
	case 1:
		// at://did with no path is still an account reference.
		if !strings.HasPrefix(parts[0], "did:") {
			return Subject{}, fmt.Errorf("subject authority %q is not a did", parts[0])
		}
		return Subject{Kind: SubjectAccount, DID: parts[0]}, nil
	case 3:
		if !strings.HasPrefix(parts[0], "did:") {
			return Subject{}, fmt.Errorf("subject authority %q is not a did", parts[0])
		}
		if parts[1] == "" || parts[2] == "" {
			return Subject{}, fmt.Errorf("subject uri %q has empty path segment", uri)
		}
		return Subject{
			Kind:       SubjectContent,
			DID:        parts[0],
			Collection: parts[1],
			RecordKey:  parts[2],
			URI:        uri,
		}, nil
	default:
		return Subject{}, fmt.Errorf("subject uri %q has %d path segments", uri, len(parts))
	}
}

// ID returns the identity the hydration pipeline keys on: the full AT-URI for
// content subjects, the DID for account subjects.
func (s Subject) ID() string {
	if s.Kind == SubjectContent {
		return s.URI
	}
	return s.DID
}
