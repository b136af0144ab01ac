package domain

import "time"

// BlobRef points at a binary referenced by a fetched record.
type BlobRef struct {
	CID      string `json:"cid"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size,omitempty"`
	Alt      string `json:"alt,omitempty"`
}

// ContentRecord is the hydrated form of a content subject (typically a post).
type ContentRecord struct {
	URI        string    `json:"uri"`
	DID        string    `json:"did"`
	Collection string    `json:"collection"`
	RecordKey  string    `json:"recordKey"`
	CID        string    `json:"cid,omitempty"`

	Text      string    `json:"text,omitempty"`
	Langs     []string  `json:"langs,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Links     []string  `json:"links,omitempty"`
	IsReply   bool      `json:"isReply,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`

	Blobs []BlobRef `json:"blobs,omitempty"`

	HydratedAt time.Time `json:"hydratedAt"`
	// NotFound marks a subject whose record was gone at hydration time.
	// The row still exists so the dispatcher never retries it.
	NotFound bool `json:"notFound,omitempty"`
}

// AccountRecord is the hydrated form of an account subject.
//
// The *Checked markers distinguish "looked up and confirmed absent" from
// "never looked up": only the latter makes the record eligible for a
// backfill pass.
type AccountRecord struct {
	DID         string `json:"did"`
	Handle      string `json:"handle,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Description string `json:"description,omitempty"`

	Avatar *BlobRef `json:"avatar,omitempty"`
	Banner *BlobRef `json:"banner,omitempty"`

	HandleChecked bool `json:"handleChecked"`
	AvatarChecked bool `json:"avatarChecked"`

	HydratedAt time.Time `json:"hydratedAt"`
	NotFound   bool      `json:"notFound,omitempty"`
}

// Complete reports whether every optional field has either a value or a
// checked-absent marker, i.e. nothing is left to backfill.
func (a *AccountRecord) Complete() bool {
	if a.NotFound {
		return true
	}
	return a.HandleChecked && a.AvatarChecked
}

// BlobRecord is the durable result of processing one blob reference, scoped
// to the subject that referenced it. Two records for the same CID always
// carry identical fingerprints (content addressing).
type BlobRecord struct {
	OwnerDID string `json:"ownerDid"`
	CID      string `json:"cid"`
	MimeType string `json:"mimeType,omitempty"`

	Sha256   string `json:"sha256"`
	Blurhash string `json:"blurhash,omitempty"`

	// StorageLocator is set only when downloads were authorized.
	StorageLocator string `json:"storageLocator,omitempty"`

	Size        int64     `json:"size,omitempty"`
	ProcessedAt time.Time `json:"processedAt"`
}

// TaskKind identifies which hydrator a dispatcher task runs.
type TaskKind int

const (
	// TaskContent hydrates a content subject (post record).
	TaskContent TaskKind = iota
	// TaskAccount hydrates an account subject (profile + handle).
	TaskAccount
)

// String returns a short name for logging.
func (k TaskKind) String() string {
	if k == TaskAccount {
		return "account"
	}
	return "content"
}

// Task is one unit of hydration work. At most one task with a given
// (Kind, Subject) may be queued or in flight at any time.
type Task struct {
	Kind    TaskKind
	Subject Subject
}

// TaskForSubject maps a parsed subject to its hydration task.
func TaskForSubject(s Subject) Task {
	if s.Kind == SubjectContent {
		return Task{Kind: TaskContent, Subject: s}
	}
	return Task{Kind: TaskAccount, Subject: s}
}

// Key returns the dedup identity of the task.
func (t Task) Key() string {
	return t.Kind.String() + "|" + t.Subject.ID()
}
