package store

import (
	"context"

	"github.com/skywatch-app/skywatch-server/internal/domain"
)

// PutLabelEvent upserts a label event under its (uri, val, cts) identity.
// Redelivery of the same triple overwrites the row with identical content,
// never creating a duplicate.
func (s *Store) PutLabelEvent(ctx context.Context, ev *domain.LabelEvent) error {
	return s.Labels.Upsert(ctx, ev.Key(), ev)
}

// HasLabelEvent reports whether the triple is already stored.
func (s *Store) HasLabelEvent(ctx context.Context, ev *domain.LabelEvent) (bool, error) {
	return s.Labels.Exists(ctx, ev.Key())
}

// GetContent looks up a content record by AT-URI.
func (s *Store) GetContent(ctx context.Context, uri string) (*domain.ContentRecord, error) {
	return s.Contents.Get(ctx, uri)
}

// PutContent upserts a content record keyed by its AT-URI.
func (s *Store) PutContent(ctx context.Context, rec *domain.ContentRecord) error {
	return s.Contents.Upsert(ctx, rec.URI, rec)
}

// GetAccount looks up an account record by DID.
func (s *Store) GetAccount(ctx context.Context, did string) (*domain.AccountRecord, error) {
	return s.Accounts.Get(ctx, did)
}

// PutAccount upserts an account record keyed by its DID.
func (s *Store) PutAccount(ctx context.Context, rec *domain.AccountRecord) error {
	return s.Accounts.Upsert(ctx, rec.DID, rec)
}

// blobKey scopes a blob record to the subject that referenced it.
func blobKey(ownerDID, cid string) string {
	return ownerDID + "|" + cid
}

// GetBlob looks up the blob record for one owner and cid.
func (s *Store) GetBlob(ctx context.Context, ownerDID, cid string) (*domain.BlobRecord, error) {
	return s.Blobs.Get(ctx, blobKey(ownerDID, cid))
}

// PutBlob upserts a blob record scoped to its owning subject.
func (s *Store) PutBlob(ctx context.Context, rec *domain.BlobRecord) error {
	return s.Blobs.Upsert(ctx, blobKey(rec.OwnerDID, rec.CID), rec)
}

// FindBlobByCID returns any stored blob record for the content identifier,
// regardless of owner. Content addressing guarantees its fingerprints match
// every other record for the same cid.
func (s *Store) FindBlobByCID(ctx context.Context, cid string) (*domain.BlobRecord, error) {
	return s.Blobs.GetByIndex(ctx, "cid", cid)
}
