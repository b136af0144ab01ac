// Package storage persists and retrieves blob bytes by content identifier.
// Two backends exist: a local filesystem directory and a remote S3 bucket.
package storage

import (
	"context"

	"github.com/skywatch-app/skywatch-server/internal/errors"
)

// Backend stores blob bytes under their content identifier and returns a
// locator that is recorded alongside the blob's fingerprints.
type Backend interface {
	// Put writes data under cid and returns the storage locator.
	// Writing the same cid twice is allowed and overwrites in place;
	// content addressing makes that a no-op in practice.
	Put(ctx context.Context, cid, mimeType string, data []byte) (string, error)
	// Get retrieves previously stored bytes by cid.
	Get(ctx context.Context, cid string) ([]byte, error)
}

// ErrNotStored is returned by Get when no blob exists for the cid.
var ErrNotStored = errors.NotFound("blob not in storage")
