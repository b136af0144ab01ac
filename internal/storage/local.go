package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Local stores blobs on the local filesystem under {basePath}/blobs/.
// Files are sharded by the first two characters of the cid to keep
// directory sizes sane. Thread-safe for concurrent operations.
type Local struct {
	basePath string
	mu       sync.RWMutex // Protects file operations
}

// NewLocal creates a Local backend rooted at basePath.
func NewLocal(basePath string) (*Local, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	storagePath := filepath.Join(basePath, "blobs")

	// Create directory if it doesn't exist.
	if err := os.MkdirAll(storagePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blobs directory: %w", err)
	}

	return &Local{basePath: storagePath}, nil
}

// Put writes blob data to disk and returns a file:// locator.
func (l *Local) Put(_ context.Context, cid, _ string, data []byte) (string, error) {
	if cid == "" {
		return "", fmt.Errorf("cid cannot be empty")
	}
	if len(data) == 0 {
		return "", fmt.Errorf("blob data cannot be empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	path := l.path(cid)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create shard directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write blob file: %w", err)
	}

	return "file://" + path, nil
}

// Get retrieves blob data from disk.
func (l *Local) Get(_ context.Context, cid string) ([]byte, error) {
	if cid == "" {
		return nil, fmt.Errorf("cid cannot be empty")
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	data, err := os.ReadFile(l.path(cid))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotStored
		}
		return nil, fmt.Errorf("failed to read blob file: %w", err)
	}

	return data, nil
}

// path returns the sharded on-disk location for a cid.
func (l *Local) path(cid string) string {
	shard := cid
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return filepath.Join(l.basePath, shard, cid)
}
