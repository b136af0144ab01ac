// Package cursor persists the last durably-processed stream position.
//
// Exactly one cursor exists per stream endpoint. Writes go to a temp file
// which is fsynced and renamed over the committed value, so a crash mid-write
// leaves the previous cursor intact.
package cursor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// FileStore persists the cursor as a single decimal value in a file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a cursor store backed by the file at path.
// The parent directory must exist.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("cursor path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cursor directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Load reads the committed cursor. Returns (0, false, nil) when no cursor
// has ever been written.
func (s *FileStore) Load() (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read cursor: %w", err)
	}

	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return 0, false, nil
	}

	seq, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse cursor %q: %w", raw, err)
	}
	return seq, true, nil
}

// Save commits a new cursor position. The previous value is only replaced
// once the new one is fully on disk.
func (s *FileStore) Save(seq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open cursor temp file: %w", err)
	}

	if _, err := f.WriteString(strconv.FormatInt(seq, 10) + "\n"); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write cursor: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync cursor: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close cursor temp file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit cursor: %w", err)
	}
	return nil
}
