package blob

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skywatch-app/skywatch-server/internal/domain"
	"github.com/skywatch-app/skywatch-server/internal/errors"
	"github.com/skywatch-app/skywatch-server/internal/storage"
	"github.com/skywatch-app/skywatch-server/internal/store"
)

type fakeFetcher struct {
	data  map[string][]byte
	err   error
	calls atomic.Int32
	hosts []string
}

func (f *fakeFetcher) GetBlob(ctx context.Context, host, did, cid string) ([]byte, error) {
	f.calls.Add(1)
	f.hosts = append(f.hosts, host)
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.data[cid]
	if !ok {
		return nil, errors.NotFoundf("no blob %s", cid)
	}
	return data, nil
}

type fakeResolver struct {
	host string
	err  error
}

func (r *fakeResolver) ResolvePDS(ctx context.Context, did string) (string, error) {
	return r.host, r.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newBlobStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProcessor_FingerprintsWithoutDownload(t *testing.T) {
	s := newBlobStore(t)
	baseDir := t.TempDir()
	backend, err := storage.NewLocal(baseDir)
	require.NoError(t, err)

	payload := []byte("raw blob bytes")
	fetcher := &fakeFetcher{data: map[string][]byte{"bafyblob1": payload}}
	p := NewProcessor(Config{}, fetcher, &fakeResolver{host: "https://pds.example.com"}, backend, s, testLogger())

	ref := domain.BlobRef{CID: "bafyblob1", MimeType: "application/octet-stream", Size: int64(len(payload))}
	require.NoError(t, p.Process(context.Background(), "did:plc:abc", ref))

	rec, err := s.GetBlob(context.Background(), "did:plc:abc", "bafyblob1")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.Sha256)
	assert.Empty(t, rec.Blurhash)
	assert.Empty(t, rec.StorageLocator, "no bytes are kept without authorization")
	assert.Equal(t, int64(len(payload)), rec.Size)

	assert.Equal(t, []string{"https://pds.example.com"}, fetcher.hosts)

	// The backend directory stays empty.
	var files []string
	require.NoError(t, filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			files = append(files, path)
		}
		return err
	}))
	assert.Empty(t, files)
}

func TestProcessor_DownloadEnabledStoresBytes(t *testing.T) {
	s := newBlobStore(t)
	backend, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	payload := []byte("stored blob bytes")
	fetcher := &fakeFetcher{data: map[string][]byte{"bafyblob2": payload}}
	p := NewProcessor(Config{DownloadEnabled: true}, fetcher, &fakeResolver{host: "https://pds.example.com"}, backend, s, testLogger())

	require.NoError(t, p.Process(context.Background(), "did:plc:abc", domain.BlobRef{CID: "bafyblob2", MimeType: "text/plain"}))

	rec, err := s.GetBlob(context.Background(), "did:plc:abc", "bafyblob2")
	require.NoError(t, err)
	require.NotEmpty(t, rec.StorageLocator)

	got, err := backend.Get(context.Background(), rec.StorageLocator)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestProcessor_DedupAcrossOwners(t *testing.T) {
	s := newBlobStore(t)
	backend, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	fetcher := &fakeFetcher{data: map[string][]byte{"bafyshared": []byte("shared bytes")}}
	p := NewProcessor(Config{}, fetcher, &fakeResolver{host: "https://pds.example.com"}, backend, s, testLogger())

	ref := domain.BlobRef{CID: "bafyshared", MimeType: "text/plain"}
	require.NoError(t, p.Process(context.Background(), "did:plc:first", ref))
	require.NoError(t, p.Process(context.Background(), "did:plc:second", ref))

	assert.Equal(t, int32(1), fetcher.calls.Load(), "known content is never fetched twice")

	first, err := s.GetBlob(context.Background(), "did:plc:first", "bafyshared")
	require.NoError(t, err)
	second, err := s.GetBlob(context.Background(), "did:plc:second", "bafyshared")
	require.NoError(t, err)
	assert.Equal(t, first.Sha256, second.Sha256)
}

func TestProcessor_DedupSurvivesRestart(t *testing.T) {
	s := newBlobStore(t)
	backend, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	resolver := &fakeResolver{host: "https://pds.example.com"}

	fetcher := &fakeFetcher{data: map[string][]byte{"bafydurable": []byte("durable bytes")}}
	first := NewProcessor(Config{}, fetcher, resolver, backend, s, testLogger())
	require.NoError(t, first.Process(context.Background(), "did:plc:first", domain.BlobRef{CID: "bafydurable", MimeType: "text/plain"}))

	// A fresh processor has an empty in-process cache but the same store.
	coldFetcher := &fakeFetcher{}
	second := NewProcessor(Config{}, coldFetcher, resolver, backend, s, testLogger())
	require.NoError(t, second.Process(context.Background(), "did:plc:second", domain.BlobRef{CID: "bafydurable", MimeType: "text/plain"}))

	assert.Equal(t, int32(0), coldFetcher.calls.Load())

	rec, err := s.GetBlob(context.Background(), "did:plc:second", "bafydurable")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.Sha256)
}

func TestProcessor_BlurhashForImages(t *testing.T) {
	s := newBlobStore(t)
	backend, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	fetcher := &fakeFetcher{data: map[string][]byte{"bafypng": pngBytes(t)}}
	p := NewProcessor(Config{}, fetcher, &fakeResolver{host: "https://pds.example.com"}, backend, s, testLogger())

	require.NoError(t, p.Process(context.Background(), "did:plc:abc", domain.BlobRef{CID: "bafypng", MimeType: "image/png"}))

	rec, err := s.GetBlob(context.Background(), "did:plc:abc", "bafypng")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.Blurhash)
	assert.NotEmpty(t, rec.Sha256)
}

func TestProcessor_BlurhashDegradesOnUndecodableImage(t *testing.T) {
	s := newBlobStore(t)
	backend, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	fetcher := &fakeFetcher{data: map[string][]byte{"bafybroken": []byte("claims to be a png")}}
	p := NewProcessor(Config{}, fetcher, &fakeResolver{host: "https://pds.example.com"}, backend, s, testLogger())

	// The similarity fingerprint fails; the record is still written.
	require.NoError(t, p.Process(context.Background(), "did:plc:abc", domain.BlobRef{CID: "bafybroken", MimeType: "image/png"}))

	rec, err := s.GetBlob(context.Background(), "did:plc:abc", "bafybroken")
	require.NoError(t, err)
	assert.Empty(t, rec.Blurhash)
	assert.NotEmpty(t, rec.Sha256)
}

func TestProcessor_Failures(t *testing.T) {
	s := newBlobStore(t)
	backend, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("missing cid", func(t *testing.T) {
		p := NewProcessor(Config{}, &fakeFetcher{}, &fakeResolver{host: "h"}, backend, s, testLogger())
		assert.Error(t, p.Process(ctx, "did:plc:abc", domain.BlobRef{MimeType: "image/png"}))
	})

	t.Run("resolver failure", func(t *testing.T) {
		p := NewProcessor(Config{}, &fakeFetcher{}, &fakeResolver{err: fmt.Errorf("directory down")}, backend, s, testLogger())
		err := p.Process(ctx, "did:plc:abc", domain.BlobRef{CID: "bafyx", MimeType: "image/png"})
		assert.ErrorContains(t, err, "resolve origin")
	})

	t.Run("fetch failure", func(t *testing.T) {
		p := NewProcessor(Config{}, &fakeFetcher{err: errors.Transient("origin down")}, &fakeResolver{host: "h"}, backend, s, testLogger())
		err := p.Process(ctx, "did:plc:abc", domain.BlobRef{CID: "bafyy", MimeType: "image/png"})
		assert.True(t, errors.Is(err, errors.ErrTransient))
	})
}
