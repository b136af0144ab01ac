// Package blob turns blob references into durable blob records: it resolves
// the origin host, conditionally downloads the bytes, fingerprints them, and
// persists the result. Records are content-addressed: bytes for a known
// content identifier are never fetched twice.
package blob

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/skywatch-app/skywatch-server/internal/domain"
	"github.com/skywatch-app/skywatch-server/internal/errors"
	"github.com/skywatch-app/skywatch-server/internal/hash"
	"github.com/skywatch-app/skywatch-server/internal/storage"
	"github.com/skywatch-app/skywatch-server/internal/store"
	"github.com/skywatch-app/skywatch-server/internal/util"
)

// Fetcher retrieves raw blob bytes from an origin host.
type Fetcher interface {
	GetBlob(ctx context.Context, host, did, cid string) ([]byte, error)
}

// OriginResolver resolves the endpoint hosting a subject's binary data.
type OriginResolver interface {
	ResolvePDS(ctx context.Context, did string) (string, error)
}

// fingerprints is the cached per-cid processing result.
type fingerprints struct {
	Sha256   string
	Blurhash string
	Locator  string
	MimeType string
	Size     int64
}

// Config holds processor settings.
type Config struct {
	// DownloadEnabled authorizes storing blob bytes. Off by default:
	// fingerprints are always computed, but without authorization no
	// bytes are persisted and storage locators stay absent.
	DownloadEnabled bool
}

// Processor implements the blob pipeline stage.
type Processor struct {
	cfg      Config
	fetcher  Fetcher
	resolver OriginResolver
	backend  storage.Backend
	store    *store.Store
	logger   *slog.Logger

	// seen is the in-process content-addressed lookup: cid to computed
	// fingerprints. The store's cid index covers prior runs.
	seen *util.SyncMap[string, fingerprints]
}

// NewProcessor creates a blob processor.
func NewProcessor(cfg Config, fetcher Fetcher, resolver OriginResolver, backend storage.Backend, s *store.Store, logger *slog.Logger) *Processor {
	return &Processor{
		cfg:      cfg,
		fetcher:  fetcher,
		resolver: resolver,
		backend:  backend,
		store:    s,
		logger:   logger,
		seen:     util.NewSyncMap[string, fingerprints](),
	}
}

// Process handles one blob reference for one owning subject. Each step is
// its own failure domain; an error here aborts only this blob.
func (p *Processor) Process(ctx context.Context, ownerDID string, ref domain.BlobRef) error {
	if ref.CID == "" {
		return fmt.Errorf("blob ref has no cid")
	}

	// Step 1: dedup. A known identifier reuses the fingerprints already
	// computed for whichever subject referenced it first.
	if fp, ok := p.lookupKnown(ctx, ref.CID); ok {
		return p.persist(ctx, ownerDID, ref, fp)
	}

	// Step 2: origin resolution (cached per subject in the resolver).
	origin, err := p.resolver.ResolvePDS(ctx, ownerDID)
	if err != nil {
		return fmt.Errorf("resolve origin for %s: %w", ownerDID, err)
	}

	// Step 3: fetch. Bytes are always needed for hashing; whether they
	// are kept is decided below.
	data, err := p.fetcher.GetBlob(ctx, origin, ownerDID, ref.CID)
	if err != nil {
		return fmt.Errorf("fetch blob %s: %w", ref.CID, err)
	}

	fp := fingerprints{
		MimeType: ref.MimeType,
		Size:     int64(len(data)),
	}

	if p.cfg.DownloadEnabled {
		locator, err := p.backend.Put(ctx, ref.CID, ref.MimeType, data)
		if err != nil {
			return fmt.Errorf("store blob %s: %w", ref.CID, err)
		}
		fp.Locator = locator
	}

	// Step 4: fingerprinting. The cryptographic fingerprint always
	// covers the whole object; the similarity fingerprint degrades to
	// absent when it cannot be computed.
	fp.Sha256 = hash.Sha256Hex(data)
	if hash.SupportsBlurhash(ref.MimeType) {
		bh, err := hash.Blurhash(data)
		if err != nil {
			p.logger.Warn("similarity fingerprint failed, keeping sha256 only",
				"cid", ref.CID,
				"mimeType", ref.MimeType,
				"error", err,
			)
		} else {
			fp.Blurhash = bh
		}
	}

	p.seen.Store(ref.CID, fp)

	// Step 5: persist.
	return p.persist(ctx, ownerDID, ref, fp)
}

// lookupKnown checks the in-process cache, then the store's cid index, for
// fingerprints already computed for this content identifier.
func (p *Processor) lookupKnown(ctx context.Context, cid string) (fingerprints, bool) {
	if fp, ok := p.seen.Load(cid); ok {
		return fp, true
	}

	prior, err := p.store.FindBlobByCID(ctx, cid)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.logger.Warn("blob dedup lookup failed", "cid", cid, "error", err)
		}
		return fingerprints{}, false
	}

	fp := fingerprints{
		Sha256:   prior.Sha256,
		Blurhash: prior.Blurhash,
		Locator:  prior.StorageLocator,
		MimeType: prior.MimeType,
		Size:     prior.Size,
	}
	p.seen.Store(cid, fp)
	return fp, true
}

// persist writes the blob record scoped to this owner.
func (p *Processor) persist(ctx context.Context, ownerDID string, ref domain.BlobRef, fp fingerprints) error {
	mimeType := ref.MimeType
	if mimeType == "" {
		mimeType = fp.MimeType
	}

	rec := &domain.BlobRecord{
		OwnerDID:       ownerDID,
		CID:            ref.CID,
		MimeType:       mimeType,
		Sha256:         fp.Sha256,
		Blurhash:       fp.Blurhash,
		StorageLocator: fp.Locator,
		Size:           fp.Size,
		ProcessedAt:    time.Now().UTC(),
	}

	if err := p.store.PutBlob(ctx, rec); err != nil {
		return fmt.Errorf("store blob record %s/%s: %w", ownerDID, ref.CID, err)
	}
	return nil
}
