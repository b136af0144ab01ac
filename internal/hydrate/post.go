package hydrate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/skywatch-app/skywatch-server/internal/domain"
	"github.com/skywatch-app/skywatch-server/internal/errors"
	"github.com/skywatch-app/skywatch-server/internal/store"
)

// BlobProcessor handles one blob reference extracted from a hydrated record.
type BlobProcessor interface {
	Process(ctx context.Context, ownerDID string, ref domain.BlobRef) error
}

// PostHydrator fetches the full record behind a content subject and hands
// its embedded blobs to the blob processor.
type PostHydrator struct {
	client *Client
	store  *store.Store
	blobs  BlobProcessor
	logger *slog.Logger
}

// NewPostHydrator creates a post hydrator.
func NewPostHydrator(client *Client, s *store.Store, blobs BlobProcessor, logger *slog.Logger) *PostHydrator {
	return &PostHydrator{
		client: client,
		store:  s,
		blobs:  blobs,
		logger: logger,
	}
}

// Hydrate fetches and persists the record for a content subject. It is
// idempotent: a subject with an existing record (including one marked
// not-found) is skipped immediately.
func (h *PostHydrator) Hydrate(ctx context.Context, subject domain.Subject) error {
	if subject.Kind != domain.SubjectContent {
		return fmt.Errorf("post hydrator got %s subject %q", subject.Kind, subject.ID())
	}

	if _, err := h.store.GetContent(ctx, subject.URI); err == nil {
		h.logger.Debug("content already hydrated", "uri", subject.URI)
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("check existing content: %w", err)
	}

	env, err := h.client.GetRecord(ctx, subject.DID, subject.Collection, subject.RecordKey)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			// Terminal for this subject: record the tombstone so
			// it is never re-enqueued, and stop without retrying.
			h.logger.Info("content record gone, marking skipped", "uri", subject.URI)
			return h.store.PutContent(ctx, &domain.ContentRecord{
				URI:        subject.URI,
				DID:        subject.DID,
				Collection: subject.Collection,
				RecordKey:  subject.RecordKey,
				HydratedAt: time.Now().UTC(),
				NotFound:   true,
			})
		}
		return fmt.Errorf("fetch record %s: %w", subject.URI, err)
	}

	rec := &domain.ContentRecord{
		URI:        subject.URI,
		DID:        subject.DID,
		Collection: subject.Collection,
		RecordKey:  subject.RecordKey,
		CID:        env.CID,
		HydratedAt: time.Now().UTC(),
	}

	post, err := parsePost(env.Value)
	if err != nil {
		// A record of an unexpected shape still gets a row; text and
		// blobs are simply absent.
		h.logger.Warn("content record has unexpected shape", "uri", subject.URI, "error", err)
		return h.store.PutContent(ctx, rec)
	}

	rec.Text = post.Text
	rec.Langs = post.Langs
	rec.CreatedAt = post.CreatedAt
	rec.IsReply = post.Reply != nil
	rec.Links, rec.Tags = post.links()
	rec.Blobs = post.blobRefs()

	if err := h.store.PutContent(ctx, rec); err != nil {
		return fmt.Errorf("store content %s: %w", subject.URI, err)
	}

	// Each blob is its own failure domain: one bad blob never fails the
	// hydration or its siblings.
	for _, ref := range rec.Blobs {
		if err := h.blobs.Process(ctx, subject.DID, ref); err != nil {
			h.logger.Error("blob processing failed",
				"owner", subject.DID,
				"cid", ref.CID,
				"error", err,
			)
		}
	}

	return nil
}
