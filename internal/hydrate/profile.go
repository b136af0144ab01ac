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

// profileCollection holds the self-authored profile record of an account.
const (
	profileCollection = "app.bsky.actor.profile"
	profileRecordKey  = "self"
)

// ProfileHydrator fetches the profile record and handle behind an account
// subject.
type ProfileHydrator struct {
	client *Client
	store  *store.Store
	blobs  BlobProcessor
	logger *slog.Logger
}

// NewProfileHydrator creates a profile hydrator.
func NewProfileHydrator(client *Client, s *store.Store, blobs BlobProcessor, logger *slog.Logger) *ProfileHydrator {
	return &ProfileHydrator{
		client: client,
		store:  s,
		blobs:  blobs,
		logger: logger,
	}
}

// Hydrate fetches and persists the record for an account subject.
//
// A complete existing record is skipped. An incomplete one (a field that
// could not be retrieved on the prior pass) gets one more attempt; fields
// confirmed absent carry a checked marker and are never re-fetched.
func (h *ProfileHydrator) Hydrate(ctx context.Context, subject domain.Subject) error {
	if subject.Kind != domain.SubjectAccount {
		return fmt.Errorf("profile hydrator got %s subject %q", subject.Kind, subject.ID())
	}
	did := subject.DID

	rec, err := h.store.GetAccount(ctx, did)
	switch {
	case err == nil && rec.Complete():
		h.logger.Debug("account already hydrated", "did", did)
		return nil
	case err == nil:
		// Backfill pass for the fields still unchecked.
		h.logger.Debug("re-hydrating incomplete account", "did", did)
	case errors.Is(err, store.ErrNotFound):
		rec = &domain.AccountRecord{DID: did}
	default:
		return fmt.Errorf("check existing account: %w", err)
	}

	rec.HydratedAt = time.Now().UTC()

	// Handle resolution confirms the repo exists; a missing repo is
	// terminal for the subject.
	if !rec.HandleChecked {
		desc, err := h.client.DescribeRepo(ctx, did)
		switch {
		case errors.Is(err, errors.ErrNotFound):
			h.logger.Info("account repo gone, marking skipped", "did", did)
			rec.NotFound = true
			return h.store.PutAccount(ctx, rec)
		case err != nil:
			// Store what we have; the record stays incomplete and
			// eligible for one more pass.
			if putErr := h.store.PutAccount(ctx, rec); putErr != nil {
				return fmt.Errorf("store partial account %s: %w", did, putErr)
			}
			return fmt.Errorf("resolve handle for %s: %w", did, err)
		default:
			rec.Handle = desc.Handle
			rec.HandleChecked = true
		}
	}

	if !rec.AvatarChecked {
		if err := h.fetchProfile(ctx, rec); err != nil {
			if putErr := h.store.PutAccount(ctx, rec); putErr != nil {
				return fmt.Errorf("store partial account %s: %w", did, putErr)
			}
			return fmt.Errorf("fetch profile for %s: %w", did, err)
		}
	}

	if err := h.store.PutAccount(ctx, rec); err != nil {
		return fmt.Errorf("store account %s: %w", did, err)
	}

	for _, ref := range []*domain.BlobRef{rec.Avatar, rec.Banner} {
		if ref == nil {
			continue
		}
		if err := h.blobs.Process(ctx, did, *ref); err != nil {
			h.logger.Error("blob processing failed",
				"owner", did,
				"cid", ref.CID,
				"error", err,
			)
		}
	}

	return nil
}

// fetchProfile loads the self profile record into rec. An account with no
// profile record is normal: the fields are confirmed absent, not missing.
func (h *ProfileHydrator) fetchProfile(ctx context.Context, rec *domain.AccountRecord) error {
	env, err := h.client.GetRecord(ctx, rec.DID, profileCollection, profileRecordKey)
	if errors.Is(err, errors.ErrNotFound) {
		rec.AvatarChecked = true
		return nil
	}
	if err != nil {
		return err
	}

	profile, err := parseProfile(env.Value)
	if err != nil {
		h.logger.Warn("profile record has unexpected shape", "did", rec.DID, "error", err)
		rec.AvatarChecked = true
		return nil
	}

	rec.DisplayName = profile.DisplayName
	rec.Description = profile.Description
	rec.Avatar = profile.Avatar.toRef("")
	rec.Banner = profile.Banner.toRef("")
	rec.AvatarChecked = true
	return nil
}
