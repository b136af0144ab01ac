// Package identity resolves which network endpoint authoritatively hosts a
// given account's data, from the account's public DID document.
package identity

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/skywatch-app/skywatch-server/internal/errors"
	"github.com/skywatch-app/skywatch-server/internal/ratelimit"
	"github.com/skywatch-app/skywatch-server/internal/retry"
	"github.com/skywatch-app/skywatch-server/internal/util"
)

const (
	defaultTimeout = 30 * time.Second

	// pdsServiceID marks the personal data server entry in a DID document.
	pdsServiceID   = "#atproto_pds"
	pdsServiceType = "AtprotoPersonalDataServer"
)

// Resolver looks up the PDS endpoint for a DID. Resolutions are cached per
// DID for the life of the process so repeated blobs from one subject cost a
// single directory call. Directory calls share the pipeline's outbound rate
// budget and retry policy like every other network call.
type Resolver struct {
	http      *http.Client
	directory string // plc directory base URL
	limiter   *ratelimit.Limiter
	retry     retry.Policy
	logger    *slog.Logger

	cache *util.SyncMap[string, string]
}

// NewResolver creates a resolver against the given PLC directory endpoint
// (e.g. https://plc.directory).
func NewResolver(directory string, limiter *ratelimit.Limiter, logger *slog.Logger) (*Resolver, error) {
	if directory == "" {
		return nil, fmt.Errorf("directory endpoint cannot be empty")
	}
	return &Resolver{
		http:      &http.Client{Timeout: defaultTimeout},
		directory: strings.TrimSuffix(directory, "/"),
		limiter:   limiter,
		retry:     retry.DefaultPolicy(),
		logger:    logger,
		cache:     util.NewSyncMap[string, string](),
	}, nil
}

// didDocument is the subset of a DID document this resolver reads.
type didDocument struct {
	ID      string `json:"id"`
	Service []struct {
		ID              string `json:"id"`
		Type            string `json:"type"`
		ServiceEndpoint string `json:"serviceEndpoint"`
	} `json:"service"`
}

// ResolvePDS returns the base URL of the data server hosting the DID's
// repository and blobs.
func (r *Resolver) ResolvePDS(ctx context.Context, did string) (string, error) {
	if endpoint, ok := r.cache.Load(did); ok {
		return endpoint, nil
	}

	docURL, err := r.documentURL(did)
	if err != nil {
		return "", err
	}

	// Each attempt acquires its own admission so retries also respect
	// the shared budget.
	var doc *didDocument
	err = r.retry.Do(ctx, func(ctx context.Context) error {
		release, err := r.limiter.Acquire(ctx)
		if err != nil {
			return err
		}
		defer release()

		doc, err = r.fetchDocument(ctx, docURL)
		return err
	})
	if err != nil {
		return "", err
	}

	for _, svc := range doc.Service {
		if svc.ID == pdsServiceID || svc.Type == pdsServiceType {
			endpoint := strings.TrimSuffix(svc.ServiceEndpoint, "/")
			if endpoint == "" {
				break
			}
			r.cache.Store(did, endpoint)
			return endpoint, nil
		}
	}

	return "", errors.NotFoundf("did document for %s has no pds service", did)
}

// documentURL maps a DID to its document location: the PLC directory for
// did:plc, the well-known path for did:web.
func (r *Resolver) documentURL(did string) (string, error) {
	switch {
	case strings.HasPrefix(did, "did:plc:"):
		return r.directory + "/" + url.PathEscape(did), nil
	case strings.HasPrefix(did, "did:web:"):
		host := strings.TrimPrefix(did, "did:web:")
		if host == "" || strings.Contains(host, ":") {
			return "", errors.Validationf("unsupported did:web form %q", did)
		}
		return "https://" + host + "/.well-known/did.json", nil
	default:
		return "", errors.Validationf("unsupported did method in %q", did)
	}
}

func (r *Resolver) fetchDocument(ctx context.Context, docURL string) (*didDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// Fall through to decode.
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.NotFound("did document not found")
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.RateLimited("directory rate limited")
	case resp.StatusCode >= 500:
		return nil, errors.Transientf("directory returned %d", resp.StatusCode)
	default:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var doc didDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal did document: %w", err)
	}
	return &doc, nil
}
