// Package hydrate fetches the full records referenced by label events: post
// records for content subjects, profile and handle for account subjects.
// Every outbound call goes through the shared rate limiter and retry policy.
package hydrate

import (
	"context"
	"encoding/json/jsontext"
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
)

const defaultTimeout = 30 * time.Second

// Client is a rate-limited XRPC client against the content-hosting service.
type Client struct {
	http    *http.Client
	appview string
	limiter *ratelimit.Limiter
	retry   retry.Policy
	logger  *slog.Logger
}

// NewClient creates a client for the given appview endpoint.
func NewClient(appview string, limiter *ratelimit.Limiter, logger *slog.Logger) (*Client, error) {
	if appview == "" {
		return nil, fmt.Errorf("appview endpoint cannot be empty")
	}
	return &Client{
		http:    &http.Client{Timeout: defaultTimeout},
		appview: strings.TrimSuffix(appview, "/"),
		limiter: limiter,
		retry:   retry.DefaultPolicy(),
		logger:  logger,
	}, nil
}

// RecordEnvelope is the response of com.atproto.repo.getRecord.
type RecordEnvelope struct {
	URI   string         `json:"uri"`
	CID   string         `json:"cid"`
	Value jsontext.Value `json:"value"`
}

// RepoDescription is the subset of com.atproto.repo.describeRepo we use.
type RepoDescription struct {
	Handle string `json:"handle"`
	DID    string `json:"did"`
}

// GetRecord fetches one record from a repository.
func (c *Client) GetRecord(ctx context.Context, repo, collection, rkey string) (*RecordEnvelope, error) {
	query := url.Values{}
	query.Set("repo", repo)
	query.Set("collection", collection)
	query.Set("rkey", rkey)

	body, err := c.get(ctx, c.appview, "/xrpc/com.atproto.repo.getRecord", query)
	if err != nil {
		return nil, err
	}

	var env RecordEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("unmarshal record envelope: %w", err)
	}
	return &env, nil
}

// DescribeRepo resolves a DID's human-readable handle.
func (c *Client) DescribeRepo(ctx context.Context, did string) (*RepoDescription, error) {
	query := url.Values{}
	query.Set("repo", did)

	body, err := c.get(ctx, c.appview, "/xrpc/com.atproto.repo.describeRepo", query)
	if err != nil {
		return nil, err
	}

	var desc RepoDescription
	if err := json.Unmarshal(body, &desc); err != nil {
		return nil, fmt.Errorf("unmarshal repo description: %w", err)
	}
	return &desc, nil
}

// GetBlob fetches raw blob bytes from the given origin host (a PDS base URL
// from identity resolution, not the appview).
func (c *Client) GetBlob(ctx context.Context, host, did, cid string) ([]byte, error) {
	query := url.Values{}
	query.Set("did", did)
	query.Set("cid", cid)

	return c.get(ctx, strings.TrimSuffix(host, "/"), "/xrpc/com.atproto.sync.getBlob", query)
}

// get executes a GET with rate limiting and retries. Each attempt acquires
// its own admission so retries also respect the shared budget.
func (c *Client) get(ctx context.Context, base, path string, query url.Values) ([]byte, error) {
	var body []byte
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		release, err := c.limiter.Acquire(ctx)
		if err != nil {
			return err
		}
		defer release()

		body, err = c.doRequest(ctx, base+path+"?"+query.Encode())
		return err
	})
	return body, err
}

// doRequest performs one HTTP attempt and classifies the response status
// into the pipeline's failure taxonomy.
func (c *Client) doRequest(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("xrpc request", "url", rawURL)

	resp, err := c.http.Do(req)
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
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.NotFound("record does not exist")
	case resp.StatusCode == http.StatusBadRequest && isNotFoundError(body):
		// XRPC reports missing records as 400 RecordNotFound.
		return nil, errors.NotFound("record does not exist")
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.RateLimited("upstream rate limited")
	case resp.StatusCode >= 500:
		return nil, errors.Transientf("upstream returned %d", resp.StatusCode)
	default:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}

// xrpcError is the standard XRPC error body.
type xrpcError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func isNotFoundError(body []byte) bool {
	var xe xrpcError
	if err := json.Unmarshal(body, &xe); err != nil {
		return false
	}
	return xe.Error == "RecordNotFound" || xe.Error == "RepoNotFound" || xe.Error == "BlobNotFound"
}
