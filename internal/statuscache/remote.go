package statuscache

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vk/tendgo/internal/ctxlog"
	"resty.dev/v3"
)

// Remote is a Cache backed by a shared HTTP status service, so repeated
// runs across machines can reuse each other's results. The wire protocol
// is GET/PUT /v1/status/{key} with a plain-text version in the body.
type Remote struct {
	client *resty.Client
}

// NewRemote creates a remote cache client for the given base URL.
func NewRemote(baseURL string) *Remote {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("User-Agent", "tendgo")
	return &Remote{client: client}
}

// Close releases the underlying HTTP client resources.
func (r *Remote) Close() error {
	return r.client.Close()
}

// Lookup implements Cache. A 404 is a cache miss; any transport failure
// or unexpected status is an error the caller degrades to "unknown".
func (r *Remote) Lookup(ctx context.Context, key string) (string, bool, error) {
	logger := ctxlog.FromContext(ctx)
	resp, err := r.client.R().
		SetContext(ctx).
		Get("/v1/status/" + key)
	if err != nil {
		return "", false, fmt.Errorf("status cache lookup for %s: %w", key, err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		version := resp.String()
		logger.Debug("Status cache hit.", "key", key, "version", version)
		return version, true, nil
	case http.StatusNotFound:
		logger.Debug("Status cache miss.", "key", key)
		return "", false, nil
	default:
		return "", false, fmt.Errorf("status cache lookup for %s: unexpected status %d", key, resp.StatusCode())
	}
}

// Record implements Cache.
func (r *Remote) Record(ctx context.Context, key, version string) error {
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(version).
		Put("/v1/status/" + key)
	if err != nil {
		return fmt.Errorf("status cache record for %s: %w", key, err)
	}
	if resp.IsError() {
		return fmt.Errorf("status cache record for %s: unexpected status %d", key, resp.StatusCode())
	}
	return nil
}
