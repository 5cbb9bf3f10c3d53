// Package provider implements the third-party image search adapters used by
// the fallback chain. Each adapter performs a single attempt with no internal
// retry; failure classification is left to the caller.
package provider

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tripkit/image-search/config"
	"github.com/tripkit/image-search/internal/db/models"
)

// ImageProvider is one third-party image search API. Search performs a single
// attempt and maps the provider-native response into common image records.
type ImageProvider interface {
	Name() string
	Search(ctx context.Context, query, category string, limit int) ([]models.ImageRecord, error)
}

// Reason classifies why a provider attempt produced no results.
type Reason string

const (
	// ReasonUnavailable means no credential is configured; no HTTP call is made.
	ReasonUnavailable Reason = "unavailable"
	// ReasonRequestFailed means the provider returned a non-2xx response or
	// the request could not complete.
	ReasonRequestFailed Reason = "request_failed"
	// ReasonRateLimited is a request failure with HTTP 429, logged distinctly.
	ReasonRateLimited Reason = "rate_limited"
)

// Error is the outcome of a failed provider attempt.
type Error struct {
	Provider string
	Reason   Reason
	Status   int
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Reason, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Unavailable reports a provider skipped for lack of a configured credential.
func Unavailable(provider string) *Error {
	return &Error{Provider: provider, Reason: ReasonUnavailable}
}

// RequestFailed reports a non-2xx provider response. HTTP 429 is tagged as
// rate limited; handling is identical, only logging differs.
func RequestFailed(provider string, status int) *Error {
	reason := ReasonRequestFailed
	if status == http.StatusTooManyRequests {
		reason = ReasonRateLimited
	}
	return &Error{Provider: provider, Reason: reason, Status: status}
}

// RequestError reports a provider request that failed before a response.
func RequestError(provider string, err error) *Error {
	return &Error{Provider: provider, Reason: ReasonRequestFailed, Err: err}
}

// List builds the fallback chain in fixed priority order. Order encodes the
// preferred quality/cost ranking; callers must not reorder or race providers.
func List(cfg *config.ProvidersConfig) []ImageProvider {
	client := &http.Client{Timeout: cfg.Timeout}
	return []ImageProvider{
		NewUnsplash(cfg.UnsplashAccessKey, client),
		NewPexels(cfg.PexelsAPIKey, client),
		NewPixabay(cfg.PixabayAPIKey, client),
		NewSerpAPI(cfg.SerpAPIKey, client),
	}
}
