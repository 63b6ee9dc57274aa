package product

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the page was fetched but no product field could be extracted.
var ErrNotFound = errors.New("no product information found")

// ErrCacheUnavailable wraps cache backend failures. The service treats it as a
// soft failure and bypasses the cache.
var ErrCacheUnavailable = errors.New("cache unavailable")

// ValidationError reports a malformed or off-domain product URL.
type ValidationError struct {
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid product url %q: %s", e.Input, e.Reason)
}

// FetchReason distinguishes fetch-layer failures.
type FetchReason string

// Fetch failure reasons.
const (
	ReasonTimeout      FetchReason = "timeout"
	ReasonHTTPError    FetchReason = "http_error"
	ReasonNetworkError FetchReason = "network_error"
	ReasonBrowserError FetchReason = "browser_error"
)

// FetchError is returned by fetchers for any failed retrieval.
type FetchError struct {
	Reason     FetchReason
	URL        string
	StatusCode int
	Err        error
}

// NewFetchError builds a FetchError for url.
func NewFetchError(reason FetchReason, url string, err error) *FetchError {
	return &FetchError{Reason: reason, URL: url, Err: err}
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: %s (status %d): %v", e.URL, e.Reason, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// AsFetchError extracts a FetchError from err's chain.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
