// Package product defines the product-info retrieval pipeline and the types
// shared across its fetchers, extractor and cache backends.
package product

import (
	"strings"
	"time"
)

// URL is a normalized product page URL. Values are produced by a Normalizer
// and are stable under re-normalization.
type URL string

// String returns the URL as a plain string.
func (u URL) String() string {
	return string(u)
}

// Source records which fetcher produced a document.
type Source string

// Fetch provenance values.
const (
	SourceStatic  Source = "static"
	SourceDynamic Source = "dynamic"
	SourceCache   Source = "cache"
)

// FetchResult is the raw document returned by a Fetcher.
type FetchResult struct {
	URL        URL
	FinalURL   string
	Source     Source
	StatusCode int
	HTML       []byte
	Duration   time.Duration
}

// Text is the ordered list of text blocks extracted from a product page.
// Block order follows extraction priority: name, price, description, details.
type Text struct {
	Blocks []string
}

// Empty reports whether no block was extracted.
func (t Text) Empty() bool {
	return len(t.Blocks) == 0
}

// String joins the blocks with newlines for transport and caching.
func (t Text) String() string {
	return strings.Join(t.Blocks, "\n")
}

// Status is the outward-facing outcome of FetchProduct.
type Status string

// Result statuses.
const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Code classifies a failed Result.
type Code string

// Stable result codes.
const (
	CodeNotFound    Code = "not_found"
	CodeInvalid     Code = "invalid"
	CodeUnavailable Code = "unavailable"
)

// Result is returned by Service.FetchProduct. Exactly one of Description or
// Message is set depending on Status.
type Result struct {
	Status      Status      `json:"status"`
	Description string      `json:"description,omitempty"`
	Message     string      `json:"message,omitempty"`
	Code        Code        `json:"code,omitempty"`
	Reason      FetchReason `json:"reason,omitempty"`
	Source      Source      `json:"source,omitempty"`
}

// FetchEvent is published after every fetch attempt that missed the cache.
type FetchEvent struct {
	ID         string      `json:"id,omitempty"`
	URL        string      `json:"url"`
	Source     Source      `json:"source,omitempty"`
	Outcome    Status      `json:"outcome"`
	Code       Code        `json:"code,omitempty"`
	Reason     FetchReason `json:"reason,omitempty"`
	TextSHA256 string      `json:"text_sha256,omitempty"`
	DurationMs int64       `json:"duration_ms"`
	OccurredAt time.Time   `json:"occurred_at"`
}
