package product

import (
	"context"
	"time"
)

// Normalizer canonicalizes user supplied product URLs.
type Normalizer interface {
	Normalize(raw string) (URL, error)
}

// Fetcher retrieves the HTML of a product page.
type Fetcher interface {
	Fetch(ctx context.Context, url URL) (FetchResult, error)
}

// Extractor turns a fetched document into product text.
type Extractor interface {
	Extract(html []byte) (Text, error)
}

// Cache maps normalized URLs to extracted product text. A miss, including an
// expired entry, is reported as ok == false with a nil error.
type Cache interface {
	Get(ctx context.Context, key URL) (string, bool, error)
	Put(ctx context.Context, key URL, value string) error
}

// Publisher pushes fetch events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// ContentGenerator produces marketing copy from a prompt.
type ContentGenerator interface {
	Generate(ctx context.Context, prompt, system string) (string, error)
}

// Hasher fingerprints extracted text for fetch events.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// IDGenerator mints fetch event identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
