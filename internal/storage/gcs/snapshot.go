// Package gcs persists cache snapshots as a single Google Cloud Storage object.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/product-copy/internal/cache"
)

// Config captures the parameters required to locate the snapshot object.
type Config struct {
	Bucket string
	Object string
}

type objectIO interface {
	NewReader(ctx context.Context) (io.ReadCloser, error)
	NewWriter(ctx context.Context) io.WriteCloser
}

// Snapshotter reads and rewrites the snapshot object.
type Snapshotter struct {
	object objectIO
	uri    string
}

// New creates a GCS-backed snapshotter.
func New(client *storage.Client, cfg Config) (*Snapshotter, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	object := strings.TrimSpace(cfg.Object)
	if object == "" {
		object = "product-cache.json"
	}
	handle := client.Bucket(cfg.Bucket).Object(object)
	return &Snapshotter{
		object: gcsObject{handle: handle},
		uri:    fmt.Sprintf("gs://%s/%s", cfg.Bucket, object),
	}, nil
}

// URI returns the gs:// location of the snapshot.
func (s *Snapshotter) URI() string {
	return s.uri
}

// Load downloads the snapshot. A missing object is an empty snapshot.
func (s *Snapshotter) Load(ctx context.Context) (cache.Snapshot, error) {
	r, err := s.object.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return cache.Snapshot{}, nil
		}
		return nil, fmt.Errorf("open snapshot object: %w", err)
	}
	defer func() { _ = r.Close() }()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read snapshot object: %w", err)
	}
	return cache.Decode(data)
}

// Save uploads the snapshot, replacing the previous object.
func (s *Snapshotter) Save(ctx context.Context, snap cache.Snapshot) error {
	data, err := cache.Encode(snap)
	if err != nil {
		return err
	}
	writer := s.object.NewWriter(ctx)
	if _, err := writer.Write(data); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("write snapshot object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("write snapshot object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

type gcsObject struct {
	handle *storage.ObjectHandle
}

func (o gcsObject) NewReader(ctx context.Context) (io.ReadCloser, error) {
	r, err := o.handle.NewReader(ctx)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (o gcsObject) NewWriter(ctx context.Context) io.WriteCloser {
	w := o.handle.NewWriter(ctx)
	w.ContentType = "application/json"
	return w
}
