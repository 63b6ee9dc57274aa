package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/product-copy/internal/cache"
)

func TestNewValidatesInputs(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "bucket"})
	require.Error(t, err)

	_, err = New(&storage.Client{}, Config{})
	require.Error(t, err)
}

func TestLoadMissingObjectIsEmpty(t *testing.T) {
	t.Parallel()

	s := &Snapshotter{object: &fakeObject{readErr: storage.ErrObjectNotExist}}
	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestLoadPropagatesReadErrors(t *testing.T) {
	t.Parallel()

	s := &Snapshotter{object: &fakeObject{readErr: errors.New("permission denied")}}
	_, err := s.Load(context.Background())
	require.ErrorContains(t, err, "permission denied")
}

func TestSaveThenLoad(t *testing.T) {
	t.Parallel()

	obj := &fakeObject{}
	s := &Snapshotter{object: obj}
	snap := cache.Snapshot{
		"https://www.leonardo.vn/ao-thun": {Payload: "Tên sản phẩm: Áo Thun", StoredAt: time.Unix(1700000000, 0).UTC()},
	}
	require.NoError(t, s.Save(context.Background(), snap))
	require.NotEmpty(t, obj.data)

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Tên sản phẩm: Áo Thun", loaded["https://www.leonardo.vn/ao-thun"].Payload)
}

func TestSaveReportsCloseError(t *testing.T) {
	t.Parallel()

	s := &Snapshotter{object: &fakeObject{closeErr: errors.New("upload failed")}}
	err := s.Save(context.Background(), cache.Snapshot{})
	require.ErrorContains(t, err, "upload failed")
}

type fakeObject struct {
	data     []byte
	readErr  error
	closeErr error
}

func (f *fakeObject) NewReader(context.Context) (io.ReadCloser, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

func (f *fakeObject) NewWriter(context.Context) io.WriteCloser {
	return &fakeWriter{obj: f}
}

type fakeWriter struct {
	obj *fakeObject
	buf bytes.Buffer
}

func (w *fakeWriter) Write(p []byte) (int, error) {
	n, err := w.buf.Write(p)
	if err != nil {
		return n, fmt.Errorf("buffer write: %w", err)
	}
	return n, nil
}

func (w *fakeWriter) Close() error {
	if w.obj.closeErr != nil {
		return w.obj.closeErr
	}
	w.obj.data = append([]byte(nil), w.buf.Bytes()...)
	return nil
}
