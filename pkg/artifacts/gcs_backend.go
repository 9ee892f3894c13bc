//go:build gcp

package artifacts

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
)

// GCSBackend serves gs://bucket/object URIs.
type GCSBackend struct {
	client  *storage.Client
	maxSize int64
}

// NewGCSBackend creates a client using application default credentials.
func NewGCSBackend(ctx context.Context, maxSize int64) (*GCSBackend, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSBackend{client: client, maxSize: maxSize}, nil
}

func (b *GCSBackend) Load(ctx context.Context, uri string) ([]byte, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	reader, err := b.client.Bucket(loc.Bucket).Object(loc.Key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs get failed for %s: %w", uri, err)
	}
	defer func() { _ = reader.Close() }()
	return readLimited(reader, b.maxSize)
}

func (b *GCSBackend) Save(ctx context.Context, uri string, data []byte) error {
	loc, err := ParseURI(uri)
	if err != nil {
		return err
	}
	w := b.client.Bucket(loc.Bucket).Object(loc.Key).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close failed: %w", err)
	}
	return nil
}

// Close closes the GCS client.
func (b *GCSBackend) Close() error {
	return b.client.Close()
}
