// Package artifacts moves patch and certificate blobs between the gate and
// where they live: the local filesystem, S3 or Google Cloud Storage.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// DefaultMaxBlobSize bounds a single patch or certificate read.
const DefaultMaxBlobSize int64 = 64 << 20

var (
	// ErrTooLarge is returned when a blob exceeds the configured maximum.
	ErrTooLarge = errors.New("artifacts: blob exceeds size limit")
	// ErrUnsupportedScheme is returned for a URI no backend handles.
	ErrUnsupportedScheme = errors.New("artifacts: unsupported URI scheme")
)

// Backend reads and writes blobs addressed by URI.
type Backend interface {
	Load(ctx context.Context, uri string) ([]byte, error)
	Save(ctx context.Context, uri string, data []byte) error
}

// Location is a parsed blob URI.
type Location struct {
	Scheme string // "file", "s3" or "gs"
	Bucket string // empty for files
	Key    string // object key or file path
}

// ParseURI splits a blob URI. Bare paths are files.
func ParseURI(uri string) (Location, error) {
	if uri == "" {
		return Location{}, fmt.Errorf("artifacts: empty URI")
	}
	if !strings.Contains(uri, "://") {
		return Location{Scheme: "file", Key: uri}, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, fmt.Errorf("artifacts: parse %q: %w", uri, err)
	}
	switch u.Scheme {
	case "file":
		return Location{Scheme: "file", Key: u.Host + u.Path}, nil
	case "s3", "gs":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Location{}, fmt.Errorf("artifacts: %q needs bucket and key", uri)
		}
		return Location{Scheme: u.Scheme, Bucket: u.Host, Key: key}, nil
	default:
		return Location{}, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
}

// readLimited reads r fully, failing once more than max bytes arrive.
func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		max = DefaultMaxBlobSize
	}
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, max)
	}
	return data, nil
}

// Mux routes URIs to per-scheme backends.
type Mux struct {
	backends map[string]Backend
}

// NewMux creates a router with the file backend registered.
func NewMux(maxSize int64) *Mux {
	return &Mux{backends: map[string]Backend{"file": NewFileBackend(maxSize)}}
}

// Register installs a backend for scheme, replacing any previous one.
func (m *Mux) Register(scheme string, b Backend) {
	m.backends[scheme] = b
}

func (m *Mux) backend(uri string) (Backend, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	b, ok := m.backends[loc.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %s (backend not configured)", ErrUnsupportedScheme, loc.Scheme)
	}
	return b, nil
}

func (m *Mux) Load(ctx context.Context, uri string) ([]byte, error) {
	b, err := m.backend(uri)
	if err != nil {
		return nil, err
	}
	return b.Load(ctx, uri)
}

func (m *Mux) Save(ctx context.Context, uri string, data []byte) error {
	b, err := m.backend(uri)
	if err != nil {
		return err
	}
	return b.Save(ctx, uri, data)
}
