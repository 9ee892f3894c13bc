//go:build gcp

package artifacts

import "context"

func newGCSBackend(ctx context.Context, maxSize int64) (Backend, error) {
	return NewGCSBackend(ctx, maxSize)
}
