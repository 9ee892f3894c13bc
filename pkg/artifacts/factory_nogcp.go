//go:build !gcp

package artifacts

import (
	"context"
	"fmt"
)

func newGCSBackend(ctx context.Context, maxSize int64) (Backend, error) {
	return nil, fmt.Errorf("GCS storage is not enabled in this build (use -tags gcp)")
}
