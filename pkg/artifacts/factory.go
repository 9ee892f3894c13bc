package artifacts

import (
	"context"
	"os"
)

// NewMuxFromEnv builds a router with every backend the environment enables.
//
// Environment variables:
//   - ARTIFACT_S3_ENABLED: "true" registers the s3 scheme
//   - ARTIFACT_S3_REGION or AWS_REGION (default "us-east-1")
//   - ARTIFACT_S3_ENDPOINT (optional, for MinIO/LocalStack)
//   - ARTIFACT_GCS_ENABLED: "true" registers the gs scheme (needs -tags gcp)
func NewMuxFromEnv(ctx context.Context, maxSize int64) (*Mux, error) {
	m := NewMux(maxSize)

	if os.Getenv("ARTIFACT_S3_ENABLED") == "true" {
		region := os.Getenv("ARTIFACT_S3_REGION")
		if region == "" {
			region = os.Getenv("AWS_REGION")
		}
		if region == "" {
			region = "us-east-1"
		}
		b, err := NewS3Backend(ctx, S3Config{
			Region:   region,
			Endpoint: os.Getenv("ARTIFACT_S3_ENDPOINT"),
			MaxSize:  maxSize,
		})
		if err != nil {
			return nil, err
		}
		m.Register("s3", b)
	}

	if os.Getenv("ARTIFACT_GCS_ENABLED") == "true" {
		b, err := newGCSBackend(ctx, maxSize)
		if err != nil {
			return nil, err
		}
		m.Register("gs", b)
	}

	return m, nil
}
