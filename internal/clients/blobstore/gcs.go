package blobstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/karnotxyz/madara-orchestrator/internal/logger"
)

// GCS is a Store backed by cloud.google.com/go/storage, grounded on the
// teacher's BucketService (internal/clients/gcp/bucket.go), collapsed from
// its multi-category avatar/material bucket config down to the single
// bucket this orchestrator's DataSubmission handler needs.
type GCS struct {
	client *storage.Client
	bucket string
	log    *logger.Logger
}

// NewGCS dials a storage client with the given options. cmd/orchestrator
// passes ClientOptionsFromEnv's result, so credentials come from
// GOOGLE_APPLICATION_CREDENTIALS_JSON or GOOGLE_APPLICATION_CREDENTIALS when
// set; with no options the client falls back to ambient credentials.
func NewGCS(ctx context.Context, bucket string, log *logger.Logger, opts ...option.ClientOption) (*GCS, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCS{client: client, bucket: bucket, log: log.With("component", "GCSBlobStore", "bucket", bucket)}, nil
}

func (g *GCS) Put(ctx context.Context, key string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write GCS object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close GCS writer for %q: %w", key, err)
	}
	return nil
}

func (g *GCS) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	r, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open GCS reader for %q: %w", key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GCS object %q: %w", key, err)
	}
	return data, nil
}
