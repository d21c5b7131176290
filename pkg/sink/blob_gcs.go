package sink

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"

	"github.com/fieldwork-labs/intake/pkg/record"
)

// GCSBlobSink uploads canonical records to a Google Cloud Storage bucket.
type GCSBlobSink struct {
	client *storage.Client
	bucket string
}

// GCSBlobSinkConfig holds configuration for GCSBlobSink.
type GCSBlobSinkConfig struct {
	Bucket string
}

// NewGCSBlobSink creates a GCS-backed blob sink. The client uses Application
// Default Credentials.
func NewGCSBlobSink(ctx context.Context, cfg GCSBlobSinkConfig) (*GCSBlobSink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required: %w", ErrBackendUnavailable)
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSBlobSink{client: client, bucket: cfg.Bucket}, nil
}

func (s *GCSBlobSink) Name() string { return "gcs" }

// Upload writes the record as a JSON object. Never returns an error: every
// failure surfaces as OK=false with a reason, so callers can treat this
// backend as best-effort.
func (s *GCSBlobSink) Upload(ctx context.Context, rec *record.CanonicalRecord) UploadResult {
	if s == nil || s.client == nil {
		return UploadResult{OK: false, Message: "gcs client not configured"}
	}

	key := objectKey(rec)
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(blobBytes(rec)); err != nil {
		_ = w.Close()
		return UploadResult{OK: false, Message: fmt.Sprintf("gcs write failed: %v", err)}
	}
	if err := w.Close(); err != nil {
		return UploadResult{OK: false, Message: fmt.Sprintf("gcs close failed: %v", err)}
	}
	return UploadResult{OK: true, Message: key}
}

// Close closes the GCS client.
func (s *GCSBlobSink) Close() error {
	return s.client.Close()
}
