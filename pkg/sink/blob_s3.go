package sink

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fieldwork-labs/intake/pkg/record"
)

// S3BlobSink uploads canonical records to an S3 bucket. Deployments that
// cannot use GCS point this at S3 or a compatible store (MinIO, LocalStack).
type S3BlobSink struct {
	client *s3.Client
	bucket string
}

// S3BlobSinkConfig holds configuration for S3BlobSink.
type S3BlobSinkConfig struct {
	Bucket   string
	Region   string
	Endpoint string // optional custom endpoint
}

// NewS3BlobSink creates an S3-backed blob sink.
func NewS3BlobSink(ctx context.Context, cfg S3BlobSinkConfig) (*S3BlobSink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required: %w", ErrBackendUnavailable)
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // required for MinIO/LocalStack
		}
	})
	return &S3BlobSink{client: client, bucket: cfg.Bucket}, nil
}

func (s *S3BlobSink) Name() string { return "s3" }

// Upload writes the record as a JSON object, best-effort.
func (s *S3BlobSink) Upload(ctx context.Context, rec *record.CanonicalRecord) UploadResult {
	if s == nil || s.client == nil {
		return UploadResult{OK: false, Message: "s3 client not configured"}
	}

	key := objectKey(rec)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(blobBytes(rec)),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return UploadResult{OK: false, Message: fmt.Sprintf("s3 put failed: %v", err)}
	}
	return UploadResult{OK: true, Message: key}
}
