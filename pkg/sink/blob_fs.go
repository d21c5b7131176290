package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fieldwork-labs/intake/pkg/record"
)

// FSBlobSink writes canonical records under a local directory, mirroring the
// object key layout of the cloud sinks. Used for development and tests.
type FSBlobSink struct {
	baseDir string
}

// NewFSBlobSink creates a filesystem-backed blob sink rooted at baseDir.
func NewFSBlobSink(baseDir string) (*FSBlobSink, error) {
	//nolint:gosec // G301: 0755 is intentional for a shared data directory
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure blob dir: %w", err)
	}
	return &FSBlobSink{baseDir: baseDir}, nil
}

func (s *FSBlobSink) Name() string { return "fs" }

// Upload writes the record to {baseDir}/{objectKey}, best-effort. The write
// goes to a temp file first so readers never see a partial record.
func (s *FSBlobSink) Upload(ctx context.Context, rec *record.CanonicalRecord) UploadResult {
	if s == nil || s.baseDir == "" {
		return UploadResult{OK: false, Message: "blob dir not configured"}
	}

	key := objectKey(rec)
	path := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil { //nolint:gosec
		return UploadResult{OK: false, Message: fmt.Sprintf("mkdir failed: %v", err)}
	}

	tmp := path + ".tmp"
	//nolint:gosec // G306: 0644 is intentional for readable record files
	if err := os.WriteFile(tmp, blobBytes(rec), 0644); err != nil {
		return UploadResult{OK: false, Message: fmt.Sprintf("write failed: %v", err)}
	}
	if err := os.Rename(tmp, path); err != nil {
		return UploadResult{OK: false, Message: fmt.Sprintf("commit failed: %v", err)}
	}
	return UploadResult{OK: true, Message: key}
}
