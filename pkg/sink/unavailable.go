package sink

import (
	"context"
	"fmt"

	"github.com/fieldwork-labs/intake/pkg/record"
)

// UnavailableTabular is a tabular sink standing in for a backend whose
// configuration is absent. Every append reports ErrBackendUnavailable, which
// callers distinguish from transient failures.
type UnavailableTabular struct {
	Reason string
}

func (u UnavailableTabular) Append(ctx context.Context, row []string, destination string) error {
	return fmt.Errorf("%s: %w", u.Reason, ErrBackendUnavailable)
}

// UnavailableBlob is the blob-side equivalent: uploads report OK=false with
// the configuration gap as the message.
type UnavailableBlob struct {
	Reason string
}

func (u UnavailableBlob) Name() string { return "unavailable" }

func (u UnavailableBlob) Upload(ctx context.Context, rec *record.CanonicalRecord) UploadResult {
	return UploadResult{OK: false, Message: u.Reason}
}
