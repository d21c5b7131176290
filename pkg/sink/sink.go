// Package sink routes a finished row and record to the configured durable
// backends. The tabular append is the primary path and its error propagates;
// the blob upload is best-effort and reports an (ok, message) result instead.
// Backends are independent: one failing never prevents an attempt on the
// other.
package sink

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fieldwork-labs/intake/pkg/observability"
	"github.com/fieldwork-labs/intake/pkg/record"
)

// ErrBackendUnavailable means a backend has no credentials or destination
// configured. Callers skip that backend; this is not an incident.
var ErrBackendUnavailable = errors.New("sink: backend not configured")

// ErrSchemaMismatch means the row width disagrees with the column schema.
// That is a programming error upstream and is never coerced.
var ErrSchemaMismatch = errors.New("sink: row width does not match column schema")

// TabularSink appends one fixed-width row to a named destination.
type TabularSink interface {
	Append(ctx context.Context, row []string, destination string) error
}

// UploadResult is the best-effort blob outcome. Configuration absence and
// backend errors both land here as OK=false with a reason.
type UploadResult struct {
	OK      bool
	Message string
}

// BlobSink uploads the full canonical record as a JSON object.
type BlobSink interface {
	Upload(ctx context.Context, rec *record.CanonicalRecord) UploadResult
	Name() string
}

// Dispatcher fans a finished session out to the configured sinks.
// Either sink may be nil, meaning that path is simply not attempted.
type Dispatcher struct {
	Tabular     TabularSink
	TabularName string
	Blob        BlobSink
	Destination string

	Telemetry *observability.Provider
	Log       *slog.Logger
}

// Result reports each backend's outcome separately.
type Result struct {
	TabularAttempted bool
	TabularErr       error
	BlobAttempted    bool
	Blob             UploadResult
}

// Dispatch writes the row to the tabular sink and the record to the blob
// sink. Both are always attempted when configured, in that order, with no
// shared transaction; at-least-once is the delivery target.
func (d *Dispatcher) Dispatch(ctx context.Context, row []string, rec *record.CanonicalRecord) Result {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}

	var res Result

	if d.Tabular != nil {
		ctx, span := d.Telemetry.StartSpan(ctx, "sink.append")
		res.TabularAttempted = true
		res.TabularErr = d.Tabular.Append(ctx, row, d.Destination)
		d.Telemetry.RecordAppend(ctx, d.TabularName, res.TabularErr)
		span.End()

		switch {
		case res.TabularErr == nil:
			log.InfoContext(ctx, "row appended",
				"backend", d.TabularName, "destination", d.Destination)
		case errors.Is(res.TabularErr, ErrBackendUnavailable):
			log.WarnContext(ctx, "tabular backend unavailable, skipping",
				"backend", d.TabularName)
		default:
			log.ErrorContext(ctx, "tabular append failed",
				"backend", d.TabularName, "error", res.TabularErr)
		}
	}

	if d.Blob != nil {
		ctx, span := d.Telemetry.StartSpan(ctx, "sink.upload")
		res.BlobAttempted = true
		res.Blob = d.Blob.Upload(ctx, rec)
		d.Telemetry.RecordUpload(ctx, d.Blob.Name(), res.Blob.OK)
		span.End()

		if res.Blob.OK {
			log.InfoContext(ctx, "record uploaded", "backend", d.Blob.Name())
		} else {
			log.WarnContext(ctx, "blob upload skipped or failed",
				"backend", d.Blob.Name(), "reason", res.Blob.Message)
		}
	}

	return res
}
