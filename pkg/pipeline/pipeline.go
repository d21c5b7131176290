// Package pipeline wires the configured backends into a sink dispatcher and
// drives a completed session through record building, projection and
// dispatch.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fieldwork-labs/intake/pkg/config"
	"github.com/fieldwork-labs/intake/pkg/observability"
	"github.com/fieldwork-labs/intake/pkg/record"
	"github.com/fieldwork-labs/intake/pkg/schema"
	"github.com/fieldwork-labs/intake/pkg/session"
	"github.com/fieldwork-labs/intake/pkg/sheet"
	"github.com/fieldwork-labs/intake/pkg/sheets"
	"github.com/fieldwork-labs/intake/pkg/sink"
	"github.com/fieldwork-labs/intake/pkg/store"
)

// NewDispatcher builds the sink dispatcher for cfg. A backend whose
// configuration is missing becomes an explicit "unavailable" sink rather than
// an error: a half-configured deployment still persists whatever it can.
func NewDispatcher(ctx context.Context, cfg *config.Config, tel *observability.Provider, log *slog.Logger) (*sink.Dispatcher, error) {
	d := &sink.Dispatcher{
		TabularName: cfg.TabularBackend,
		Destination: cfg.WorksheetName,
		Telemetry:   tel,
		Log:         log,
	}

	switch cfg.TabularBackend {
	case config.TabularSheets:
		client, err := sheets.New(sheets.Config{
			SpreadsheetID:   cfg.SpreadsheetID,
			WorksheetName:   cfg.WorksheetName,
			CredentialsJSON: cfg.CredentialsJSON,
		})
		if err != nil {
			d.Tabular = sink.UnavailableTabular{Reason: err.Error()}
		} else {
			d.Tabular = client
		}
	case config.TabularSQLite:
		rows, err := store.NewSQLiteRows(filepath.Join(cfg.DataDir, "responses.db"))
		if err != nil {
			return nil, fmt.Errorf("pipeline: sqlite sink: %w", err)
		}
		d.Tabular = rows
		d.Destination = "" // table name, defaulted by the store
	case config.TabularPostgres:
		if cfg.DatabaseURL == "" {
			d.Tabular = sink.UnavailableTabular{Reason: "postgres: INTAKE_DATABASE_URL not set"}
			break
		}
		rows, err := store.NewPostgresRows(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("pipeline: postgres sink: %w", err)
		}
		d.Tabular = rows
		d.Destination = ""
	case config.TabularNone:
		// no tabular path
	default:
		return nil, fmt.Errorf("pipeline: unsupported tabular backend %q", cfg.TabularBackend)
	}

	switch cfg.BlobBackend {
	case config.BlobGCS:
		blob, err := sink.NewGCSBlobSink(ctx, sink.GCSBlobSinkConfig{Bucket: cfg.GCSBucket})
		if err != nil {
			d.Blob = sink.UnavailableBlob{Reason: err.Error()}
		} else {
			d.Blob = blob
		}
	case config.BlobS3:
		blob, err := sink.NewS3BlobSink(ctx, sink.S3BlobSinkConfig{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
		})
		if err != nil {
			d.Blob = sink.UnavailableBlob{Reason: err.Error()}
		} else {
			d.Blob = blob
		}
	case config.BlobFS:
		blob, err := sink.NewFSBlobSink(filepath.Join(cfg.DataDir, "blobs"))
		if err != nil {
			return nil, fmt.Errorf("pipeline: fs blob sink: %w", err)
		}
		d.Blob = blob
	case config.BlobNone:
		// no blob path
	default:
		return nil, fmt.Errorf("pipeline: unsupported blob backend %q", cfg.BlobBackend)
	}

	return d, nil
}

// Finalize turns a completed session into a canonical record and fans it out
// to the sinks. The returned error covers projection contract violations
// only; per-backend outcomes live in the Result.
func Finalize(ctx context.Context, d *sink.Dispatcher, sess *session.Session, log *slog.Logger) (sink.Result, *record.CanonicalRecord, error) {
	if log == nil {
		log = slog.Default()
	}
	var payload *session.Payload
	var rec *session.Record
	if sess != nil {
		payload = &sess.Payload
		rec = sess.Record
	}

	stored := record.BuildStorageRecord(payload, rec)

	// Advisory: a schema violation is a bug report, not a reason to drop data.
	if err := schema.Validate(stored); err != nil {
		log.WarnContext(ctx, "storage record failed schema validation",
			"participant_id", stored.ParticipantID, "error", err)
	}

	row, err := sheet.BuildRow(stored)
	if err != nil {
		return sink.Result{}, stored, fmt.Errorf("pipeline: row projection: %w", err)
	}

	return d.Dispatch(ctx, row, stored), stored, nil
}
