// Command intake finalizes completed study sessions: it reads a session
// payload, builds the canonical storage record and appends it to the
// configured tabular and blob backends.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fieldwork-labs/intake/pkg/bank"
	"github.com/fieldwork-labs/intake/pkg/config"
	"github.com/fieldwork-labs/intake/pkg/observability"
	"github.com/fieldwork-labs/intake/pkg/pipeline"
	"github.com/fieldwork-labs/intake/pkg/session"
	"github.com/fieldwork-labs/intake/pkg/sheet"
	"github.com/fieldwork-labs/intake/pkg/sink"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint, split out for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	switch args[1] {
	case "finalize":
		return runFinalize(args[2:], stdout, stderr)
	case "columns":
		for _, col := range sheet.Columns {
			_, _ = fmt.Fprintln(stdout, col)
		}
		return 0
	case "doctor":
		return runDoctor(stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n", args[1])
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage: intake <finalize|columns|doctor> [flags]")
	_, _ = fmt.Fprintln(w, "  finalize -payload <file|-> [-profile <yaml>] [-destination <name>]")
	_, _ = fmt.Fprintln(w, "  columns   print the column schema, one per line")
	_, _ = fmt.Fprintln(w, "  doctor    verify item banks and backend configuration")
}

// sessionFile is the on-disk shape the UI layer hands over: the accumulated
// payload plus the optional in-memory record object.
type sessionFile struct {
	Payload session.Payload `json:"payload"`
	Record  *session.Record `json:"record,omitempty"`
}

func runFinalize(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("finalize", flag.ContinueOnError)
	fs.SetOutput(stderr)
	payloadPath := fs.String("payload", "", "session payload JSON file, or - for stdin")
	profilePath := fs.String("profile", "", "optional YAML config profile")
	destination := fs.String("destination", "", "override worksheet/table destination")
	telemetry := fs.Bool("telemetry", false, "enable OTLP telemetry export")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *payloadPath == "" {
		_, _ = fmt.Fprintln(stderr, "finalize: -payload is required")
		return 2
	}

	cfg, err := config.LoadWithProfile(*profilePath)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}

	log := newLogger(stderr, cfg.LogLevel)
	ctx := context.Background()

	// Fail fast on authored-data bugs before touching any backend.
	if _, err := bank.LoadWeightedItem(); err != nil {
		log.ErrorContext(ctx, "item bank verification failed", "error", err)
		return 1
	}

	sess, err := readSession(*payloadPath)
	if err != nil {
		log.ErrorContext(ctx, "payload read failed", "error", err)
		return 1
	}

	telCfg := observability.DefaultConfig()
	telCfg.Enabled = *telemetry
	tel, err := observability.New(ctx, telCfg)
	if err != nil {
		log.ErrorContext(ctx, "telemetry setup failed", "error", err)
		return 1
	}
	defer func() { _ = tel.Shutdown(ctx) }()

	d, err := pipeline.NewDispatcher(ctx, cfg, tel, log)
	if err != nil {
		log.ErrorContext(ctx, "dispatcher setup failed", "error", err)
		return 1
	}
	if *destination != "" {
		d.Destination = *destination
	}

	res, rec, err := pipeline.Finalize(ctx, d, sess, log)
	if err != nil {
		log.ErrorContext(ctx, "finalize failed", "error", err)
		return 1
	}

	_ = json.NewEncoder(stdout).Encode(map[string]any{
		"participant_id":    rec.ParticipantID,
		"schema_version":    rec.SchemaVersion,
		"tabular_attempted": res.TabularAttempted,
		"tabular_ok":        res.TabularAttempted && res.TabularErr == nil,
		"blob_attempted":    res.BlobAttempted,
		"blob_ok":           res.Blob.OK,
	})

	// Only the primary tabular path blocks session completion, and an
	// unconfigured backend is a skip, not a failure.
	if res.TabularErr != nil && !errors.Is(res.TabularErr, sink.ErrBackendUnavailable) {
		return 1
	}
	return 0
}

func runDoctor(stdout, stderr io.Writer) int {
	if _, err := bank.LoadWeightedItem(); err != nil {
		_, _ = fmt.Fprintln(stderr, "item bank:", err)
		return 1
	}
	_, _ = fmt.Fprintln(stdout, "item bank: ok")

	cfg := config.Load()
	_, _ = fmt.Fprintf(stdout, "tabular backend: %s\n", cfg.TabularBackend)
	_, _ = fmt.Fprintf(stdout, "blob backend: %s\n", cfg.BlobBackend)
	if cfg.TabularBackend == config.TabularSheets && (cfg.SpreadsheetID == "" || cfg.CredentialsJSON == "") {
		_, _ = fmt.Fprintln(stdout, "sheets: not configured (will report unavailable)")
	}
	return 0
}

func readSession(path string) (*session.Session, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path) //nolint:gosec // operator-supplied path
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var file sessionFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &session.Session{Payload: file.Payload, Record: file.Record}, nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
