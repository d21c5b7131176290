// Package sheet projects a canonical record onto the fixed column schema of
// the tabular stores. The projection is pure and idempotent: the same record
// always yields the same fixed-width row.
package sheet

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/fieldwork-labs/intake/pkg/canonicalize"
	"github.com/fieldwork-labs/intake/pkg/record"
	"github.com/fieldwork-labs/intake/pkg/sanitize"
	"github.com/fieldwork-labs/intake/pkg/versioning"
)

// ErrInvalidRecord marks a projection attempt on something that is not a
// record. This is a programming error upstream, not missing participant data,
// and is never absorbed.
var ErrInvalidRecord = errors.New("sheet: record is not a valid storage record")

// Columns is the stable, ordered column schema. Appends only; never reorder
// or remove. storage_record_json carries the full record so narrower columns
// can be recovered if this schema ever changes shape.
var Columns = []string{
	"participant_id",
	"condition",
	"condition_specificity",
	"phase_order",
	"start_time",
	"end_time",
	"completion_seconds",
	"task_duration_seconds",
	"total_inference_questions",
	"inference_correct_count",
	"inference_accuracy_pct",
	"consent_json",
	"consent_flags_json",
	"demographic_json",
	"anthro_responses_json",
	"achive_responses_json",
	"difficulty_checks_json",
	"motivation_responses_json",
	"motivation_scores_json",
	"manipulation_check_json",
	"inference_summary_json",
	"inference_details_json",
	"inference_responses_json",
	"feedback_messages_json",
	"storage_record_json",
	"open_feedback_text",
	"phone_number",
	"phone_number_raw",
	"praise_condition",
	"feedback_condition",
	"anthro_count",
	"achive_count",
	"motivation_count",
	"schema_version",
}

// BuildRow projects rec onto Columns. The returned slice always has exactly
// len(Columns) cells; a missing value projects to the empty string. SavedAt
// and SchemaVersion are defaulted in place when absent, which keeps repeated
// projections of the same record identical.
func BuildRow(rec *record.CanonicalRecord) ([]string, error) {
	if rec == nil {
		return nil, ErrInvalidRecord
	}

	if rec.SavedAt == "" {
		rec.SavedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if rec.SchemaVersion == "" {
		rec.SchemaVersion = versioning.SchemaVersion
	}

	row := []string{
		rec.ParticipantID,
		rec.Condition,
		rec.ConditionSpecificity,
		strings.Join(rec.PhaseOrder, ","),
		rec.StartTime,
		rec.EndTime,
		numberCell(derefFloat(rec.CompletionSeconds), rec.CompletionSeconds == nil),
		numberCell(rec.TaskDurationSeconds, false),
		fmt.Sprintf("%d", rec.TotalInferenceQuestions),
		fmt.Sprintf("%d", rec.InferenceCorrectCount),
		accuracyCell(rec.InferenceAccuracyPct),
		jsonCell(rec.Consent),
		jsonCell(rec.ConsentFlags),
		jsonCell(rec.Demographic),
		jsonCell(rec.AnthroResponses),
		jsonCell(rec.AchiveResponses),
		jsonCell(rec.DifficultyChecks),
		jsonCell(rec.MotivationResponses),
		jsonCell(rec.MotivationScores),
		jsonCell(rec.ManipulationCheck),
		jsonCell(rec.InferenceSummary),
		jsonCell(rec.InferenceDetails),
		jsonCell(rec.InferenceResponses),
		jsonCell(rec.FeedbackMessages),
		recordCell(rec),
		rec.OpenFeedbackText,
		rec.PhoneNumber,
		rec.PhoneNumberRaw,
		rec.PraiseCondition,
		rec.FeedbackCondition,
		fmt.Sprintf("%d", rec.AnthroCount),
		fmt.Sprintf("%d", rec.AchiveCount),
		fmt.Sprintf("%d", rec.MotivationCount),
		rec.SchemaVersion,
	}

	if len(row) != len(Columns) {
		return nil, fmt.Errorf("sheet: projected %d cells for %d columns: %w",
			len(row), len(Columns), ErrInvalidRecord)
	}
	return row, nil
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// numberCell renders a numeric cell, keeping "no value" distinct from zero.
func numberCell(f float64, missing bool) string {
	if missing {
		return ""
	}
	v := sanitize.FormatNumber(f, sanitize.KindFloat, 3)
	return fmt.Sprint(v)
}

func accuracyCell(f *float64) string {
	if f == nil {
		return ""
	}
	return fmt.Sprint(sanitize.FormatNumber(*f, sanitize.KindFloat, 4))
}

// jsonCell serializes a composite field into a single cell with non-ASCII
// characters kept verbatim. Nil slices and maps render as their empty
// composite, never the text "null", so unanswered instruments read the same
// as answered-but-empty ones. An encode failure routes the value through the
// sanitizer once and retries; the second attempt cannot fail.
func jsonCell(v any) string {
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return "[]"
		}
	case reflect.Map:
		if rv.IsNil() {
			return "{}"
		}
	}

	s, err := encodeNoEscape(v)
	if err != nil {
		s, err = encodeNoEscape(sanitize.ToJSONSafe(v))
		if err != nil {
			return ""
		}
	}
	return s
}

// recordCell carries the whole canonical record in one cell, canonically
// encoded so the blob is byte-stable for identical records.
func recordCell(rec *record.CanonicalRecord) string {
	b, err := canonicalize.JCS(rec)
	if err != nil {
		return jsonCell(sanitize.ToJSONSafe(rec))
	}
	return string(b)
}

func encodeNoEscape(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
