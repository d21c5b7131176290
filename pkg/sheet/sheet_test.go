package sheet_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldwork-labs/intake/pkg/record"
	"github.com/fieldwork-labs/intake/pkg/scoring"
	"github.com/fieldwork-labs/intake/pkg/session"
	"github.com/fieldwork-labs/intake/pkg/sheet"
	"github.com/fieldwork-labs/intake/pkg/versioning"
)

func sampleRecord() *record.CanonicalRecord {
	return record.BuildStorageRecord(&session.Payload{
		ParticipantID:   "p-42",
		PraiseCondition: "specific_praise",
		PhaseOrder:      []string{"consent", "scales", "writing", "inference"},
		StartTime:       "2026-03-01T10:00:00Z",
		EndTime:         "2026-03-01T10:40:00Z",
		Demographic:     map[string]any{"gender": "여성"},
		InferenceDetails: []scoring.TrialDetail{
			{Round: 1, Selected: "a", Correct: "a", ResponseTime: 2},
		},
		OpenFeedbackText: "의견 <없음> & 감사",
		Phone:            "010-1234-5678",
	}, nil)
}

func TestBuildRow_FixedWidth(t *testing.T) {
	row, err := sheet.BuildRow(sampleRecord())
	require.NoError(t, err)
	assert.Len(t, row, len(sheet.Columns))
}

func TestBuildRow_NilRecord(t *testing.T) {
	_, err := sheet.BuildRow(nil)
	assert.ErrorIs(t, err, sheet.ErrInvalidRecord)
}

// Projecting the same record twice yields byte-identical rows, including
// when the caller left saved_at and schema_version blank.
func TestBuildRow_Idempotent(t *testing.T) {
	rec := sampleRecord()
	rec.SavedAt = ""
	rec.SchemaVersion = ""

	first, err := sheet.BuildRow(rec)
	require.NoError(t, err)
	second, err := sheet.BuildRow(rec)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEmpty(t, rec.SavedAt)
	assert.Equal(t, versioning.SchemaVersion, rec.SchemaVersion)
}

func TestBuildRow_MissingValuesProjectToEmpty(t *testing.T) {
	rec := record.BuildStorageRecord(nil, nil)
	row, err := sheet.BuildRow(rec)
	require.NoError(t, err)
	require.Len(t, row, len(sheet.Columns))

	cells := rowByColumn(row)
	assert.Equal(t, "", cells["participant_id"])
	assert.Equal(t, "", cells["completion_seconds"], "unknown completion is blank, not 0")
	assert.Equal(t, "", cells["inference_accuracy_pct"])
	assert.Equal(t, "0", cells["total_inference_questions"])
}

// Composite columns never read "null": unanswered instruments project as
// empty composites, same as answered-but-empty ones.
func TestBuildRow_NilCompositesProjectEmpty(t *testing.T) {
	rec := record.BuildStorageRecord(nil, nil)
	row, err := sheet.BuildRow(rec)
	require.NoError(t, err)

	cells := rowByColumn(row)
	for _, col := range []string{
		"anthro_responses_json", "achive_responses_json",
		"motivation_responses_json", "inference_responses_json",
		"inference_details_json", "feedback_messages_json",
	} {
		assert.Equal(t, "[]", cells[col], col)
	}
	for _, col := range []string{
		"consent_json", "consent_flags_json", "demographic_json",
		"difficulty_checks_json", "motivation_scores_json",
	} {
		assert.Equal(t, "{}", cells[col], col)
	}
}

func TestBuildRow_NonASCIIPreserved(t *testing.T) {
	row, err := sheet.BuildRow(sampleRecord())
	require.NoError(t, err)
	cells := rowByColumn(row)

	assert.Contains(t, cells["demographic_json"], "female")
	assert.Equal(t, "의견 <없음> & 감사", cells["open_feedback_text"])

	// JSON cells keep non-ASCII verbatim and skip HTML escaping.
	assert.NotContains(t, cells["storage_record_json"], `\u`)
	assert.Contains(t, cells["storage_record_json"], "의견 <없음> & 감사")
}

func TestBuildRow_StorageRecordBlobRoundTrips(t *testing.T) {
	rec := sampleRecord()
	row, err := sheet.BuildRow(rec)
	require.NoError(t, err)
	cells := rowByColumn(row)

	blob := cells["storage_record_json"]
	assert.True(t, strings.HasPrefix(blob, "{"))
	assert.Contains(t, blob, `"participant_id":"p-42"`)
	assert.Contains(t, blob, `"schema_version":"`+versioning.SchemaVersion+`"`)
	assert.Contains(t, blob, `"payload_snapshot"`)
}

func TestBuildRow_ScalarColumns(t *testing.T) {
	row, err := sheet.BuildRow(sampleRecord())
	require.NoError(t, err)
	cells := rowByColumn(row)

	assert.Equal(t, "p-42", cells["participant_id"])
	assert.Equal(t, "specific", cells["condition_specificity"])
	assert.Equal(t, "consent,scales,writing,inference", cells["phase_order"])
	assert.Equal(t, "1", cells["total_inference_questions"])
	assert.Equal(t, "1", cells["inference_correct_count"])
	assert.Equal(t, "1", cells["inference_accuracy_pct"])
	assert.Equal(t, "01012345678", cells["phone_number"])
	assert.Equal(t, "010-1234-5678", cells["phone_number_raw"])
	assert.Equal(t, versioning.SchemaVersion, cells["schema_version"])
}

func rowByColumn(row []string) map[string]string {
	out := make(map[string]string, len(row))
	for i, col := range sheet.Columns {
		out[col] = row[i]
	}
	return out
}
