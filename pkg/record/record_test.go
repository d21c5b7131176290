package record

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldwork-labs/intake/pkg/bank"
	"github.com/fieldwork-labs/intake/pkg/scoring"
	"github.com/fieldwork-labs/intake/pkg/session"
	"github.com/fieldwork-labs/intake/pkg/versioning"
)

func stubNow(t *testing.T, iso string) {
	t.Helper()
	fixed, err := time.Parse(time.RFC3339, iso)
	require.NoError(t, err)
	orig := now
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = orig })
}

// An abandoned session still yields a complete, versioned record.
func TestBuildStorageRecord_EmptyInputs(t *testing.T) {
	stubNow(t, "2026-03-01T09:00:00Z")

	rec := BuildStorageRecord(nil, nil)

	assert.Equal(t, versioning.SchemaVersion, rec.SchemaVersion)
	assert.Equal(t, "2026-03-01T09:00:00Z", rec.SavedAt)
	assert.Equal(t, SpecificityUnknown, rec.ConditionSpecificity)
	assert.Equal(t, "", rec.StartTime)
	assert.Equal(t, "2026-03-01T09:00:00Z", rec.EndTime, "a session always has some end marker")
	assert.Nil(t, rec.CompletionSeconds)
	assert.Nil(t, rec.InferenceAccuracyPct)
	assert.Equal(t, 0, rec.AnthroCount)
	assert.Len(t, rec.ManipulationCheck, len(bank.ManipulationCheckItems))
	assert.NotNil(t, rec.PayloadSnapshot)
	assert.NotNil(t, rec.RecordSnapshot)

	// The whole record must be JSON-serializable without loss.
	_, err := json.Marshal(rec)
	require.NoError(t, err)
}

func TestBuildStorageRecord_ConditionResolutionOrder(t *testing.T) {
	r := &session.Record{Condition: "from-record"}

	rec := BuildStorageRecord(&session.Payload{
		PraiseCondition:   "praise-specific",
		FeedbackCondition: "feedback-surface",
	}, r)
	assert.Equal(t, "praise-specific", rec.Condition)

	rec = BuildStorageRecord(&session.Payload{FeedbackCondition: "feedback-surface"}, r)
	assert.Equal(t, "feedback-surface", rec.Condition)

	rec = BuildStorageRecord(&session.Payload{}, r)
	assert.Equal(t, "from-record", rec.Condition)

	rec = BuildStorageRecord(&session.Payload{}, nil)
	assert.Equal(t, "", rec.Condition)
}

func TestClassifyCondition(t *testing.T) {
	cases := map[string]string{
		"specific_praise":  SpecificitySpecific,
		"surface_feedback": SpecificitySurface,
		"구체적 칭찬":          SpecificitySpecific,
		"피상적 칭찬":          SpecificitySurface,
		"":                 SpecificityUnknown,
		"garbage!!":        SpecificityUnknown,
	}
	for condition, want := range cases {
		rec := BuildStorageRecord(&session.Payload{PraiseCondition: condition}, nil)
		assert.Equal(t, want, rec.ConditionSpecificity, "condition %q", condition)
	}
}

func TestBuildStorageRecord_CompletionResolution(t *testing.T) {
	details := []scoring.TrialDetail{
		{Round: 1, Selected: 1, Correct: 1, ResponseTime: 2},
		{Round: 1, Selected: 2, Correct: 1, ResponseTime: 3.5},
	}

	// Explicit completion time wins.
	explicit := 99.0
	rec := BuildStorageRecord(
		&session.Payload{InferenceDetails: details},
		&session.Record{CompletionTime: &explicit},
	)
	require.NotNil(t, rec.CompletionSeconds)
	assert.Equal(t, 99.0, *rec.CompletionSeconds)

	// Fallback: sum of trial times when non-zero.
	rec = BuildStorageRecord(&session.Payload{InferenceDetails: details}, nil)
	require.NotNil(t, rec.CompletionSeconds)
	assert.Equal(t, 5.5, *rec.CompletionSeconds)

	// Zero sum means unknown, not zero seconds.
	rec = BuildStorageRecord(&session.Payload{}, nil)
	assert.Nil(t, rec.CompletionSeconds)
}

func TestBuildStorageRecord_TimestampFallbacks(t *testing.T) {
	stubNow(t, "2026-03-01T12:00:00Z")

	r := &session.Record{Timestamps: session.Timestamps{
		Start: "2026-03-01T10:00:00Z",
		End:   "2026-03-01T11:00:00Z",
	}}

	rec := BuildStorageRecord(&session.Payload{
		StartTime: "payload-start",
		EndTime:   "payload-end",
	}, r)
	assert.Equal(t, "payload-start", rec.StartTime)
	assert.Equal(t, "payload-end", rec.EndTime)

	rec = BuildStorageRecord(&session.Payload{}, r)
	assert.Equal(t, "2026-03-01T10:00:00Z", rec.StartTime)
	assert.Equal(t, "2026-03-01T11:00:00Z", rec.EndTime)

	rec = BuildStorageRecord(&session.Payload{}, &session.Record{})
	assert.Equal(t, "2026-03-01T12:00:00Z", rec.EndTime)
}

// The manipulation-check map always has exactly the canonical key set, no
// matter what subset (or superset) the respondent submitted.
func TestBuildStorageRecord_ManipulationCheckCompleteness(t *testing.T) {
	payloads := []map[string]any{
		nil,
		{},
		{"mc01": 4},
		{"mc01": 4, "mc18": "그렇다", "rogue_item": 7},
	}

	for _, raw := range payloads {
		rec := BuildStorageRecord(&session.Payload{ManipulationCheck: raw}, nil)
		require.Len(t, rec.ManipulationCheck, len(bank.ManipulationCheckItems))
		for _, id := range bank.ManipulationCheckItems {
			_, present := rec.ManipulationCheck[id]
			assert.True(t, present, "missing canonical item %s", id)
		}
		_, rogue := rec.ManipulationCheck["rogue_item"]
		assert.False(t, rogue)
	}

	rec := BuildStorageRecord(&session.Payload{
		ManipulationCheck: map[string]any{"mc01": 4},
	}, nil)
	assert.Equal(t, 4, rec.ManipulationCheck["mc01"])
	assert.Nil(t, rec.ManipulationCheck["mc02"])
}

func TestBuildStorageRecord_SanitizesExternalValues(t *testing.T) {
	rec := BuildStorageRecord(&session.Payload{
		Demographic:  map[string]any{"gender": "여성", "age": 29},
		ConsentFlags: map[string]any{"participate": "동의", "recording": "아니요"},
		Phone:        "010-1234-5678",
	}, nil)

	assert.Equal(t, "female", rec.Demographic["gender"])
	assert.Equal(t, map[string]bool{"participate": true, "recording": false}, rec.ConsentFlags)
	assert.Equal(t, "01012345678", rec.PhoneNumber)
	assert.Equal(t, "010-1234-5678", rec.PhoneNumberRaw)
}

func TestBuildStorageRecord_CountsAnsweredItems(t *testing.T) {
	three, five := 3, 5
	rec := BuildStorageRecord(&session.Payload{
		AnthroResponses:     []*int{&three, nil, &five, nil},
		MotivationResponses: []*int{nil, nil},
	}, nil)

	assert.Equal(t, 2, rec.AnthroCount)
	assert.Equal(t, 0, rec.AchiveCount)
	assert.Equal(t, 0, rec.MotivationCount)
}

func TestBuildStorageRecord_InferenceSummaryEmbedded(t *testing.T) {
	rec := BuildStorageRecord(&session.Payload{
		InferenceDetails: []scoring.TrialDetail{
			{Round: 1, Selected: "a", Correct: "a", ResponseTime: 2},
			{Round: 2, Selected: "b", Correct: "c", ResponseTime: 4},
		},
	}, nil)

	assert.Equal(t, 2, rec.TotalInferenceQuestions)
	assert.Equal(t, 1, rec.InferenceCorrectCount)
	require.NotNil(t, rec.InferenceAccuracyPct)
	assert.Equal(t, 0.5, *rec.InferenceAccuracyPct)
	assert.Len(t, rec.InferenceSummary.Rounds, 2)
}

func TestBuildStorageRecord_SnapshotsAreVerbatim(t *testing.T) {
	p := &session.Payload{ParticipantID: "p-7", OpenFeedbackText: "자유 의견"}
	rec := BuildStorageRecord(p, &session.Record{Condition: "c"})

	assert.Equal(t, "p-7", rec.PayloadSnapshot["participant_id"])
	assert.Equal(t, "자유 의견", rec.PayloadSnapshot["open_feedback_text"])
	assert.Equal(t, "c", rec.RecordSnapshot["condition"])
}
