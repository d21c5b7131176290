// Package record builds the canonical versioned snapshot of one completed
// session. Building never fails: every field defaults independently when the
// payload is partial, so an abandoned session still yields a usable record.
package record

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fieldwork-labs/intake/pkg/bank"
	"github.com/fieldwork-labs/intake/pkg/sanitize"
	"github.com/fieldwork-labs/intake/pkg/scoring"
	"github.com/fieldwork-labs/intake/pkg/session"
	"github.com/fieldwork-labs/intake/pkg/versioning"
)

// Condition specificity classifications.
const (
	SpecificitySpecific = "specific"
	SpecificitySurface  = "surface"
	SpecificityUnknown  = "unknown"
)

// now is swapped out in tests.
var now = time.Now

// CanonicalRecord is the flat, versioned, JSON-safe snapshot appended to the
// durable stores. Immutable once built.
type CanonicalRecord struct {
	SchemaVersion string `json:"schema_version"`
	SavedAt       string `json:"saved_at"`

	ParticipantID        string   `json:"participant_id"`
	Condition            string   `json:"condition"`
	ConditionSpecificity string   `json:"condition_specificity"`
	PhaseOrder           []string `json:"phase_order"`
	PraiseCondition      string   `json:"praise_condition"`
	FeedbackCondition    string   `json:"feedback_condition"`

	StartTime           string   `json:"start_time"`
	EndTime             string   `json:"end_time"`
	CompletionSeconds   *float64 `json:"completion_seconds"`
	TaskDurationSeconds float64  `json:"task_duration_seconds"`

	TotalInferenceQuestions int                   `json:"total_inference_questions"`
	InferenceCorrectCount   int                   `json:"inference_correct_count"`
	InferenceAccuracyPct    *float64              `json:"inference_accuracy_pct"`
	InferenceSummary        scoring.Summary       `json:"inference_summary"`
	InferenceDetails        []scoring.TrialDetail `json:"inference_details"`
	InferenceResponses      []*int                `json:"inference_responses"`

	Consent      map[string]any  `json:"consent"`
	ConsentFlags map[string]bool `json:"consent_flags"`
	Demographic  map[string]any  `json:"demographic"`

	AnthroResponses     []*int         `json:"anthro_responses"`
	AchiveResponses     []*int         `json:"achive_responses"`
	MotivationResponses []*int         `json:"motivation_responses"`
	MotivationScores    map[string]any `json:"motivation_scores"`
	DifficultyChecks    map[string]any `json:"difficulty_checks"`
	ManipulationCheck   map[string]any `json:"manipulation_check"`

	AnthroCount     int `json:"anthro_count"`
	AchiveCount     int `json:"achive_count"`
	MotivationCount int `json:"motivation_count"`

	FeedbackMessages []string `json:"feedback_messages"`
	OpenFeedbackText string   `json:"open_feedback_text"`

	PhoneNumber    string `json:"phone_number"`
	PhoneNumberRaw string `json:"phone_number_raw"`

	// Verbatim snapshots for audit. These survive even if a narrower field
	// is later dropped from the column schema.
	PayloadSnapshot map[string]any `json:"payload_snapshot"`
	RecordSnapshot  map[string]any `json:"record_snapshot"`
}

// BuildStorageRecord assembles the canonical record from a session payload
// and an optional in-memory record object. Both arguments may be nil or
// arbitrarily incomplete.
func BuildStorageRecord(p *session.Payload, r *session.Record) *CanonicalRecord {
	if p == nil {
		p = &session.Payload{}
	}

	condition := firstNonEmpty(p.PraiseCondition, p.FeedbackCondition, recordCondition(r))
	summary := scoring.SummarizeInference(p.InferenceDetails)

	rec := &CanonicalRecord{
		SchemaVersion: versioning.SchemaVersion,
		SavedAt:       now().UTC().Format(time.RFC3339),

		ParticipantID:        strings.TrimSpace(p.ParticipantID),
		Condition:            condition,
		ConditionSpecificity: classifyCondition(condition),
		PhaseOrder:           append([]string(nil), p.PhaseOrder...),
		PraiseCondition:      p.PraiseCondition,
		FeedbackCondition:    p.FeedbackCondition,

		StartTime:           resolveStart(p, r),
		EndTime:             resolveEnd(p, r),
		CompletionSeconds:   resolveCompletion(p, r),
		TaskDurationSeconds: p.TaskDurationSeconds,

		TotalInferenceQuestions: summary.TotalQuestions,
		InferenceCorrectCount:   summary.CorrectCount,
		InferenceAccuracyPct:    summary.AccuracyPct,
		InferenceSummary:        summary,
		InferenceDetails:        append([]scoring.TrialDetail(nil), p.InferenceDetails...),
		InferenceResponses:      append([]*int(nil), p.InferenceResponses...),

		Consent:      sanitizeMap(p.Consent),
		ConsentFlags: consentFlags(p.ConsentFlags),
		Demographic:  sanitizeMap(p.Demographic),

		AnthroResponses:     append([]*int(nil), p.AnthroResponses...),
		AchiveResponses:     append([]*int(nil), p.AchiveResponses...),
		MotivationResponses: append([]*int(nil), p.MotivationResponses...),
		MotivationScores:    sanitizeMap(p.MotivationScores),
		DifficultyChecks:    sanitizeMap(p.DifficultyChecks),

		AnthroCount:     countAnswered(p.AnthroResponses),
		AchiveCount:     countAnswered(p.AchiveResponses),
		MotivationCount: countAnswered(p.MotivationResponses),

		FeedbackMessages: append([]string(nil), p.FeedbackMessages...),
		OpenFeedbackText: p.OpenFeedbackText,

		PhoneNumber:    sanitize.SanitizePhone(p.Phone),
		PhoneNumberRaw: p.Phone,

		PayloadSnapshot: snapshot(p),
		RecordSnapshot:  snapshot(r),
	}

	// Forced last, after all assembly: the manipulation-check map carries
	// exactly the canonical item IDs no matter what subset (or superset) the
	// respondent submitted.
	rec.ManipulationCheck = manipulationCheck(p.ManipulationCheck)

	return rec
}

func recordCondition(r *session.Record) string {
	if r == nil {
		return ""
	}
	return r.Condition
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// classifyCondition derives specificity by substring only; the condition tag
// is not required to be well-formed. Both the canonical ASCII tokens and the
// source-language labels are recognized.
func classifyCondition(condition string) string {
	c := strings.ToLower(sanitize.NormalizeLabel(condition))
	switch {
	case strings.Contains(c, "specific") || strings.Contains(c, "구체"):
		return SpecificitySpecific
	case strings.Contains(c, "surface") || strings.Contains(c, "피상"):
		return SpecificitySurface
	default:
		return SpecificityUnknown
	}
}

func resolveStart(p *session.Payload, r *session.Record) string {
	if p.StartTime != "" {
		return p.StartTime
	}
	if r != nil {
		return r.Timestamps.Start
	}
	return ""
}

// resolveEnd falls back to "now": a session always has some end marker.
func resolveEnd(p *session.Payload, r *session.Record) string {
	if p.EndTime != "" {
		return p.EndTime
	}
	if r != nil && r.Timestamps.End != "" {
		return r.Timestamps.End
	}
	return now().UTC().Format(time.RFC3339)
}

// resolveCompletion prefers the explicit completion time, then the summed
// trial response times when that sum is non-zero, then nil ("unknown", which
// is not the same as zero seconds).
func resolveCompletion(p *session.Payload, r *session.Record) *float64 {
	if r != nil && r.CompletionTime != nil {
		v := *r.CompletionTime
		return &v
	}
	var sum float64
	for _, d := range p.InferenceDetails {
		if d.ResponseTime > 0 {
			sum += d.ResponseTime
		}
	}
	if sum != 0 {
		return &sum
	}
	return nil
}

// sanitizeMap makes every value JSON-safe and normalizes string leaves
// through the label table.
func sanitizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = sanitize.NormalizeLabel(s)
			continue
		}
		out[k] = sanitize.ToJSONSafe(v)
	}
	return out
}

func consentFlags(m map[string]any) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = sanitize.IsAffirmative(v)
	}
	return out
}

// manipulationCheck projects the raw submission onto the canonical item-ID
// set. Unknown IDs are dropped, missing IDs map to nil.
func manipulationCheck(raw map[string]any) map[string]any {
	out := make(map[string]any, len(bank.ManipulationCheckItems))
	for _, id := range bank.ManipulationCheckItems {
		if v, ok := raw[id]; ok {
			out[id] = sanitize.ToJSONSafe(v)
		} else {
			out[id] = nil
		}
	}
	return out
}

func countAnswered(responses []*int) int {
	n := 0
	for _, r := range responses {
		if r != nil {
			n++
		}
	}
	return n
}

// snapshot renders v as a generic JSON map for the audit columns. Failure
// degrades to the sanitizer's string-coerced form rather than losing data.
func snapshot(v any) map[string]any {
	if v == nil {
		return map[string]any{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return map[string]any{"raw": fmt.Sprint(sanitize.ToJSONSafe(v))}
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}
