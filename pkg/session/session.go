// Package session holds the caller-owned state accumulated while a
// participant walks through the study. The UI layer mutates a Session between
// steps; the core only reads the finished Payload and Record once, when the
// storage record is built. Any field may be left at its zero value; a session
// abandoned partway still produces a best-effort record.
package session

import "github.com/fieldwork-labs/intake/pkg/scoring"

// Payload is the recognized-key view of everything a session can collect.
// Zero values mean "never answered". Response slices are fixed-length per
// instrument; a nil element is an unanswered item.
type Payload struct {
	ParticipantID     string   `json:"participant_id,omitempty"`
	PraiseCondition   string   `json:"praise_condition,omitempty"`
	FeedbackCondition string   `json:"feedback_condition,omitempty"`
	PhaseOrder        []string `json:"phase_order,omitempty"`

	StartTime           string  `json:"start_time,omitempty"`
	EndTime             string  `json:"end_time,omitempty"`
	TaskDurationSeconds float64 `json:"task_duration_seconds,omitempty"`

	Consent      map[string]any `json:"consent,omitempty"`
	ConsentFlags map[string]any `json:"consent_flags,omitempty"`
	Demographic  map[string]any `json:"demographic,omitempty"`

	AnthroResponses     []*int         `json:"anthro_responses,omitempty"`
	AchiveResponses     []*int         `json:"achive_responses,omitempty"`
	MotivationResponses []*int         `json:"motivation_responses,omitempty"`
	MotivationScores    map[string]any `json:"motivation_scores,omitempty"`
	DifficultyChecks    map[string]any `json:"difficulty_checks,omitempty"`
	ManipulationCheck   map[string]any `json:"manipulation_check,omitempty"`

	InferenceDetails   []scoring.TrialDetail `json:"inference_details,omitempty"`
	InferenceResponses []*int                `json:"inference_responses,omitempty"`

	FeedbackMessages []string `json:"feedback_messages,omitempty"`
	OpenFeedbackText string   `json:"open_feedback_text,omitempty"`
	Phone            string   `json:"phone,omitempty"`
}

// Timestamps is the fallback timing structure carried on Record when the
// payload itself has no start/end markers.
type Timestamps struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Record is the optional in-memory record object some callers maintain in
// parallel with the payload. Its fields only matter as fallbacks during
// record building.
type Record struct {
	Condition      string     `json:"condition,omitempty"`
	CompletionTime *float64   `json:"completion_time,omitempty"`
	Timestamps     Timestamps `json:"timestamps"`
}

// Session bundles the mutable payload and record for one participant.
type Session struct {
	Payload Payload
	Record  *Record
}

// New returns an empty session.
func New(participantID string) *Session {
	s := &Session{}
	s.Payload.ParticipantID = participantID
	return s
}

// AddTrial appends one answered reasoning question.
func (s *Session) AddTrial(d scoring.TrialDetail) {
	s.Payload.InferenceDetails = append(s.Payload.InferenceDetails, d)
}

// AddFeedback appends one canned feedback message shown to the participant.
func (s *Session) AddFeedback(msg string) {
	s.Payload.FeedbackMessages = append(s.Payload.FeedbackMessages, msg)
}
