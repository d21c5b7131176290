package session_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldwork-labs/intake/pkg/scoring"
	"github.com/fieldwork-labs/intake/pkg/session"
)

func TestNewAndAccumulate(t *testing.T) {
	s := session.New("p-5")
	assert.Equal(t, "p-5", s.Payload.ParticipantID)
	assert.Nil(t, s.Record)

	s.AddTrial(scoring.TrialDetail{Round: 1, Selected: "a", Correct: "a", ResponseTime: 1.5})
	s.AddTrial(scoring.TrialDetail{Round: 1, Selected: "b", Correct: "a", ResponseTime: 2})
	s.AddFeedback("참 잘했어요")

	assert.Len(t, s.Payload.InferenceDetails, 2)
	assert.Equal(t, []string{"참 잘했어요"}, s.Payload.FeedbackMessages)
}

func TestPayload_OmitsUnansweredFields(t *testing.T) {
	raw, err := json.Marshal(session.Payload{ParticipantID: "p-5"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"participant_id":"p-5"}`, string(raw))
}
