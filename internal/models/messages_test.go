package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	idx := 2
	env, err := EncodeMessage(TranscriptUpdate{Seq: 7, Speaker: SpeakerCandidate, Text: "my answer", NodeIndex: &idx})
	require.NoError(t, err)
	assert.Equal(t, KindTranscriptUpdate, env.Type)

	wire, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded Envelope
	require.NoError(t, json.Unmarshal(wire, &decoded))
	msg, err := DecodeMessage(decoded)
	require.NoError(t, err)

	update, ok := msg.(*TranscriptUpdate)
	require.True(t, ok)
	assert.Equal(t, 7, update.Seq)
	require.NotNil(t, update.NodeIndex)
	assert.Equal(t, 2, *update.NodeIndex)
}

func TestDecodeControlMessage(t *testing.T) {
	env, err := EncodeMessage(ManagerControl{Action: ControlApproveFollowUp})
	require.NoError(t, err)

	msg, err := DecodeMessage(env)
	require.NoError(t, err)
	assert.Equal(t, ControlApproveFollowUp, msg.(*ManagerControl).Action)
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	_, err := DecodeMessage(Envelope{Type: "shrug"})
	assert.Error(t, err)
}

func TestOnlyTurnSignalsAreDroppable(t *testing.T) {
	assert.True(t, Droppable(AIThinking{}))
	assert.True(t, Droppable(AIListening{}))

	assert.False(t, Droppable(TranscriptUpdate{}))
	assert.False(t, Droppable(AISpeaking{}))
	assert.False(t, Droppable(InterviewComplete{}))
	assert.False(t, Droppable(SessionError{Terminal: true}))
	assert.False(t, Droppable(FollowUpProposed{}))
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []SessionState{StateCompleted, StateAbandoned, StateExpired} {
		assert.True(t, s.Terminal(), string(s))
		assert.False(t, s.InProgress(), string(s))
	}
	for _, s := range []SessionState{StateIntro, StateQuestioning, StateFollowUp, StateClosing} {
		assert.False(t, s.Terminal(), string(s))
		assert.True(t, s.InProgress(), string(s))
	}
	assert.False(t, StatePending.InProgress())
}

func TestPlanSnapshotRoundTrip(t *testing.T) {
	plan := QuestionPlan{
		RoleID: "backend-engineer",
		Nodes: []QuestionNode{
			{Text: "q0", Required: true, AllottedSec: 120, Criteria: []string{"depth"}},
			{Text: "q1", StaticFollowUps: []string{"anything else?"}},
		},
	}

	raw, err := plan.Marshal()
	require.NoError(t, err)

	restored, err := UnmarshalPlan(raw)
	require.NoError(t, err)
	assert.Equal(t, plan, restored)
	assert.Equal(t, 2, restored.Len())
	assert.Equal(t, 1, restored.RequiredCount())
}
