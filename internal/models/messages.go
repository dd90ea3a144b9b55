package models

import (
	"encoding/json"
	"fmt"
)

// MessageKind discriminates the closed set of protocol messages exchanged
// over a session channel.
type MessageKind string

const (
	KindAudioChunk        MessageKind = "audio_chunk"
	KindAISpeaking        MessageKind = "ai_speaking"
	KindAIListening       MessageKind = "ai_listening"
	KindAIThinking        MessageKind = "ai_thinking"
	KindTranscriptUpdate  MessageKind = "transcript_update"
	KindManagerControl    MessageKind = "manager_control"
	KindPlanStatus        MessageKind = "plan_status"
	KindFollowUpProposed  MessageKind = "follow_up_proposed"
	KindInterviewComplete MessageKind = "interview_complete"
	KindSessionError      MessageKind = "session_error"
)

// Message is the closed tagged-variant type for channel traffic. The
// channel manager dispatches on Kind exhaustively; no other types implement
// this interface.
type Message interface {
	Kind() MessageKind
}

// AudioChunk carries candidate microphone audio (candidate -> engine).
// Chunks are reassembled by sequence number within a bounded window.
type AudioChunk struct {
	Seq  int    `json:"seq"`
	Data []byte `json:"data"`
}

// AISpeaking signals the AI is delivering an utterance (engine -> roles).
type AISpeaking struct {
	Text     string `json:"text"`
	AudioRef string `json:"audioRef,omitempty"`
}

// AIListening signals the AI is waiting on candidate audio.
type AIListening struct{}

// AIThinking signals an external call is in flight.
type AIThinking struct{}

// TranscriptUpdate fans out each persisted segment in real time.
type TranscriptUpdate struct {
	Seq       int     `json:"seq"`
	Speaker   Speaker `json:"speaker"`
	Text      string  `json:"text"`
	NodeIndex *int    `json:"nodeIndex,omitempty"`
}

// ControlAction is a manager command in hybrid mode.
type ControlAction string

const (
	ControlNextQuestion    ControlAction = "nextQuestion"
	ControlSkip            ControlAction = "skip"
	ControlPause           ControlAction = "pause"
	ControlApproveFollowUp ControlAction = "approveFollowUp"
	ControlDismissFollowUp ControlAction = "dismissFollowUp"
	ControlEndInterview    ControlAction = "endInterview"
)

// ManagerControl carries a hybrid-mode manager command (manager -> engine).
type ManagerControl struct {
	Action ControlAction `json:"action"`
}

// PlanStatus mirrors the live question cursor and coverage to the manager
// channel in hybrid mode.
type PlanStatus struct {
	Cursor   int           `json:"cursor"`
	State    SessionState  `json:"state"`
	Coverage CoverageState `json:"coverage"`
}

// FollowUpProposed surfaces a speculative generated follow-up to the
// manager for approval before the candidate ever hears it.
type FollowUpProposed struct {
	NodeIndex int    `json:"nodeIndex"`
	Text      string `json:"text"`
}

// InterviewComplete is the terminal notification for a graceful close.
type InterviewComplete struct{}

// SessionError reports a protocol or session failure. Terminal is true
// only when the session is over; protocol violations leave the connection
// open.
type SessionError struct {
	Reason   string `json:"reason"`
	Terminal bool   `json:"terminal"`
}

func (AudioChunk) Kind() MessageKind        { return KindAudioChunk }
func (AISpeaking) Kind() MessageKind        { return KindAISpeaking }
func (AIListening) Kind() MessageKind       { return KindAIListening }
func (AIThinking) Kind() MessageKind        { return KindAIThinking }
func (TranscriptUpdate) Kind() MessageKind  { return KindTranscriptUpdate }
func (ManagerControl) Kind() MessageKind    { return KindManagerControl }
func (PlanStatus) Kind() MessageKind        { return KindPlanStatus }
func (FollowUpProposed) Kind() MessageKind  { return KindFollowUpProposed }
func (InterviewComplete) Kind() MessageKind { return KindInterviewComplete }
func (SessionError) Kind() MessageKind      { return KindSessionError }

// Droppable reports whether a message may be shed under back-pressure.
// Transcript updates and terminal notifications are never dropped.
func Droppable(m Message) bool {
	switch m.Kind() {
	case KindAIThinking, KindAIListening:
		return true
	default:
		return false
	}
}

// Envelope is the wire framing for a protocol message.
type Envelope struct {
	Type    MessageKind     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EncodeMessage wraps a message in its wire envelope.
func EncodeMessage(m Message) (Envelope, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", m.Kind(), err)
	}
	return Envelope{Type: m.Kind(), Payload: payload}, nil
}

// DecodeMessage parses a wire envelope back into its concrete variant.
// Unknown kinds are a protocol violation.
func DecodeMessage(env Envelope) (Message, error) {
	var m Message
	switch env.Type {
	case KindAudioChunk:
		m = &AudioChunk{}
	case KindAISpeaking:
		m = &AISpeaking{}
	case KindAIListening:
		return AIListening{}, nil
	case KindAIThinking:
		return AIThinking{}, nil
	case KindTranscriptUpdate:
		m = &TranscriptUpdate{}
	case KindManagerControl:
		m = &ManagerControl{}
	case KindPlanStatus:
		m = &PlanStatus{}
	case KindFollowUpProposed:
		m = &FollowUpProposed{}
	case KindInterviewComplete:
		return InterviewComplete{}, nil
	case KindSessionError:
		m = &SessionError{}
	default:
		return nil, fmt.Errorf("unknown message type: %s", env.Type)
	}
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
	}
	switch v := m.(type) {
	case *AudioChunk:
		return *v, nil
	case *AISpeaking:
		return *v, nil
	case *TranscriptUpdate:
		return *v, nil
	case *ManagerControl:
		return *v, nil
	case *PlanStatus:
		return *v, nil
	case *FollowUpProposed:
		return *v, nil
	case *SessionError:
		return *v, nil
	}
	return m, nil
}
