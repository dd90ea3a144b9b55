package models

import "encoding/json"

// QuestionNode is a single question in a plan. AllottedSec bounds how long
// the candidate gets on this node; GeneratedFollowUp holds at most one
// runtime-generated clarifying question.
type QuestionNode struct {
	Text              string   `json:"text"`
	Required          bool     `json:"required"`
	AllottedSec       int      `json:"allottedSeconds"`
	Criteria          []string `json:"criteria,omitempty"`
	StaticFollowUps   []string `json:"staticFollowUps,omitempty"`
	GeneratedFollowUp string   `json:"generatedFollowUp,omitempty"`
}

// QuestionPlan is the ordered snapshot of questions taken from the job
// role's question bank when the session activates. It is never modified
// once questioning begins so scoring stays reproducible.
type QuestionPlan struct {
	RoleID string         `json:"roleId"`
	Nodes  []QuestionNode `json:"nodes"`
}

func (p QuestionPlan) Len() int { return len(p.Nodes) }

// RequiredCount returns how many nodes in the plan are required.
func (p QuestionPlan) RequiredCount() int {
	n := 0
	for _, node := range p.Nodes {
		if node.Required {
			n++
		}
	}
	return n
}

// Marshal serializes the plan for the session record's snapshot column.
func (p QuestionPlan) Marshal() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UnmarshalPlan restores a plan from a session record snapshot.
func UnmarshalPlan(raw string) (QuestionPlan, error) {
	var p QuestionPlan
	if raw == "" {
		return p, nil
	}
	err := json.Unmarshal([]byte(raw), &p)
	return p, err
}

// NodeOutcome records how a question node ended up. Outcomes are an engine
// bookkeeping detail persisted on the session record at finalization;
// coverage itself is always recomputed from transcript attributions.
type NodeOutcome string

const (
	OutcomePending    NodeOutcome = "pending"
	OutcomeAnswered   NodeOutcome = "answered"
	OutcomeUnanswered NodeOutcome = "unanswered"
	OutcomeSkipped    NodeOutcome = "skipped"
)
