package models

import "time"

// Speaker attributes a transcript segment to one side of the interview.
type Speaker string

const (
	SpeakerAI        Speaker = "ai"
	SpeakerCandidate Speaker = "candidate"
	SpeakerManager   Speaker = "manager"
)

// TranscriptSegment is one attributed utterance. Segments are append-only
// and carry a per-session sequence number plus a monotonically increasing
// timestamp, so the ordered log deterministically reproduces the session.
type TranscriptSegment struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	SessionID string    `gorm:"not null;index" json:"sessionId"`
	Seq       int       `gorm:"not null" json:"seq"`
	Speaker   Speaker   `gorm:"not null" json:"speaker"`
	Text      string    `gorm:"type:text" json:"text"`
	NodeIndex *int      `json:"nodeIndex,omitempty"`
	Timestamp time.Time `gorm:"not null" json:"timestamp"`
}

// CoverageState is derived from segment attributions, never stored.
type CoverageState struct {
	AnsweredRequired int   `json:"answeredRequired"`
	TotalRequired    int   `json:"totalRequired"`
	Outstanding      []int `json:"outstanding,omitempty"`
}

// ComputeCoverage recomputes coverage from the ordered segment log. A
// required node counts as answered when some candidate segment with
// non-empty text is attributed to it. Replaying the same log always yields
// the same coverage.
func ComputeCoverage(plan QuestionPlan, segments []TranscriptSegment) CoverageState {
	answered := make(map[int]bool)
	for _, seg := range segments {
		if seg.Speaker != SpeakerCandidate || seg.NodeIndex == nil || seg.Text == "" {
			continue
		}
		answered[*seg.NodeIndex] = true
	}

	cov := CoverageState{}
	for i, node := range plan.Nodes {
		if !node.Required {
			continue
		}
		cov.TotalRequired++
		if answered[i] {
			cov.AnsweredRequired++
		} else {
			cov.Outstanding = append(cov.Outstanding, i)
		}
	}
	return cov
}
