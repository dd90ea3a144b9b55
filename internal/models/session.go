package models

import (
	"time"
)

// SessionState is the lifecycle state of an interview session. PENDING
// sessions are created by the scheduling service; the engine owns every
// transition after that.
type SessionState string

const (
	StatePending     SessionState = "PENDING"
	StateIntro       SessionState = "INTRO"
	StateQuestioning SessionState = "QUESTIONING"
	StateFollowUp    SessionState = "FOLLOW_UP"
	StateClosing     SessionState = "CLOSING"
	StateCompleted   SessionState = "COMPLETED"
	StateAbandoned   SessionState = "ABANDONED"
	StateExpired     SessionState = "EXPIRED"
)

// Terminal reports whether the state can never be left again.
func (s SessionState) Terminal() bool {
	return s == StateCompleted || s == StateAbandoned || s == StateExpired
}

// InProgress reports whether a candidate channel is expected to be live.
func (s SessionState) InProgress() bool {
	return s != StatePending && !s.Terminal()
}

// Role identifies which side of the interview a channel belongs to.
type Role string

const (
	RoleCandidate Role = "candidate"
	RoleManager   Role = "manager"
)

// InterviewSession is one candidate's attempt at a single scheduled
// interview. The record is versioned so that concurrent opens race on a
// compare-and-set instead of both generating a question plan.
type InterviewSession struct {
	ID          string       `gorm:"primaryKey" json:"id"`
	Token       string       `gorm:"uniqueIndex;not null" json:"-"`
	State       SessionState `gorm:"not null;index" json:"state"`
	CandidateID string       `gorm:"not null;index" json:"candidateId"`
	RoleID      string       `gorm:"not null" json:"roleId"`
	ManagerID   string       `json:"managerId,omitempty"`
	Hybrid      bool         `json:"hybrid"`
	PlanJSON    string       `gorm:"type:text" json:"-"`
	OutcomesJSON string      `gorm:"type:text" json:"-"`
	Version     int          `gorm:"not null;default:0" json:"-"`
	ExpiresAt   time.Time    `gorm:"not null" json:"expiresAt"`
	StartedAt   *time.Time   `json:"startedAt,omitempty"`
	EndedAt     *time.Time   `json:"endedAt,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// SessionStatus is the public view returned by the candidate entry point.
type SessionStatus struct {
	ID        string       `json:"id"`
	State     SessionState `json:"state"`
	Hybrid    bool         `json:"hybrid"`
	ExpiresAt time.Time    `json:"expiresAt"`
	StartedAt *time.Time   `json:"startedAt,omitempty"`
	EndedAt   *time.Time   `json:"endedAt,omitempty"`
}

// Status strips internal fields from a session record.
func (s *InterviewSession) Status() SessionStatus {
	return SessionStatus{
		ID:        s.ID,
		State:     s.State,
		Hybrid:    s.Hybrid,
		ExpiresAt: s.ExpiresAt,
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
	}
}
