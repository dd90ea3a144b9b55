package questionbank

import (
	"context"
	"errors"

	"recruitai/interview/internal/models"
)

// ErrBankNotFound is returned when a job role has no question bank.
var ErrBankNotFound = errors.New("question bank not found")

// Repository reads the job role's question bank. The engine consumes it
// exactly once per session, at activation, to snapshot the QuestionPlan.
type Repository interface {
	// PlanForRole returns the ordered question nodes configured for a
	// job role.
	PlanForRole(ctx context.Context, roleID string) (models.QuestionPlan, error)
}

// Memory is an in-memory repository used in tests and local development.
type Memory struct {
	plans map[string]models.QuestionPlan
}

func NewMemory() *Memory {
	return &Memory{plans: make(map[string]models.QuestionPlan)}
}

func (m *Memory) Put(roleID string, plan models.QuestionPlan) {
	m.plans[roleID] = plan
}

func (m *Memory) PlanForRole(ctx context.Context, roleID string) (models.QuestionPlan, error) {
	plan, ok := m.plans[roleID]
	if !ok {
		return models.QuestionPlan{}, ErrBankNotFound
	}
	return plan, nil
}
