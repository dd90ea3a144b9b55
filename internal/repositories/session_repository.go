package repositories

import (
	"errors"

	"gorm.io/gorm"

	"recruitai/interview/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository struct {
	DB *gorm.DB
}

func (r *SessionRepository) CreateSession(session *models.InterviewSession) error {
	return r.DB.Create(session).Error
}

func (r *SessionRepository) GetSessionByID(id string) (*models.InterviewSession, error) {
	var session models.InterviewSession
	err := r.DB.First(&session, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	return &session, err
}

func (r *SessionRepository) GetSessionByToken(token string) (*models.InterviewSession, error) {
	var session models.InterviewSession
	err := r.DB.First(&session, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	return &session, err
}

// Activate is the compare-and-set that promotes a PENDING session and
// snapshots its question plan. It returns false when another open won the
// race (zero rows matched), in which case the caller reloads and resumes.
func (r *SessionRepository) Activate(session *models.InterviewSession, planJSON string) (bool, error) {
	result := r.DB.Model(&models.InterviewSession{}).
		Where("id = ? AND state = ? AND version = ?", session.ID, models.StatePending, session.Version).
		Updates(map[string]interface{}{
			"state":      models.StateIntro,
			"plan_json":  planJSON,
			"version":    session.Version + 1,
			"started_at": session.StartedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// UpdateState persists a state transition with optimistic locking.
func (r *SessionRepository) UpdateState(session *models.InterviewSession, updates map[string]interface{}) error {
	updates["version"] = session.Version + 1
	result := r.DB.Model(&models.InterviewSession{}).
		Where("id = ? AND version = ?", session.ID, session.Version).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("session record was modified concurrently")
	}
	session.Version++
	return nil
}

// ExpirePending marks PENDING sessions whose token lifetime lapsed.
func (r *SessionRepository) ExpirePending() (int64, error) {
	result := r.DB.Model(&models.InterviewSession{}).
		Where("state = ? AND expires_at < CURRENT_TIMESTAMP", models.StatePending).
		Update("state", models.StateExpired)
	return result.RowsAffected, result.Error
}
