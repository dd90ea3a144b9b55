package orchestrator

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"recruitai/interview/internal/repositories"
)

// Sweeper periodically expires PENDING sessions whose access window
// lapsed without the candidate ever connecting.
type Sweeper struct {
	cron     *cron.Cron
	sessions *repositories.SessionRepository
	logger   *zap.Logger
}

func NewSweeper(sessions *repositories.SessionRepository, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		cron:     cron.New(),
		sessions: sessions,
		logger:   logger,
	}
}

// Start schedules the sweep. Runs every minute; the scan is an indexed
// state filter so the cadence is cheap.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc("* * * * *", s.sweep)
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("session expiry sweeper started")
	return nil
}

func (s *Sweeper) Stop() {
	s.cron.Stop()
}

func (s *Sweeper) sweep() {
	n, err := s.sessions.ExpirePending()
	if err != nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("expired unclaimed sessions", zap.Int64("count", n))
	}
}
