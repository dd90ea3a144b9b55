package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"recruitai/interview/internal/channel"
	"recruitai/interview/internal/config"
	"recruitai/interview/internal/engine"
	"recruitai/interview/internal/followup"
	"recruitai/interview/internal/models"
	"recruitai/interview/internal/prompts"
	"recruitai/interview/internal/questionbank"
	"recruitai/interview/internal/repositories"
	"recruitai/interview/internal/speech"
	"recruitai/interview/internal/transcript"
	"recruitai/interview/internal/utils"
)

// Entry errors. They surface as terminal client errors and are never
// retried.
var (
	ErrInvalidToken     = errors.New("invalid session token")
	ErrExpired          = errors.New("session expired")
	ErrAlreadyCompleted = errors.New("session already completed")
)

// Orchestrator is the engine's entry point: it validates access tokens,
// creates or resumes sessions, wires state machines to channels, and
// persists final results.
type Orchestrator struct {
	cfg      *config.Config
	sessions *repositories.SessionRepository
	store    *transcript.Store
	bank     questionbank.Repository
	speech   speech.Gateway
	followup followup.Provider
	script   *prompts.Manager
	events   *EventPublisher
	logger   *zap.Logger
	clock    engine.Clock

	mu      sync.Mutex
	runners map[string]*engine.Runner

	// syncExternals is passed through to runners in tests.
	syncExternals bool
}

type Params struct {
	Config        *config.Config
	Sessions      *repositories.SessionRepository
	Store         *transcript.Store
	Bank          questionbank.Repository
	Speech        speech.Gateway
	FollowUp      followup.Provider
	Script        *prompts.Manager
	Events        *EventPublisher
	Logger        *zap.Logger
	Clock         engine.Clock
	SyncExternals bool
}

func New(p Params) *Orchestrator {
	if p.Clock == nil {
		p.Clock = time.Now
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:           p.Config,
		sessions:      p.Sessions,
		store:         p.Store,
		bank:          p.Bank,
		speech:        p.Speech,
		followup:      p.FollowUp,
		script:        p.Script,
		events:        p.Events,
		logger:        p.Logger,
		clock:         p.Clock,
		runners:       make(map[string]*engine.Runner),
		syncExternals: p.SyncExternals,
	}
}

// SessionHandle binds an authenticated channel to a running session.
type SessionHandle struct {
	Session *models.InterviewSession
	Runner  *engine.Runner
	Role    models.Role
}

// OpenSession validates a token and either resumes the session's running
// state machine or activates a PENDING session, generating its question
// plan exactly once. Two concurrent opens race on a compare-and-set; the
// loser resumes the winner's state.
func (o *Orchestrator) OpenSession(ctx context.Context, tokenString string) (*SessionHandle, error) {
	claims, err := utils.ValidateSessionToken(tokenString, []byte(o.cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	session, err := o.sessions.GetSessionByID(claims.SessionID)
	if errors.Is(err, repositories.ErrSessionNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	role := claims.Role
	if role == "" {
		role = models.RoleCandidate
	}
	// The record stores the candidate's token; a manager presents a
	// separately minted one for the same session.
	if role == models.RoleCandidate && session.Token != tokenString {
		return nil, ErrInvalidToken
	}

	switch {
	case session.State == models.StateCompleted:
		return nil, ErrAlreadyCompleted
	case session.State == models.StateExpired, session.State == models.StateAbandoned:
		return nil, ErrExpired
	case session.State == models.StatePending && o.clock().After(session.ExpiresAt):
		if uerr := o.sessions.UpdateState(session, map[string]interface{}{"state": models.StateExpired}); uerr != nil {
			o.logger.Warn("failed to mark session expired", zap.Error(uerr))
		}
		return nil, ErrExpired
	}

	if role == models.RoleManager && !session.Hybrid {
		return nil, ErrInvalidToken
	}

	if session.State == models.StatePending {
		if role == models.RoleManager {
			// The manager can only join once the candidate activated it.
			return nil, fmt.Errorf("%w: session not yet active", ErrInvalidToken)
		}
		if err := o.activate(ctx, session); err != nil {
			return nil, err
		}
	}

	runner, err := o.runnerFor(session)
	if err != nil {
		return nil, err
	}
	return &SessionHandle{Session: session, Runner: runner, Role: role}, nil
}

// activate promotes PENDING to INTRO and snapshots the question plan.
func (o *Orchestrator) activate(ctx context.Context, session *models.InterviewSession) error {
	plan, err := o.bank.PlanForRole(ctx, session.RoleID)
	if err != nil {
		return fmt.Errorf("failed to load question bank: %w", err)
	}
	planJSON, err := plan.Marshal()
	if err != nil {
		return fmt.Errorf("failed to snapshot question plan: %w", err)
	}

	now := o.clock()
	session.StartedAt = &now
	won, err := o.sessions.Activate(session, planJSON)
	if err != nil {
		return err
	}
	if !won {
		// A concurrent open already generated the plan; resume its state.
		fresh, err := o.sessions.GetSessionByID(session.ID)
		if err != nil {
			return err
		}
		*session = *fresh
		return nil
	}

	session.State = models.StateIntro
	session.PlanJSON = planJSON
	session.Version++
	o.logger.Info("session activated",
		zap.String("session", session.ID),
		zap.Int("questions", plan.Len()))
	return nil
}

// runnerFor returns the session's running state machine, creating it on
// first use. A reconnecting role attaches to the same runner.
func (o *Orchestrator) runnerFor(session *models.InterviewSession) (*engine.Runner, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if r, ok := o.runners[session.ID]; ok {
		return r, nil
	}

	plan, err := models.UnmarshalPlan(session.PlanJSON)
	if err != nil {
		return nil, fmt.Errorf("corrupt plan snapshot: %w", err)
	}
	if err := o.store.Load(session.ID); err != nil {
		return nil, err
	}

	r := engine.NewRunner(engine.Params{
		SessionID:     session.ID,
		CandidateID:   session.CandidateID,
		Hybrid:        session.Hybrid,
		Plan:          plan,
		Config:        o.cfg.Engine,
		Store:         o.store,
		Channels:      channel.NewSession(),
		Speech:        o.speech,
		FollowUp:      o.followup,
		Script:        o.script,
		Logger:        o.logger,
		Clock:         o.clock,
		OnTerminal:    o.finalize,
		SyncExternals: o.syncExternals,
	})
	o.runners[session.ID] = r
	if !o.syncExternals {
		r.Start()
	}
	return r, nil
}

// finalize persists a session's terminal state and, on graceful
// completion, emits the event the summarization pipeline consumes.
func (o *Orchestrator) finalize(sessionID string, state models.SessionState, outcomes []models.NodeOutcome, endedAt time.Time) {
	o.mu.Lock()
	delete(o.runners, sessionID)
	o.mu.Unlock()

	session, err := o.sessions.GetSessionByID(sessionID)
	if err != nil {
		o.logger.Error("failed to load session for finalization",
			zap.String("session", sessionID), zap.Error(err))
		return
	}

	outcomesJSON, _ := json.Marshal(outcomes)
	updates := map[string]interface{}{
		"state":         state,
		"ended_at":      endedAt,
		"outcomes_json": string(outcomesJSON),
	}
	if err := o.sessions.UpdateState(session, updates); err != nil {
		o.logger.Error("failed to persist terminal state",
			zap.String("session", sessionID), zap.Error(err))
	}

	o.logger.Info("session finished",
		zap.String("session", sessionID),
		zap.String("state", string(state)))

	if state != models.StateCompleted || o.events == nil {
		o.store.Release(sessionID)
		return
	}

	plan, _ := models.UnmarshalPlan(session.PlanJSON)
	cov := models.ComputeCoverage(plan, o.store.Segments(sessionID))
	event := CompletionEvent{
		SessionID:     sessionID,
		CandidateID:   session.CandidateID,
		TranscriptRef: fmt.Sprintf("transcripts/%s", sessionID),
		Coverage:      fmt.Sprintf("%d/%d", cov.AnsweredRequired, cov.TotalRequired),
		EndedAt:       endedAt,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.events.PublishCompletion(ctx, event); err != nil {
		o.logger.Error("failed to publish completion event",
			zap.String("session", sessionID), zap.Error(err))
	}
	o.store.Release(sessionID)
}

// Status returns the public view for the candidate entry point.
func (o *Orchestrator) Status(tokenString string) (*models.SessionStatus, error) {
	claims, err := utils.ValidateSessionToken(tokenString, []byte(o.cfg.JWTSecret))
	if err != nil {
		return nil, ErrInvalidToken
	}
	session, err := o.sessions.GetSessionByID(claims.SessionID)
	if errors.Is(err, repositories.ErrSessionNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	status := session.Status()
	return &status, nil
}

// Shutdown stops every running state machine without a terminal
// transition; sessions resume from their persisted records.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, r := range o.runners {
		r.Stop()
	}
	o.runners = make(map[string]*engine.Runner)
}
