package engine

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"recruitai/interview/internal/channel"
	"recruitai/interview/internal/config"
	"recruitai/interview/internal/followup"
	"recruitai/interview/internal/metrics"
	"recruitai/interview/internal/models"
	"recruitai/interview/internal/prompts"
	"recruitai/interview/internal/speech"
	"recruitai/interview/internal/transcript"
)

// Clock abstracts time for deterministic tests.
type Clock func() time.Time

// TerminalFunc is called exactly once when the session reaches a terminal
// state, with the final node outcomes.
type TerminalFunc func(sessionID string, state models.SessionState, outcomes []models.NodeOutcome, endedAt time.Time)

// Runner is the per-session state machine. One runner owns one session;
// audio ingestion, transcription, follow-up generation and outbound
// dispatch all run concurrently, but every state transition is serialized
// through the runner's command channel, so a reconnect can never race an
// in-flight transcription result.
type Runner struct {
	SessionID string

	candidate string
	hybrid    bool
	plan      models.QuestionPlan
	cfg       config.EngineConfig

	store    *transcript.Store
	channels *channel.Session
	speech   speech.Gateway
	followup followup.Provider
	script   *prompts.Manager
	logger   *zap.Logger
	clock    Clock

	onTerminal TerminalFunc

	ctx    context.Context
	cancel context.CancelFunc
	cmds   chan command

	// sync makes external calls run inline instead of on goroutines, so
	// tests can drive the machine deterministically.
	sync bool

	// Everything below is owned by the runner goroutine.
	state          models.SessionState
	cursor         int
	outcomes       []models.NodeOutcome
	epoch          int
	startedAt      time.Time
	greetingDone   bool
	candidateReady bool
	introDeadline  time.Time

	audio            *speech.Buffer
	transcribing     bool
	nodeWords        int
	answerText       string
	questionDeadline time.Time

	pendingFollowUp *pendingFollowUp
	followUpAsked   map[int]bool

	lastActivity  time.Time
	checkInSent   bool
	graceDeadline time.Time
	paused        bool
	pausedAt      time.Time

	managerPresent bool

	// callsCtx scopes in-flight external calls; cancelled when their
	// results must be discarded (disconnect, endInterview).
	callsCtx    context.Context
	callsCancel context.CancelFunc
}

type pendingFollowUp struct {
	node       int
	text       string
	proposedAt time.Time
}

// Params wires a runner's collaborators.
type Params struct {
	SessionID   string
	CandidateID string
	Hybrid      bool
	Plan        models.QuestionPlan
	Config      config.EngineConfig
	Store       *transcript.Store
	Channels    *channel.Session
	Speech      speech.Gateway
	FollowUp    followup.Provider
	Script      *prompts.Manager
	Logger      *zap.Logger
	Clock       Clock
	OnTerminal  TerminalFunc

	// SyncExternals runs speech and follow-up calls inline (tests only).
	SyncExternals bool
}

func NewRunner(p Params) *Runner {
	if p.Clock == nil {
		p.Clock = time.Now
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Channels == nil {
		p.Channels = channel.NewSession()
	}

	ctx, cancel := context.WithCancel(context.Background())
	callsCtx, callsCancel := context.WithCancel(ctx)

	outcomes := make([]models.NodeOutcome, p.Plan.Len())
	for i := range outcomes {
		outcomes[i] = models.OutcomePending
	}

	return &Runner{
		SessionID:     p.SessionID,
		candidate:     p.CandidateID,
		hybrid:        p.Hybrid,
		plan:          p.Plan,
		cfg:           p.Config,
		store:         p.Store,
		channels:      p.Channels,
		speech:        p.Speech,
		followup:      p.FollowUp,
		script:        p.Script,
		logger:        p.Logger,
		clock:         p.Clock,
		onTerminal:    p.OnTerminal,
		ctx:           ctx,
		cancel:        cancel,
		cmds:          make(chan command, 64),
		sync:          p.SyncExternals,
		state:         models.StateIntro,
		outcomes:      outcomes,
		followUpAsked: make(map[int]bool),
		audio:         speech.NewBuffer(p.Config.AudioWindow, p.Config.SilenceFlush, p.Config.ReorderWindow),
		callsCtx:      callsCtx,
		callsCancel:   callsCancel,
	}
}

// State returns the runner's last published state. Only meaningful from
// the runner goroutine or after Stop; external readers should rely on the
// persisted session record.
func (r *Runner) State() models.SessionState { return r.state }

// Start launches the runner's control loop.
func (r *Runner) Start() {
	metrics.ActiveSessions.Inc()
	go r.loop()
}

// Stop tears the runner down without a terminal transition; the session
// record keeps whatever state was last persisted.
func (r *Runner) Stop() {
	r.cancel()
}

// Attach hands a connected channel to the state machine.
func (r *Runner) Attach(c *channel.Client) { r.dispatch(attachCmd{client: c}) }

// Detach reports a closed channel.
func (r *Runner) Detach(c *channel.Client) { r.dispatch(detachCmd{client: c}) }

// SubmitAudio feeds one candidate audio chunk in.
func (r *Runner) SubmitAudio(chunk models.AudioChunk) { r.dispatch(audioCmd{chunk: chunk}) }

// SubmitControl feeds a manager control command in.
func (r *Runner) SubmitControl(action models.ControlAction, from *channel.Client) {
	r.dispatch(controlCmd{action: action, from: from})
}

func (r *Runner) dispatch(c command) {
	if r.sync {
		r.handle(c)
		return
	}
	select {
	case r.cmds <- c:
	case <-r.ctx.Done():
	}
}

func (r *Runner) loop() {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	defer metrics.ActiveSessions.Dec()

	for {
		select {
		case <-r.ctx.Done():
			return
		case cmd := <-r.cmds:
			r.handle(cmd)
		case <-ticker.C:
			r.tick(r.clock())
		}
		if r.state.Terminal() {
			r.cancel()
			return
		}
	}
}

// --- async external calls ---
//
// Each call captures the current epoch; results from a previous epoch are
// stale and discarded on arrival.

func (r *Runner) speak(kind utteranceKind, node int, text string) {
	epoch := r.epoch
	ctx := r.callsCtx
	run := func() {
		audioRef, err := r.synthesizeWithRetry(ctx, text)
		r.dispatch(spokenCmd{epoch: epoch, kind: kind, node: node, text: text, audioRef: audioRef, err: err})
	}
	if r.sync {
		run()
		return
	}
	go run()
}

func (r *Runner) transcribe(chunks [][]byte, node int, final bool) {
	epoch := r.epoch
	ctx := r.callsCtx
	r.transcribing = true
	r.channels.Broadcast(models.AIThinking{})
	run := func() {
		result, err := r.transcribeWithRetry(ctx, chunks)
		r.dispatch(transcribedCmd{epoch: epoch, node: node, final: final, result: result, err: err})
	}
	if r.sync {
		run()
		return
	}
	go run()
}

func (r *Runner) generateFollowUp(node int, answer string) {
	epoch := r.epoch
	ctx := r.callsCtx
	q := r.plan.Nodes[node]
	req := followup.Request{Question: q.Text, Criteria: q.Criteria, Answer: answer}
	r.channels.Broadcast(models.AIThinking{})
	run := func() {
		callCtx, cancel := context.WithTimeout(ctx, r.cfg.FollowUpTimeout)
		defer cancel()
		text, err := r.followup.GenerateFollowUp(callCtx, req)
		r.dispatch(followUpCmd{epoch: epoch, node: node, text: text, err: err})
	}
	if r.sync {
		run()
		return
	}
	go run()
}

func (r *Runner) synthesizeWithRetry(ctx context.Context, text string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.SpeechTimeout)
	audioRef, err := r.speech.Synthesize(callCtx, text, r.cfg.Voice)
	cancel()
	if err == nil || ctx.Err() != nil {
		return audioRef, err
	}

	r.backoff(ctx)
	callCtx, cancel = context.WithTimeout(ctx, r.cfg.SpeechTimeout)
	defer cancel()
	return r.speech.Synthesize(callCtx, text, r.cfg.Voice)
}

func (r *Runner) transcribeWithRetry(ctx context.Context, chunks [][]byte) (*speech.Transcription, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.SpeechTimeout)
	result, err := r.speech.Transcribe(callCtx, chunks)
	cancel()
	if err == nil || ctx.Err() != nil {
		return result, err
	}

	r.backoff(ctx)
	callCtx, cancel = context.WithTimeout(ctx, r.cfg.SpeechTimeout)
	defer cancel()
	return r.speech.Transcribe(callCtx, chunks)
}

// backoff waits briefly before the single retry, bailing out early when
// the call scope is cancelled.
func (r *Runner) backoff(ctx context.Context) {
	if r.sync {
		return
	}
	select {
	case <-time.After(500 * time.Millisecond):
	case <-ctx.Done():
	}
}

func wordCount(s string) int { return len(strings.Fields(s)) }
