package engine

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"recruitai/interview/internal/channel"
	"recruitai/interview/internal/metrics"
	"recruitai/interview/internal/models"
)

// handle processes one command. It runs on the runner goroutine only.
func (r *Runner) handle(cmd command) {
	if r.state.Terminal() {
		return
	}

	switch c := cmd.(type) {
	case attachCmd:
		r.handleAttach(c)
	case detachCmd:
		r.handleDetach(c)
	case audioCmd:
		r.handleAudio(c)
	case controlCmd:
		r.handleControl(c)
	case spokenCmd:
		r.handleSpoken(c)
	case transcribedCmd:
		r.handleTranscribed(c)
	case followUpCmd:
		r.handleFollowUp(c)
	}
}

func (r *Runner) handleAttach(c attachCmd) {
	r.channels.Attach(c.client)
	now := r.clock()

	if c.client.Role == models.RoleCandidate {
		r.graceDeadline = time.Time{}
		r.lastActivity = now
		r.checkInSent = false

		if !r.greetingDone && r.state == models.StateIntro && r.introDeadline.IsZero() {
			// First connect: the interview begins here.
			r.startedAt = now
			r.introDeadline = now.Add(r.cfg.IntroTimeout)
			line, err := r.script.Script("greeting", r.candidate)
			if err != nil {
				r.logger.Error("missing greeting script", zap.Error(err))
				line = "Welcome to your interview."
			}
			r.speak(uttGreeting, -1, line)
			return
		}
		// Reconnect: resume existing state, replay recent history only.
		// Chunk sequence numbers are per connection, so the audio stream
		// restarts from zero.
		r.audio.Rewind()
		r.replay(c.client)
		return
	}

	r.managerPresent = true
	r.replay(c.client)
	c.client.Send(r.planStatus())
}

func (r *Runner) handleDetach(c detachCmd) {
	if !r.channels.Detach(c.client) {
		// A replaced connection going away is not a disconnect.
		return
	}
	now := r.clock()

	if c.client.Role == models.RoleCandidate {
		if !r.state.InProgress() {
			return
		}
		r.graceDeadline = now.Add(r.cfg.DisconnectGrace)
		// Results of in-flight external calls are discarded, not awaited.
		r.cancelCalls()
		r.audio.Reset()
		r.transcribing = false
		r.logger.Info("candidate disconnected, grace period started",
			zap.String("session", r.SessionID))
		return
	}

	// Manager drop degrades the session to AI-only for the remainder. A
	// follow-up stuck awaiting approval is delivered directly, the way an
	// AI-only session would have.
	r.managerPresent = false
	if p := r.pendingFollowUp; p != nil {
		r.deliverFollowUp(p.node, p.text)
	}
}

func (r *Runner) handleAudio(c audioCmd) {
	now := r.clock()

	switch r.state {
	case models.StateIntro:
		// First audio is the readiness signal; intro audio itself is not
		// transcribed, but it still advances the sequence tracking so the
		// first answer's chunks line up.
		r.lastActivity = now
		r.candidateReady = true
		r.audio.Add(c.chunk.Seq, c.chunk.Data, now)
		r.maybeStartQuestioning(now)
	case models.StateQuestioning, models.StateFollowUp:
		r.lastActivity = now
		r.checkInSent = false
		if !r.audio.Add(c.chunk.Seq, c.chunk.Data, now) {
			metrics.LateChunks.Inc()
		}
	default:
	}
}

func (r *Runner) handleControl(c controlCmd) {
	reject := func(reason string) {
		if c.from != nil {
			c.from.Send(models.SessionError{Reason: reason})
		}
	}

	if !r.hybrid || c.from == nil || c.from.Role != models.RoleManager {
		reject("manager control not permitted on this session")
		return
	}
	if !r.state.InProgress() {
		reject("session is not active")
		return
	}

	now := r.clock()
	r.lastActivity = now
	r.checkInSent = false

	switch c.action {
	case models.ControlPause:
		r.togglePause(now)

	case models.ControlNextQuestion:
		if r.transcribing || r.audio.Ready() {
			reject("an answer is pending")
			return
		}
		r.pendingFollowUp = nil
		if r.nodeWords > 0 {
			r.finishNode(models.OutcomeAnswered)
		} else {
			r.finishNode(models.OutcomeSkipped)
		}
		r.advance(now)

	case models.ControlSkip:
		r.pendingFollowUp = nil
		r.finishNode(models.OutcomeSkipped)
		r.advance(now)

	case models.ControlApproveFollowUp:
		p := r.pendingFollowUp
		if p == nil {
			reject("no follow-up awaiting approval")
			return
		}
		r.deliverFollowUp(p.node, p.text)

	case models.ControlDismissFollowUp:
		if r.pendingFollowUp == nil {
			reject("no follow-up awaiting approval")
			return
		}
		r.pendingFollowUp = nil
		r.finishNode(models.OutcomeAnswered)
		r.advance(now)

	case models.ControlEndInterview:
		r.cancelCalls()
		r.pendingFollowUp = nil
		r.toClosing(now)

	default:
		reject("unknown control action")
	}
}

func (r *Runner) handleSpoken(c spokenCmd) {
	if c.epoch != r.epoch {
		return
	}
	now := r.clock()

	audioRef := c.audioRef
	if c.err != nil {
		// Synthesis already retried once; the utterance text still goes
		// out so the interview degrades instead of stalling.
		r.logger.Warn("synthesis failed, delivering text only",
			zap.String("session", r.SessionID), zap.Error(c.err))
		audioRef = ""
	}
	r.channels.Broadcast(models.AISpeaking{Text: c.text, AudioRef: audioRef})

	switch c.kind {
	case uttGreeting:
		r.appendSegment(models.SpeakerAI, c.text, nil)
		r.greetingDone = true
		r.lastActivity = now
		r.maybeStartQuestioning(now)

	case uttQuestion, uttFollowUp:
		node := c.node
		r.appendSegment(models.SpeakerAI, c.text, &node)
		r.channels.Broadcast(models.AIListening{})
		allotted := time.Duration(r.plan.Nodes[node].AllottedSec) * time.Second
		r.questionDeadline = now.Add(allotted)
		r.lastActivity = now

	case uttCheckIn:
		r.appendSegment(models.SpeakerAI, c.text, nil)
		r.channels.Broadcast(models.AIListening{})

	case uttClosing:
		r.appendSegment(models.SpeakerAI, c.text, nil)
		r.channels.Broadcast(models.InterviewComplete{})
		r.state = models.StateCompleted
		r.finish(now)
	}
}

func (r *Runner) handleTranscribed(c transcribedCmd) {
	if c.epoch != r.epoch {
		return
	}
	if r.state != models.StateQuestioning && r.state != models.StateFollowUp {
		return
	}
	r.transcribing = false
	now := r.clock()

	if c.err != nil {
		// The gateway already retried once. The node degrades to
		// unanswered rather than being re-asked.
		r.logger.Warn("transcription failed",
			zap.String("session", r.SessionID), zap.Error(c.err))
		r.finishNode(models.OutcomeUnanswered)
		r.advance(now)
		return
	}

	text := strings.TrimSpace(c.result.Text)
	if text == "" {
		r.channels.Broadcast(models.AIListening{})
		if !r.questionDeadline.IsZero() && !now.Before(r.questionDeadline) {
			r.closeOutNode(now)
		}
		return
	}

	node := c.node
	r.nodeWords += wordCount(text)
	if r.answerText != "" {
		r.answerText += " "
	}
	r.answerText += text
	r.appendSegment(models.SpeakerCandidate, text, &node)

	if r.state == models.StateFollowUp {
		// Follow-up answered; cursor advances.
		r.finishNode(models.OutcomeAnswered)
		r.advance(now)
		return
	}

	if c.final || (!r.questionDeadline.IsZero() && !now.Before(r.questionDeadline)) {
		r.evaluateAnswer(now)
		return
	}
	r.channels.Broadcast(models.AIListening{})
}

func (r *Runner) handleFollowUp(c followUpCmd) {
	if c.epoch != r.epoch || r.state != models.StateFollowUp {
		return
	}
	now := r.clock()
	text := strings.TrimSpace(c.text)

	if c.err != nil {
		// Generator failures are non-fatal; fall back to a canned
		// suggestion when the answer really was thin, otherwise move on.
		r.logger.Warn("follow-up generation failed",
			zap.String("session", r.SessionID), zap.Error(c.err))
		node := r.plan.Nodes[c.node]
		if len(node.StaticFollowUps) > 0 && r.nodeWords < r.cfg.AnswerMinWords {
			r.deliverFollowUp(c.node, node.StaticFollowUps[0])
			return
		}
		text = ""
	}

	if text == "" {
		// Nothing worth asking; the answer stands.
		r.finishNode(models.OutcomeAnswered)
		r.advance(now)
		return
	}

	if r.hybrid && r.managerPresent {
		// Speculative follow-up: withheld from the candidate until the
		// manager approves it.
		r.pendingFollowUp = &pendingFollowUp{node: c.node, text: text, proposedAt: now}
		r.channels.Send(models.RoleManager, models.FollowUpProposed{NodeIndex: c.node, Text: text})
		r.channels.Send(models.RoleCandidate, models.AIListening{})
		return
	}
	r.deliverFollowUp(c.node, text)
}

// tick drives every time-based transition. now comes from the runner's
// clock so tests can step it.
func (r *Runner) tick(now time.Time) {
	if r.state.Terminal() {
		return
	}

	// The disconnect grace period runs even while paused.
	if !r.graceDeadline.IsZero() && !now.Before(r.graceDeadline) {
		r.abandon(now)
		return
	}
	if r.paused {
		return
	}

	switch r.state {
	case models.StateIntro:
		if r.greetingDone && !r.introDeadline.IsZero() && !now.Before(r.introDeadline) {
			r.askCurrent(now)
		}

	case models.StateQuestioning, models.StateFollowUp:
		if !r.transcribing && r.audio.ShouldFlush(now) {
			final := r.audio.SilenceElapsed(now) ||
				(!r.questionDeadline.IsZero() && !now.Before(r.questionDeadline))
			r.transcribe(r.audio.Flush(), r.cursor, final)
			return
		} else if !r.transcribing && !r.audio.Ready() &&
			!r.questionDeadline.IsZero() && !now.Before(r.questionDeadline) {
			r.closeOutNode(now)
			return
		}

		if p := r.pendingFollowUp; p != nil && now.Sub(p.proposedAt) >= r.cfg.FollowUpApproval {
			// Neither approved nor dismissed in time.
			r.pendingFollowUp = nil
			r.finishNode(models.OutcomeAnswered)
			r.advance(now)
			return
		}

		if !r.lastActivity.IsZero() {
			idle := now.Sub(r.lastActivity)
			if idle >= r.cfg.IdleCheckIn+r.cfg.IdleClose {
				r.toClosing(now)
			} else if idle >= r.cfg.IdleCheckIn && !r.checkInSent {
				r.checkInSent = true
				line, err := r.script.Script("check_in", r.candidate)
				if err == nil {
					r.speak(uttCheckIn, -1, line)
				}
			}
		}
	}
}

// --- transitions ---

func (r *Runner) maybeStartQuestioning(now time.Time) {
	if r.state != models.StateIntro || !r.greetingDone {
		return
	}
	if r.candidateReady || (!r.introDeadline.IsZero() && !now.Before(r.introDeadline)) {
		r.askCurrent(now)
	}
}

// askCurrent asks the node under the cursor, skipping optional nodes that
// no longer fit the time budget. Exhausting the plan or the budget moves
// the session to closing.
func (r *Runner) askCurrent(now time.Time) {
	r.pendingFollowUp = nil
	r.questionDeadline = time.Time{}

	for {
		if r.cursor >= r.plan.Len() {
			r.toClosing(now)
			return
		}
		elapsed := now.Sub(r.startedAt)
		if r.cfg.MaxDuration > 0 && elapsed >= r.cfg.MaxDuration {
			r.expireRemaining()
			r.toClosing(now)
			return
		}

		node := r.plan.Nodes[r.cursor]
		if !node.Required && r.cfg.MaxDuration > 0 {
			// Optional nodes are dropped first when time is short.
			remaining := r.cfg.MaxDuration - elapsed
			if remaining < time.Duration(node.AllottedSec)*time.Second {
				r.outcomes[r.cursor] = models.OutcomeSkipped
				r.cursor++
				continue
			}
		}

		r.state = models.StateQuestioning
		r.nodeWords = 0
		r.answerText = ""
		r.transcribing = false
		r.audio.Reset()
		r.speak(uttQuestion, r.cursor, node.Text)
		r.mirrorPlanStatus()
		return
	}
}

// advance moves past the current node. Bumping the epoch makes any still
// in-flight external result for the old node stale.
func (r *Runner) advance(now time.Time) {
	r.epoch++
	r.cursor++
	r.askCurrent(now)
}

// closeOutNode settles a node whose allotted time lapsed.
func (r *Runner) closeOutNode(now time.Time) {
	if r.nodeWords > 0 {
		r.finishNode(models.OutcomeAnswered)
	} else {
		// No usable answer: unanswered, never re-asked.
		r.finishNode(models.OutcomeUnanswered)
	}
	r.advance(now)
}

// evaluateAnswer decides, after a final transcription window, whether the
// current node gets a follow-up.
func (r *Runner) evaluateAnswer(now time.Time) {
	node := r.plan.Nodes[r.cursor]
	overBudget := r.cfg.MaxDuration > 0 && now.Sub(r.startedAt) >= r.cfg.MaxDuration

	belowThreshold := r.nodeWords < r.cfg.AnswerMinWords
	permitsDynamic := len(node.Criteria) > 0

	if !overBudget && !r.followUpAsked[r.cursor] && (belowThreshold || permitsDynamic) {
		r.followUpAsked[r.cursor] = true
		r.state = models.StateFollowUp
		r.questionDeadline = time.Time{}
		r.generateFollowUp(r.cursor, r.answerText)
		return
	}

	r.finishNode(models.OutcomeAnswered)
	r.advance(now)
}

// deliverFollowUp speaks a follow-up to the candidate and records it in
// the node's generated slot, so replaying the transcript reproduces the
// exact phrasing.
func (r *Runner) deliverFollowUp(node int, text string) {
	r.pendingFollowUp = nil
	r.plan.Nodes[node].GeneratedFollowUp = text
	r.state = models.StateFollowUp
	r.questionDeadline = time.Time{}
	r.speak(uttFollowUp, node, text)
}

func (r *Runner) toClosing(now time.Time) {
	r.state = models.StateClosing
	r.pendingFollowUp = nil
	r.questionDeadline = time.Time{}
	r.mirrorPlanStatus()

	line, err := r.script.Script("closing", r.candidate)
	if err != nil {
		r.logger.Error("missing closing script", zap.Error(err))
		line = "Thank you for your time. The interview is now complete."
	}
	r.speak(uttClosing, -1, line)
}

func (r *Runner) abandon(now time.Time) {
	r.cancelCalls()
	r.state = models.StateAbandoned
	r.channels.Send(models.RoleManager, models.SessionError{Reason: "candidate disconnected", Terminal: true})
	r.finish(now)
}

// finish runs the one-time terminal bookkeeping.
func (r *Runner) finish(now time.Time) {
	r.expireRemaining()
	metrics.SessionsEnded.WithLabelValues(string(r.state)).Inc()
	r.channels.CloseAll()
	if r.onTerminal != nil {
		r.onTerminal(r.SessionID, r.state, r.outcomes, now)
	}
}

// expireRemaining settles nodes that will never be asked.
func (r *Runner) expireRemaining() {
	for i := r.cursor; i < len(r.outcomes); i++ {
		if r.outcomes[i] != models.OutcomePending {
			continue
		}
		if r.plan.Nodes[i].Required {
			r.outcomes[i] = models.OutcomeUnanswered
		} else {
			r.outcomes[i] = models.OutcomeSkipped
		}
	}
}

func (r *Runner) finishNode(outcome models.NodeOutcome) {
	if r.cursor < len(r.outcomes) && r.outcomes[r.cursor] == models.OutcomePending {
		r.outcomes[r.cursor] = outcome
	}
}

func (r *Runner) togglePause(now time.Time) {
	if !r.paused {
		r.paused = true
		r.pausedAt = now
		return
	}
	delta := now.Sub(r.pausedAt)
	r.paused = false
	r.startedAt = r.startedAt.Add(delta)
	if !r.questionDeadline.IsZero() {
		r.questionDeadline = r.questionDeadline.Add(delta)
	}
	if !r.lastActivity.IsZero() {
		r.lastActivity = r.lastActivity.Add(delta)
	}
	if r.pendingFollowUp != nil {
		r.pendingFollowUp.proposedAt = r.pendingFollowUp.proposedAt.Add(delta)
	}
}

// cancelCalls discards every in-flight external call for the session.
func (r *Runner) cancelCalls() {
	r.callsCancel()
	r.callsCtx, r.callsCancel = context.WithCancel(r.ctx)
	r.epoch++
	r.transcribing = false
}

// --- plumbing ---

func (r *Runner) appendSegment(speaker models.Speaker, text string, nodeIndex *int) {
	seg, err := r.store.Append(r.SessionID, speaker, text, nodeIndex, r.clock())
	if err != nil {
		r.logger.Error("failed to append transcript segment",
			zap.String("session", r.SessionID), zap.Error(err))
	}
	metrics.SegmentsAppended.WithLabelValues(string(speaker)).Inc()
	r.channels.Broadcast(models.TranscriptUpdate{
		Seq:       seg.Seq,
		Speaker:   speaker,
		Text:      text,
		NodeIndex: nodeIndex,
	})
	if r.managerPresent {
		r.channels.Send(models.RoleManager, r.planStatus())
	}
}

func (r *Runner) planStatus() models.PlanStatus {
	return models.PlanStatus{
		Cursor:   r.cursor,
		State:    r.state,
		Coverage: models.ComputeCoverage(r.plan, r.store.Segments(r.SessionID)),
	}
}

func (r *Runner) mirrorPlanStatus() {
	if r.managerPresent {
		r.channels.Send(models.RoleManager, r.planStatus())
	}
}

// replay pushes the recent-history buffer to a (re)connecting channel
// instead of the full transcript.
func (r *Runner) replay(c *channel.Client) {
	for _, seg := range r.store.Recent(r.SessionID, r.cfg.ReplayDepth) {
		c.Send(models.TranscriptUpdate{
			Seq:       seg.Seq,
			Speaker:   seg.Speaker,
			Text:      seg.Text,
			NodeIndex: seg.NodeIndex,
		})
	}
	c.Send(models.AIListening{})
}
