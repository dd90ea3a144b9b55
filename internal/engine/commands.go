package engine

import (
	"recruitai/interview/internal/channel"
	"recruitai/interview/internal/models"
	"recruitai/interview/internal/speech"
)

// command is the closed set of inputs to a session's state machine. Every
// mutation of session state flows through exactly one of these, handled on
// the runner's single goroutine.
type command interface{ isCommand() }

type attachCmd struct {
	client *channel.Client
}

type detachCmd struct {
	client *channel.Client
}

type audioCmd struct {
	chunk models.AudioChunk
}

type controlCmd struct {
	action models.ControlAction
	from   *channel.Client
}

// utteranceKind distinguishes what a finished synthesis was for.
type utteranceKind int

const (
	uttGreeting utteranceKind = iota
	uttQuestion
	uttFollowUp
	uttCheckIn
	uttClosing
)

// spokenCmd reports a finished synthesis call. err is set when synthesis
// failed after its retry; the utterance is still delivered text-only.
type spokenCmd struct {
	epoch    int
	kind     utteranceKind
	node     int
	text     string
	audioRef string
	err      error
}

// transcribedCmd reports a finished transcription call for one flushed
// audio window.
type transcribedCmd struct {
	epoch  int
	node   int
	final  bool
	result *speech.Transcription
	err    error
}

// followUpCmd reports a finished follow-up generation call.
type followUpCmd struct {
	epoch int
	node  int
	text  string
	err   error
}

func (attachCmd) isCommand()      {}
func (detachCmd) isCommand()      {}
func (audioCmd) isCommand()       {}
func (controlCmd) isCommand()     {}
func (spokenCmd) isCommand()      {}
func (transcribedCmd) isCommand() {}
func (followUpCmd) isCommand()    {}
