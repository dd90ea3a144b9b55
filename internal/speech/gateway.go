package speech

import "context"

// Transcription is the result of transcribing a buffered audio window.
type Transcription struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Gateway adapts external transcription and synthesis providers. Every
// call is fallible and at-most-once from the engine's perspective; the
// gateway never resubmits audio on its own.
type Gateway interface {
	// Transcribe converts a window of ordered audio chunks to text.
	Transcribe(ctx context.Context, chunks [][]byte) (*Transcription, error)
	// Synthesize renders text to speech and returns an opaque audio
	// reference for playback.
	Synthesize(ctx context.Context, text, voice string) (string, error)
}

// GatewayError is an error from a speech provider.
type GatewayError struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return e.Provider + " error: " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Provider + " error: " + e.Message
}

func (e *GatewayError) Unwrap() error { return e.Err }

const (
	ErrCodeTimeout      = "timeout"
	ErrCodeServiceDown  = "service_unavailable"
	ErrCodeInvalidInput = "invalid_input"
)
