package followup

import "context"

// Request carries everything the generator needs to judge whether a
// clarifying question is worth asking.
type Request struct {
	Question string
	Criteria []string
	Answer   string
}

// Provider proposes at most one clarifying follow-up for an answer. An
// empty string with a nil error means the answer needs no follow-up.
type Provider interface {
	GenerateFollowUp(ctx context.Context, req Request) (string, error)
	GetProviderName() string
}

// ProviderError represents an error from a follow-up provider.
type ProviderError struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Provider + " error: " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Provider + " error: " + e.Message
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Common error codes
const (
	ErrCodeAPIKey       = "invalid_api_key"
	ErrCodeRateLimit    = "rate_limit_exceeded"
	ErrCodeServiceDown  = "service_unavailable"
	ErrCodeInvalidInput = "invalid_input"
	ErrCodeTimeout      = "timeout"
)
