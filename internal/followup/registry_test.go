package followup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopProviderRegistered(t *testing.T) {
	p, err := NewProvider("none")
	require.NoError(t, err)
	assert.Equal(t, "none", p.GetProviderName())

	text, err := p.GenerateFollowUp(context.Background(), Request{Question: "q", Answer: "a"})
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestUnknownProviderRejected(t *testing.T) {
	_, err := NewProvider("oracle")
	assert.Error(t, err)
}

func TestProviderErrorUnwraps(t *testing.T) {
	inner := context.DeadlineExceeded
	err := &ProviderError{Provider: "gemini", Code: ErrCodeTimeout, Message: "timed out", Err: inner}

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "gemini")
	assert.Contains(t, err.Error(), "timed out")
}
