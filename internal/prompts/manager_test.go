package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptLinesLoaded(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)

	for _, name := range []string{"greeting", "check_in", "closing"} {
		line, err := m.Script(name, "Alex")
		require.NoError(t, err, name)
		assert.NotEmpty(t, line)
		assert.NotContains(t, line, "{{.Candidate}}")
	}

	greeting, _ := m.Script("greeting", "Alex")
	assert.Contains(t, greeting, "Alex")

	_, err = m.Script("encore", "Alex")
	assert.Error(t, err)
}

func TestFollowUpPromptSubstitution(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)

	prompt := m.FollowUpPrompt("What did you build?", []string{"scale", "ownership"}, "A thing.")
	assert.Contains(t, prompt, "What did you build?")
	assert.Contains(t, prompt, "scale; ownership")
	assert.Contains(t, prompt, "A thing.")
	assert.Contains(t, prompt, "NONE")
}
