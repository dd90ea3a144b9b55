package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8087", cfg.Port)
	assert.Equal(t, "gemini", cfg.FollowUpProvider)
	assert.Equal(t, 12, cfg.Engine.AnswerMinWords)
	assert.Equal(t, time.Minute, cfg.Engine.DisconnectGrace)
	assert.Equal(t, 5*time.Second, cfg.Engine.AudioWindow)
	assert.Equal(t, 1200*time.Millisecond, cfg.Engine.SilenceFlush)
	assert.Equal(t, 45*time.Minute, cfg.Engine.MaxDuration)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("FOLLOWUP_PROVIDER", "none")
	t.Setenv("ANSWER_MIN_WORDS", "3")
	t.Setenv("DISCONNECT_GRACE_SEC", "90")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "none", cfg.FollowUpProvider)
	assert.Equal(t, 3, cfg.Engine.AnswerMinWords)
	assert.Equal(t, 90*time.Second, cfg.Engine.DisconnectGrace)
}

func TestLoadConfigRejectsUnknownProvider(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("FOLLOWUP_PROVIDER", "gpt9000")

	_, err := LoadConfig()
	assert.Error(t, err)
}
