package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruitai/interview/internal/models"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	expiresAt := time.Now().Add(time.Hour)

	token, err := GenerateSessionToken("sess-1", "cand-1", models.RoleCandidate, expiresAt, secret)
	require.NoError(t, err)

	claims, err := ValidateSessionToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "cand-1", claims.CandidateID)
	assert.Equal(t, models.RoleCandidate, claims.Role)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := GenerateSessionToken("sess-1", "cand-1", models.RoleCandidate, time.Now().Add(time.Hour), []byte("right"))
	require.NoError(t, err)

	_, err = ValidateSessionToken(token, []byte("wrong"))
	assert.Error(t, err)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	secret := []byte("test-secret")
	token, err := GenerateSessionToken("sess-1", "cand-1", models.RoleCandidate, time.Now().Add(-time.Minute), secret)
	require.NoError(t, err)

	_, err = ValidateSessionToken(token, secret)
	assert.Error(t, err)
}

func TestExtractTokenFromHeader(t *testing.T) {
	token, err := ExtractTokenFromHeader("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	_, err = ExtractTokenFromHeader("")
	assert.Error(t, err)

	_, err = ExtractTokenFromHeader("Basic abc")
	assert.Error(t, err)
}
