package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"recruitai/interview/internal/models"
)

// SessionTokenClaims are the claims carried by an interview access token.
// The scheduling service mints these; the engine only validates them.
type SessionTokenClaims struct {
	SessionID   string      `json:"sessionId"`
	CandidateID string      `json:"candidateId,omitempty"`
	Role        models.Role `json:"role"`
	jwt.RegisteredClaims
}

// GenerateSessionToken mints a token for a session role. Used by tests and
// the scheduling integration; candidates receive theirs out of band.
func GenerateSessionToken(sessionID, candidateID string, role models.Role, expiresAt time.Time, secret []byte) (string, error) {
	claims := &SessionTokenClaims{
		SessionID:   sessionID,
		CandidateID: candidateID,
		Role:        role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateSessionToken validates a token and returns its claims.
func ValidateSessionToken(tokenString string, secret []byte) (*SessionTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SessionTokenClaims)
	if !ok || claims.SessionID == "" {
		return nil, errors.New("invalid session token claims")
	}
	return claims, nil
}

// ExtractTokenFromHeader extracts the bearer token from an Authorization
// header value.
func ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("authorization header missing")
	}
	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return "", errors.New("invalid authorization header format")
	}
	return authHeader[7:], nil
}
