package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruitai/interview/internal/config"
	"recruitai/interview/internal/followup"
	"recruitai/interview/internal/handlers"
	"recruitai/interview/internal/models"
	"recruitai/interview/internal/orchestrator"
	"recruitai/interview/internal/prompts"
	"recruitai/interview/internal/repositories"
	"recruitai/interview/internal/routers"
	"recruitai/interview/internal/speech"
	"recruitai/interview/internal/testhelpers"
	"recruitai/interview/internal/transcript"
	"recruitai/interview/internal/utils"
)

const testSecret = "test-secret"

type stubGateway struct{}

func (stubGateway) Transcribe(ctx context.Context, chunks [][]byte) (*speech.Transcription, error) {
	return &speech.Transcription{Text: "a perfectly adequate answer with enough words in it", Confidence: 0.9}, nil
}

func (stubGateway) Synthesize(ctx context.Context, text, voice string) (string, error) {
	return "audio-ref", nil
}

type stubProvider struct{}

func (stubProvider) GenerateFollowUp(ctx context.Context, req followup.Request) (string, error) {
	return "", nil
}

func (stubProvider) GetProviderName() string { return "stub" }

type stubBank struct{ plan models.QuestionPlan }

func (b stubBank) PlanForRole(ctx context.Context, roleID string) (models.QuestionPlan, error) {
	return b.plan, nil
}

type testEnv struct {
	server   *httptest.Server
	sessions *repositories.SessionRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testhelpers.NewTestDB(t)
	sessions := &repositories.SessionRepository{DB: db}
	script, err := prompts.NewManager()
	require.NoError(t, err)

	cfg := &config.Config{JWTSecret: testSecret}
	cfg.Engine = config.EngineConfig{
		AnswerMinWords:  5,
		DisconnectGrace: time.Minute,
		AudioWindow:     5 * time.Second,
		SilenceFlush:    time.Second,
		ReorderWindow:   8,
		IdleCheckIn:     45 * time.Second,
		IdleClose:       45 * time.Second,
		IntroTimeout:    30 * time.Second,
		MaxDuration:     45 * time.Minute,
		SpeechTimeout:   2 * time.Second,
		FollowUpTimeout: 2 * time.Second,
		ReplayDepth:     10,
	}

	orch := orchestrator.New(orchestrator.Params{
		Config:   cfg,
		Sessions: sessions,
		Store:    transcript.NewStore(db),
		Bank: stubBank{plan: models.QuestionPlan{
			RoleID: "backend-engineer",
			Nodes:  []models.QuestionNode{{Text: "Tell me about yourself.", Required: true, AllottedSec: 120}},
		}},
		Speech:   stubGateway{},
		FollowUp: stubProvider{},
		Script:   script,
	})

	router := routers.SetupRoutes(handlers.NewSessionHandler(orch, nil), handlers.NewWSHandler(orch, nil))
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testEnv{server: server, sessions: sessions}
}

func (e *testEnv) createSession(t *testing.T) (string, string) {
	t.Helper()
	id := "sess-" + t.Name()
	token, err := utils.GenerateSessionToken(id, "cand-1", models.RoleCandidate, time.Now().Add(time.Hour), []byte(testSecret))
	require.NoError(t, err)
	require.NoError(t, e.sessions.CreateSession(&models.InterviewSession{
		ID:          id,
		Token:       token,
		State:       models.StatePending,
		CandidateID: "cand-1",
		RoleID:      "backend-engineer",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))
	return id, token
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	id, token := env.createSession(t)

	resp, err := http.Get(env.server.URL + "/api/v1/sessions/" + token + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status models.SessionStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, id, status.ID)
	assert.Equal(t, models.StatePending, status.State)
}

func TestStatusRejectsGarbageToken(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/api/v1/sessions/garbage/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCandidateWebSocketFlow(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.createSession(t)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/candidate?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The greeting arrives as soon as the channel attaches.
	env.expectKind(t, conn, models.KindAISpeaking)

	// Readiness signal: the first question follows.
	chunk, err := models.EncodeMessage(models.AudioChunk{Seq: 0, Data: []byte("pcm")})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(chunk))

	msg := env.expectKind(t, conn, models.KindAISpeaking)
	assert.Equal(t, "Tell me about yourself.", msg.(*models.AISpeaking).Text)
}

func TestWebSocketRejectsMissingToken(t *testing.T) {
	env := newTestEnv(t)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/candidate"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestManagerWebSocketRejectedOnAIOnlySession(t *testing.T) {
	env := newTestEnv(t)
	id, _ := env.createSession(t)
	mgrToken, err := utils.GenerateSessionToken(id, "", models.RoleManager, time.Now().Add(time.Hour), []byte(testSecret))
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/manager?token=" + mgrToken
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// expectKind reads frames until one of the wanted kind arrives, skipping
// turn signals and transcript mirroring.
func (e *testEnv) expectKind(t *testing.T, conn *websocket.Conn, kind models.MessageKind) models.Message {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		var env models.Envelope
		require.NoError(t, conn.ReadJSON(&env))
		msg, err := models.DecodeMessage(env)
		require.NoError(t, err)
		if msg.Kind() == kind {
			return msg
		}
	}
	t.Fatalf("did not receive %s in time", kind)
	return nil
}
