package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"recruitai/interview/internal/channel"
	"recruitai/interview/internal/models"
	"recruitai/interview/internal/orchestrator"
	"recruitai/interview/internal/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Token auth happens before the upgrade; browsers cannot set custom
	// headers on websocket requests, so origin checks stay permissive.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades interview channels. One endpoint per role; both
// resolve the token through the orchestrator so a reconnect resumes the
// running session instead of starting a new one.
type WSHandler struct {
	Orchestrator *orchestrator.Orchestrator
	Logger       *zap.Logger
}

func NewWSHandler(o *orchestrator.Orchestrator, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{Orchestrator: o, Logger: logger}
}

// Candidate handles GET /ws/candidate?token=...
func (h *WSHandler) Candidate(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, models.RoleCandidate)
}

// Manager handles GET /ws/manager?token=...
func (h *WSHandler) Manager(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, models.RoleManager)
}

func (h *WSHandler) serve(w http.ResponseWriter, r *http.Request, role models.Role) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if header, err := utils.ExtractTokenFromHeader(r.Header.Get("Authorization")); err == nil {
			token = header
		}
	}
	if token == "" {
		utils.JSONError(w, http.StatusUnauthorized, "missing access token")
		return
	}

	handle, err := h.Orchestrator.OpenSession(r.Context(), token)
	if err != nil {
		status, reason := openErrorStatus(err)
		if status == http.StatusInternalServerError {
			h.Logger.Error("failed to open session", zap.Error(err))
		}
		utils.JSONError(w, status, reason)
		return
	}
	if handle.Role != role {
		utils.JSONError(w, http.StatusForbidden, "token not valid for this channel")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := channel.NewClient(role, conn)
	handle.Runner.Attach(client)
	h.Logger.Info("channel attached",
		zap.String("session", handle.Session.ID),
		zap.String("role", string(role)))

	h.readLoop(conn, client, handle)

	handle.Runner.Detach(client)
	client.Close()
}

// readLoop pumps inbound envelopes into the session's state machine until
// the socket closes or the session ends.
func (h *WSHandler) readLoop(conn *websocket.Conn, client *channel.Client, handle *orchestrator.SessionHandle) {
	for {
		select {
		case <-client.Done():
			return
		default:
		}

		var env models.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.Logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}

		msg, err := models.DecodeMessage(env)
		if err != nil {
			client.Send(models.SessionError{Reason: "unrecognized message type"})
			continue
		}

		switch m := msg.(type) {
		case *models.AudioChunk:
			if client.Role != models.RoleCandidate {
				client.Send(models.SessionError{Reason: "audio only accepted from the candidate"})
				continue
			}
			handle.Runner.SubmitAudio(*m)
		case *models.ManagerControl:
			handle.Runner.SubmitControl(m.Action, client)
		default:
			// Server-to-client kinds arriving inbound are protocol noise.
			client.Send(models.SessionError{Reason: "unexpected message direction"})
		}
	}
}

func openErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid access token"
	case errors.Is(err, orchestrator.ErrExpired):
		return http.StatusGone, "session expired"
	case errors.Is(err, orchestrator.ErrAlreadyCompleted):
		return http.StatusConflict, "session already completed"
	default:
		return http.StatusInternalServerError, "failed to open session"
	}
}
