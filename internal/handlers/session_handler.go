package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"recruitai/interview/internal/orchestrator"
	"recruitai/interview/internal/utils"
)

// SessionHandler serves the REST surface: health and the candidate-facing
// status lookup the interview front-end polls before connecting.
type SessionHandler struct {
	Orchestrator *orchestrator.Orchestrator
	Logger       *zap.Logger
}

func NewSessionHandler(o *orchestrator.Orchestrator, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{Orchestrator: o, Logger: logger}
}

func (h *SessionHandler) Health(w http.ResponseWriter, r *http.Request) {
	utils.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Status resolves an access token to the session's public view. The token
// comes from the Authorization header or, for convenience, the URL.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		header, err := utils.ExtractTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			utils.JSONError(w, http.StatusUnauthorized, "missing access token")
			return
		}
		token = header
	}

	status, err := h.Orchestrator.Status(token)
	if err != nil {
		if errors.Is(err, orchestrator.ErrInvalidToken) {
			utils.JSONError(w, http.StatusUnauthorized, "invalid access token")
			return
		}
		h.Logger.Error("status lookup failed", zap.Error(err))
		utils.JSONError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	utils.JSON(w, http.StatusOK, status)
}
