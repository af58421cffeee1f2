package api

import (
	"net/http"

	"github.com/okian/blurber/internal/domain/session"
)

// SessionsDependencies lists live sessions.
type SessionsDependencies interface {
	Sessions() []session.Snapshot
}

// SessionsHandler handles session listing requests.
type SessionsHandler struct {
	deps SessionsDependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionsDependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

// HandleSessions handles GET /sessions requests.
func (h *SessionsHandler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Sessions())
}
