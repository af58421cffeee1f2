// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	TrackDependencies
	SessionsDependencies
	LeaderboardDependencies
	CharacterDependencies
	StatsProvider
}

// Server wires HTTP routes for the command API.
type Server struct {
	healthHandler      *HealthHandler
	pingHandler        *PingHandler
	statsHandler       *StatsHandler
	trackHandler       *TrackHandler
	sessionsHandler    *SessionsHandler
	leaderboardHandler *LeaderboardHandler
	characterHandler   *CharacterHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, maxLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		pingHandler:        NewPingHandler(),
		statsHandler:       NewStatsHandler(deps),
		trackHandler:       NewTrackHandler(deps),
		sessionsHandler:    NewSessionsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
		characterHandler:   NewCharacterHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, routeHealth))
	mux.HandleFunc("/ping", MetricsMiddleware(s.pingHandler.HandlePing, routePing))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, routeStats))
	mux.HandleFunc("/track", MetricsMiddleware(s.trackHandler.HandleTrack, routeTrack))
	mux.HandleFunc("/track/", MetricsMiddleware(s.trackHandler.HandleUntrack, routeUntrack))
	mux.HandleFunc("/sessions", MetricsMiddleware(s.sessionsHandler.HandleSessions, routeSessions))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, routeLeaderboard))
	mux.HandleFunc("/characters/", MetricsMiddleware(s.characterHandler.HandleGetCharacter, routeCharacter))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	noteErrorCode(w, code)
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
