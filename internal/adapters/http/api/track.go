package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/blurber/internal/adapters/census"
	"github.com/okian/blurber/internal/domain/model"
	"github.com/okian/blurber/internal/domain/registry"
	"github.com/okian/blurber/internal/domain/session"
)

// maxTrackBody caps the POST /track body.
const maxTrackBody = 4 << 10

// TrackDependencies starts and stops tracking sessions.
type TrackDependencies interface {
	Track(ctx context.Context, req model.TrackRequest) (session.Snapshot, error)
	Untrack(ctx context.Context, id model.EntityID) error
}

// TrackHandler handles track and untrack requests.
type TrackHandler struct {
	deps TrackDependencies
}

// NewTrackHandler creates a new track handler.
func NewTrackHandler(deps TrackDependencies) *TrackHandler {
	return &TrackHandler{deps: deps}
}

type trackResponse struct {
	Status      string         `json:"status"`
	Message     string         `json:"message"`
	CharacterID model.EntityID `json:"character_id,string"`
	SessionID   string         `json:"session_id"`
}

// HandleTrack handles POST /track requests.
func (h *TrackHandler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	const op = "api.track"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req model.TrackRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTrackBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	snap, err := h.deps.Track(r.Context(), req)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrInvalidRequest), errors.Is(err, census.ErrInvalidName):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	case errors.Is(err, census.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
		return
	case errors.Is(err, registry.ErrAlreadyTracked):
		writeError(w, http.StatusConflict, "already_tracked", WrapKind(op, ErrConflict, err))
		return
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}

	writeJSON(w, http.StatusAccepted, trackResponse{
		Status: "tracking",
		Message: fmt.Sprintf("Successfully joined voice channel, listening to events from %s (ID %s)",
			snap.Name, snap.CharacterID),
		CharacterID: snap.CharacterID,
		SessionID:   snap.ID,
	})
}

// HandleUntrack handles DELETE /track/{character_id} requests.
func (h *TrackHandler) HandleUntrack(w http.ResponseWriter, r *http.Request) {
	const op = "api.untrack"
	if r.Method != http.MethodDelete {
		http.NotFound(w, r)
		return
	}
	id, err := pathID(r.URL.Path, "/track/")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.Untrack(r.Context(), id); err != nil {
		if errors.Is(err, registry.ErrNotTracked) {
			writeError(w, http.StatusNotFound, "not_tracked", WrapKind(op, ErrNotFound, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped", "character_id": id.String()})
}

// pathID extracts the character id following prefix.
func pathID(path, prefix string) (model.EntityID, error) {
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" || strings.Contains(rest, "/") {
		return 0, errors.New("missing character id")
	}
	return model.ParseEntityID(rest)
}
