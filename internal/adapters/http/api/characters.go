package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/blurber/internal/adapters/repository"
	"github.com/okian/blurber/internal/domain/model"
)

// CharacterDependencies defines the interface for character lookups.
type CharacterDependencies interface {
	Character(ctx context.Context, id model.EntityID) (repository.CharacterView, error)
}

// CharacterHandler handles character requests.
type CharacterHandler struct {
	deps CharacterDependencies
}

// NewCharacterHandler creates a new character handler.
func NewCharacterHandler(deps CharacterDependencies) *CharacterHandler {
	return &CharacterHandler{deps: deps}
}

// HandleGetCharacter handles GET /characters/{character_id} requests.
func (h *CharacterHandler) HandleGetCharacter(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_character"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id, err := pathID(r.URL.Path, "/characters/")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	view, err := h.deps.Character(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}
