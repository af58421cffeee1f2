package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRequest reports a track request that cannot be served.
var ErrInvalidRequest = errors.New("invalid track request")

// TrackRequest asks for a new tracking session. Either CharacterID or
// CharacterName must be set; the id wins when both are.
type TrackRequest struct {
	CharacterID   EntityID `json:"character_id,string,omitempty"`
	CharacterName string   `json:"character_name,omitempty"`
	Target        string   `json:"target"`
	Voicepack     string   `json:"voicepack,omitempty"`
}

// Normalize trims surrounding whitespace from the text fields.
func (r TrackRequest) Normalize() TrackRequest {
	r.CharacterName = strings.TrimSpace(r.CharacterName)
	r.Target = strings.TrimSpace(r.Target)
	r.Voicepack = strings.TrimSpace(r.Voicepack)
	return r
}

// Validate reports the first missing field.
func (r TrackRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Target) == "":
		return fmt.Errorf("%w: missing target", ErrInvalidRequest)
	case r.CharacterID == 0 && strings.TrimSpace(r.CharacterName) == "":
		return fmt.Errorf("%w: missing character_name or character_id", ErrInvalidRequest)
	case strings.ContainsAny(r.Voicepack, `/\`):
		return fmt.Errorf("%w: invalid voicepack", ErrInvalidRequest)
	}
	return nil
}
