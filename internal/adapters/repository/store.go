// Package repository keeps the in-memory history of finished sessions and
// ranks characters by the kills announced for them.
package repository

import (
	"context"
	"time"

	"github.com/okian/blurber/internal/domain/model"
	"github.com/okian/blurber/internal/domain/session"
)

// Record aggregates every finished session of one character.
type Record struct {
	CharacterID model.EntityID         `json:"character_id,string"`
	Name        string                 `json:"character_name"`
	Sessions    int                    `json:"sessions"`
	Events      int64                  `json:"events"`
	Kills       int                    `json:"kills"`
	Categories  map[model.Category]int `json:"categories"`
	LastReason  session.Reason         `json:"last_reason"`
	LastEndedAt time.Time              `json:"last_ended_at"`
}

// Entry is a leaderboard row.
type Entry struct {
	Rank int `json:"rank"`
	Record
}

// CharacterView combines a character's live session, if any, with its
// finished-session history.
type CharacterView struct {
	CharacterID model.EntityID    `json:"character_id,string"`
	Live        *session.Snapshot `json:"live,omitempty"`
	History     *Record           `json:"history,omitempty"`
}

// Store provides read/write access to session history.
type Store interface {
	// RecordSession folds a finished session into its character's record.
	RecordSession(ctx context.Context, snap session.Snapshot, reason session.Reason, endedAt time.Time) error

	// Get returns the record of a character.
	// Returns ErrNotFound if the character never finished a session.
	Get(ctx context.Context, id model.EntityID) (Record, error)

	// TopN returns the top-N characters ordered by kills desc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of characters with history.
	Count(ctx context.Context) int
}
