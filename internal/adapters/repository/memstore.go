package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/blurber/internal/domain/model"
	"github.com/okian/blurber/internal/domain/session"
)

const defaultMaxLimit = 1000

var killCategories = []model.Category{
	model.CategoryKill, model.CategoryKillHeadshot, model.CategoryKillDouble,
	model.CategoryKillTriple, model.CategoryKillQuad, model.CategoryKillPenta,
}

// MemoryStore implements Store with a mutex-guarded map.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[model.EntityID]*Record
	maxLimit int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		records:  make(map[model.EntityID]*Record),
		maxLimit: defaultMaxLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordSession folds snap into the character's record.
func (s *MemoryStore) RecordSession(_ context.Context, snap session.Snapshot, reason session.Reason, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[snap.CharacterID]
	if !ok {
		r = &Record{CharacterID: snap.CharacterID, Categories: make(map[model.Category]int)}
		s.records[snap.CharacterID] = r
	}
	r.Name = snap.Name
	r.Sessions++
	r.Events += snap.Events
	for cat, n := range snap.Categories {
		r.Categories[cat] += n
	}
	r.Kills = 0
	for _, cat := range killCategories {
		r.Kills += r.Categories[cat]
	}
	r.LastReason = reason
	r.LastEndedAt = endedAt
	return nil
}

// Get returns a copy of the character's record.
func (s *MemoryStore) Get(_ context.Context, id model.EntityID) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.clone(), nil
}

// TopN returns up to n records ordered by kills, then sessions, then id.
func (s *MemoryStore) TopN(_ context.Context, n int) ([]Entry, error) {
	if n <= 0 || n > s.maxLimit {
		return nil, fmt.Errorf("%w: %d (must be 1..%d)", ErrInvalidLimit, n, s.maxLimit)
	}

	s.mu.RLock()
	rows := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		rows = append(rows, r.clone())
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Kills != rows[j].Kills {
			return rows[i].Kills > rows[j].Kills
		}
		if rows[i].Sessions != rows[j].Sessions {
			return rows[i].Sessions > rows[j].Sessions
		}
		return rows[i].CharacterID < rows[j].CharacterID
	})
	if len(rows) > n {
		rows = rows[:n]
	}

	out := make([]Entry, len(rows))
	for i, r := range rows {
		out[i] = Entry{Rank: i + 1, Record: r}
	}
	return out, nil
}

// Count returns the number of characters with history.
func (s *MemoryStore) Count(context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (r *Record) clone() Record {
	c := *r
	c.Categories = make(map[model.Category]int, len(r.Categories))
	for k, v := range r.Categories {
		c.Categories[k] = v
	}
	return c
}
