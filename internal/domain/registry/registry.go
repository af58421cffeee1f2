// Package registry maps tracked characters to the inbox of their session.
package registry

import (
	"context"

	"github.com/okian/blurber/internal/domain/model"
	"github.com/puzpuzpuz/xsync/v3"
)

// Inbox is the send side of a session.
type Inbox interface {
	Deliver(ctx context.Context, e model.Event) error
}

// Registry is a concurrent map from tracked character to session inbox.
// Each operation is atomic with respect to the others.
type Registry struct {
	m *xsync.MapOf[model.EntityID, Inbox]
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{m: xsync.NewMapOf[model.EntityID, Inbox]()}
}

// Register inserts in for id. It fails with ErrAlreadyTracked, leaving the
// existing entry untouched, when id already has a session.
func (r *Registry) Register(id model.EntityID, in Inbox) error {
	if _, loaded := r.m.LoadOrStore(id, in); loaded {
		return ErrAlreadyTracked
	}
	return nil
}

// Unregister removes id. Removing an absent id is a no-op.
func (r *Registry) Unregister(id model.EntityID) (Inbox, bool) {
	return r.m.LoadAndDelete(id)
}

// UnregisterIf removes id only while it still maps to in, so a session
// tearing down late cannot remove its successor.
func (r *Registry) UnregisterIf(id model.EntityID, in Inbox) bool {
	removed := false
	r.m.Compute(id, func(cur Inbox, loaded bool) (Inbox, bool) {
		if loaded && cur == in {
			removed = true
			return nil, true
		}
		return cur, !loaded
	})
	return removed
}

// Lookup returns the inbox registered for id.
func (r *Registry) Lookup(id model.EntityID) (Inbox, bool) {
	return r.m.Load(id)
}

// Contains reports whether id has a session.
func (r *Registry) Contains(id model.EntityID) bool {
	_, ok := r.m.Load(id)
	return ok
}

// Len returns the number of tracked characters.
func (r *Registry) Len() int { return r.m.Size() }

// Range calls fn for every entry until fn returns false.
func (r *Registry) Range(fn func(id model.EntityID, in Inbox) bool) {
	r.m.Range(fn)
}
