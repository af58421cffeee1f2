// Package session runs the per-character state machine that turns routed
// events into announcements.
//
// A session waits on its inbox and its idle timer in one select. Each event
// is classified synchronously and the resulting cue is handed to the player.
// The session ends when the idle timer fires, when the tracked character logs
// out and the logout cue has finished, or when it is cancelled.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/blurber/internal/domain/classify"
	"github.com/okian/blurber/internal/domain/model"
	"github.com/okian/blurber/pkg/logger"
)

// Default session configuration constants.
const (
	defaultIdleTimeout = 5 * time.Minute
	defaultLogoutWait  = 30 * time.Second
	leaveTimeout       = 10 * time.Second
	notifyTimeout      = 10 * time.Second
)

// Reason records why a session ended.
type Reason string

// End reasons.
const (
	ReasonIdleTimeout Reason = "idle_timeout"
	ReasonLogout      Reason = "logout"
	ReasonCancelled   Reason = "cancelled"
)

// Inbox is the receive side of a session's bounded event queue.
type Inbox interface {
	Deliver(ctx context.Context, e model.Event) error
	Events() <-chan model.Event
	Done() <-chan struct{}
	Len() int
	Close() error
}

// Cue asks the player to announce a category on a target.
type Cue struct {
	Category  model.Category
	Target    string
	Voicepack string
}

// Handle signals when a started cue has finished playing.
type Handle interface {
	Done() <-chan struct{}
}

// Player produces sound for cues. Play returns false when there is nothing
// to play for the cue, which is not an error.
type Player interface {
	Play(ctx context.Context, cue Cue) (Handle, bool)
	Leave(ctx context.Context, target string) error
}

// Notifier delivers user-facing notices.
type Notifier interface {
	Notify(ctx context.Context, n model.Notice) error
}

type nopPlayer struct{}

func (nopPlayer) Play(context.Context, Cue) (Handle, bool) { return nil, false }
func (nopPlayer) Leave(context.Context, string) error      { return nil }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, model.Notice) error { return nil }

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID          string                 `json:"id"`
	CharacterID model.EntityID         `json:"character_id,string"`
	Name        string                 `json:"character_name"`
	Target      string                 `json:"target"`
	Voicepack   string                 `json:"voicepack,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	LastEventAt time.Time              `json:"last_event_at,omitempty"`
	Events      int64                  `json:"events"`
	Streak      int                    `json:"streak"`
	Pending     int                    `json:"pending"`
	Categories  map[model.Category]int `json:"categories"`
}

// Session is the worker for one tracked character.
type Session struct {
	id        string
	character model.EntityID
	name      string
	target    string
	voicepack string

	inbox       Inbox
	classifier  *classify.Classifier
	player      Player
	notifier    Notifier
	idleTimeout time.Duration
	logoutWait  time.Duration
	onEnd       func(*Session, Reason)
	logger      logger.Logger

	// streak is only touched by the Run goroutine.
	streak classify.Streak

	mu          sync.Mutex
	startedAt   time.Time
	lastEventAt time.Time
	events      int64
	streakCount int
	categories  map[model.Category]int
	reason      Reason

	finished chan struct{}
	endOnce  sync.Once
}

// New creates a session for character announcing on target. Events arrive
// through inbox, which the session owns from now on.
func New(character model.EntityID, target string, inbox Inbox, opts ...Option) *Session {
	s := &Session{
		id:          uuid.NewString(),
		character:   character,
		name:        character.String(),
		target:      target,
		inbox:       inbox,
		classifier:  classify.New(),
		player:      nopPlayer{},
		notifier:    nopNotifier{},
		idleTimeout: defaultIdleTimeout,
		logoutWait:  defaultLogoutWait,
		logger:      logger.Get().Named("session"),
		startedAt:   time.Now(),
		categories:  make(map[model.Category]int),
		finished:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(
		logger.String("session_id", s.id),
		logger.String("character_id", s.character.String()),
		logger.String("target", s.target),
	)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Character returns the tracked character.
func (s *Session) Character() model.EntityID { return s.character }

// Name returns the tracked character's display name.
func (s *Session) Name() string { return s.name }

// Target returns where the session announces.
func (s *Session) Target() string { return s.target }

// Deliver forwards e to the session inbox.
func (s *Session) Deliver(ctx context.Context, e model.Event) error {
	return s.inbox.Deliver(ctx, e)
}

// Cancel ends the session without an expiry notice. Events still queued are
// abandoned.
func (s *Session) Cancel() {
	_ = s.inbox.Close()
}

// Abort ends a session whose Run was never started, for instance because
// joining its target failed. It neither leaves the target nor runs the end
// hook, but waiters are released.
func (s *Session) Abort() {
	_ = s.inbox.Close()
	s.finish(ReasonCancelled)
}

// finish records reason and releases waiters once.
func (s *Session) finish(reason Reason) {
	s.endOnce.Do(func() {
		s.mu.Lock()
		if s.reason == "" {
			s.reason = reason
		}
		s.mu.Unlock()
		close(s.finished)
	})
}

// Done is closed once the session has fully torn down.
func (s *Session) Done() <-chan struct{} { return s.finished }

// Wait blocks until the session has torn down or ctx ends.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for session %s: %w", s.id, ctx.Err())
	}
}

// Reason reports why the session ended, or "" while it is running.
func (s *Session) Reason() Reason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Snapshot returns the session's current counters.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	cats := make(map[model.Category]int, len(s.categories))
	for k, v := range s.categories {
		cats[k] = v
	}
	return Snapshot{
		ID:          s.id,
		CharacterID: s.character,
		Name:        s.name,
		Target:      s.target,
		Voicepack:   s.voicepack,
		StartedAt:   s.startedAt,
		LastEventAt: s.lastEventAt,
		Events:      s.events,
		Streak:      s.streakCount,
		Pending:     s.inbox.Len(),
		Categories:  cats,
	}
}
