package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/okian/blurber/internal/adapters/mq/queue"
	"github.com/okian/blurber/internal/adapters/repository"
	"github.com/okian/blurber/internal/domain/model"
	"github.com/okian/blurber/internal/domain/registry"
	"github.com/okian/blurber/internal/domain/session"
	"github.com/okian/blurber/pkg/logger"
	"github.com/okian/blurber/pkg/metrics"
)

// Track starts a session for the requested character. It fails with
// registry.ErrAlreadyTracked when one is already live, and with the
// resolver's not-found error for unknown names.
func (s *Service) Track(ctx context.Context, req model.TrackRequest) (session.Snapshot, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return session.Snapshot{}, err
	}

	id := req.CharacterID
	name := req.CharacterName
	if id == 0 {
		if s.resolver == nil {
			return session.Snapshot{}, fmt.Errorf("%w: name lookup is not configured", model.ErrInvalidRequest)
		}
		var err error
		if id, err = s.resolver.ResolveCharacter(ctx, name); err != nil {
			return session.Snapshot{}, fmt.Errorf("resolve %q: %w", name, err)
		}
	}
	if name == "" {
		name = id.String()
	}
	if s.registry.Contains(id) {
		return session.Snapshot{}, fmt.Errorf("track %s: %w", id, registry.ErrAlreadyTracked)
	}

	voicepack := req.Voicepack
	if voicepack == "" {
		voicepack = s.defaultVoicepack
	}
	inbox := queue.NewInbox(queue.WithCapacity(s.inboxSize), queue.WithSendTimeout(s.sendTimeout))
	sess := session.New(id, req.Target, inbox,
		session.WithName(name),
		session.WithVoicepack(voicepack),
		session.WithIdleTimeout(s.idleTimeout),
		session.WithLogoutWait(s.logoutWait),
		session.WithClassifier(s.classifier),
		session.WithPlayer(s.player),
		session.WithNotifier(s.notifier),
		session.WithOnEnd(s.sessionEnded),
		session.WithLogger(s.logger.Named("session")),
	)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return session.Snapshot{}, ErrStopped
	}
	if err := s.registry.Register(id, sess); err != nil {
		s.mu.Unlock()
		return session.Snapshot{}, fmt.Errorf("track %s: %w", id, err)
	}
	s.sessions.Add(1)
	s.mu.Unlock()

	if err := s.player.Join(ctx, req.Target); err != nil {
		s.registry.UnregisterIf(id, sess)
		sess.Abort()
		s.sessions.Done()
		metrics.RecordErrorByComponent("service", "join_failed")
		return session.Snapshot{}, fmt.Errorf("join %q: %w", req.Target, err)
	}
	if s.feed != nil {
		s.subMu.Lock()
		err := s.feed.Subscribe(ctx, id)
		s.subMu.Unlock()
		if err != nil {
			s.logger.Warn(ctx, "subscribe failed; events arrive after reconnect",
				logger.String("character_id", id.String()), logger.Error(err))
		}
	}

	go func() {
		defer s.sessions.Done()
		sess.Run(s.ctx)
	}()

	metrics.UpdateSessionsActive(s.registry.Len())
	s.notify(ctx, sess, model.NoticeTracking, fmt.Sprintf(
		"Successfully joined voice channel, listening to events from %s (ID %s)", name, id))
	return sess.Snapshot(), nil
}

// Untrack cancels the character's session and waits for its teardown.
func (s *Service) Untrack(ctx context.Context, id model.EntityID) error {
	in, ok := s.registry.Lookup(id)
	if !ok {
		return fmt.Errorf("untrack %s: %w", id, registry.ErrNotTracked)
	}
	sess, ok := in.(*session.Session)
	if !ok {
		return fmt.Errorf("untrack %s: %w", id, registry.ErrNotTracked)
	}
	sess.Cancel()
	return sess.Wait(ctx)
}

// Sessions lists the live sessions, oldest first.
func (s *Service) Sessions() []session.Snapshot {
	out := make([]session.Snapshot, 0, s.registry.Len())
	s.registry.Range(func(_ model.EntityID, in registry.Inbox) bool {
		if sess, ok := in.(*session.Session); ok {
			out = append(out, sess.Snapshot())
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Character returns what is known about a character. It returns
// repository.ErrNotFound when the character is neither live nor in history.
func (s *Service) Character(ctx context.Context, id model.EntityID) (repository.CharacterView, error) {
	view := repository.CharacterView{CharacterID: id}
	if in, ok := s.registry.Lookup(id); ok {
		if sess, ok := in.(*session.Session); ok {
			snap := sess.Snapshot()
			view.Live = &snap
		}
	}
	rec, err := s.store.Get(ctx, id)
	switch {
	case err == nil:
		view.History = &rec
	case !errors.Is(err, repository.ErrNotFound):
		return repository.CharacterView{}, fmt.Errorf("character %s: %w", id, err)
	}
	if view.Live == nil && view.History == nil {
		return repository.CharacterView{}, fmt.Errorf("character %s: %w", id, repository.ErrNotFound)
	}
	return view, nil
}

// TopN returns the top N characters by announced kills.
func (s *Service) TopN(ctx context.Context, n int) ([]repository.Entry, error) {
	entries, err := s.store.TopN(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return entries, nil
}

// sessionEnded runs on the session goroutine once the session has left its
// target.
func (s *Service) sessionEnded(sess *session.Session, reason session.Reason) {
	ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
	defer cancel()

	id := sess.Character()
	if err := s.store.RecordSession(ctx, sess.Snapshot(), reason, time.Now()); err != nil {
		s.logger.Warn(ctx, "failed to record session", logger.String("character_id", id.String()), logger.Error(err))
	}
	s.registry.UnregisterIf(id, sess)
	if s.feed != nil {
		s.subMu.Lock()
		if !s.registry.Contains(id) {
			if err := s.feed.Unsubscribe(ctx, id); err != nil {
				s.logger.Debug(ctx, "unsubscribe failed", logger.String("character_id", id.String()), logger.Error(err))
			}
		}
		s.subMu.Unlock()
	}
	metrics.UpdateSessionsActive(s.registry.Len())
}

func (s *Service) notify(ctx context.Context, sess *session.Session, kind model.NoticeKind, text string) {
	err := s.notifier.Notify(ctx, model.Notice{
		Kind:        kind,
		SessionID:   sess.ID(),
		CharacterID: sess.Character(),
		Name:        sess.Name(),
		Target:      sess.Target(),
		Text:        text,
	})
	if err != nil {
		metrics.RecordNotification(string(kind), "failed")
		s.logger.Warn(ctx, "failed to send notice", logger.String("kind", string(kind)), logger.Error(err))
		return
	}
	metrics.RecordNotification(string(kind), "sent")
}
