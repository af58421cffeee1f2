package session

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/blurber/internal/domain/model"
	"github.com/okian/blurber/pkg/logger"
	"github.com/okian/blurber/pkg/metrics"
)

// Run drives the session until it ends and returns why. Run must be called
// exactly once. Cancelling ctx ends the session like Cancel does.
func (s *Session) Run(ctx context.Context) Reason {
	metrics.RecordSessionStarted()
	s.logger.Info(ctx, "session started", logger.Duration("idle_timeout", s.idleTimeout))

	idle := time.NewTimer(s.idleTimeout)
	defer idle.Stop()

	events := s.inbox.Events()
	for {
		select {
		case <-ctx.Done():
			return s.teardown(ctx, ReasonCancelled)

		case <-s.inbox.Done():
			return s.teardown(ctx, ReasonCancelled)

		case <-idle.C:
			s.notify(ctx, model.NoticeExpired, fmt.Sprintf(
				"No events from %s for %s, disconnecting now.", s.name, s.idleTimeout))
			return s.teardown(ctx, ReasonIdleTimeout)

		case e := <-events:
			idle.Reset(s.idleTimeout)
			cat, ok := s.classify(e)
			if !ok {
				continue
			}
			h, played := s.play(ctx, cat)
			if cat != model.CategoryLogout {
				continue
			}
			if !s.awaitCue(ctx, h, played) {
				return s.teardown(ctx, ReasonCancelled)
			}
			s.notify(ctx, model.NoticeLogout, fmt.Sprintf("Detected logout for %s, disconnecting now.", s.name))
			return s.teardown(ctx, ReasonLogout)
		}
	}
}

func (s *Session) classify(e model.Event) (model.Category, bool) {
	start := time.Now()
	cat, ok := s.classifier.Classify(e, s.character, &s.streak)
	metrics.RecordClassifyLatency(float64(time.Since(start).Microseconds()) / 1000)

	s.mu.Lock()
	s.events++
	s.lastEventAt = time.Now()
	s.streakCount = s.streak.Count
	if ok {
		s.categories[cat]++
	}
	s.mu.Unlock()

	if ok {
		metrics.RecordCategory(string(cat))
	}
	return cat, ok
}

func (s *Session) play(ctx context.Context, cat model.Category) (Handle, bool) {
	h, ok := s.player.Play(ctx, Cue{Category: cat, Target: s.target, Voicepack: s.voicepack})
	if !ok {
		metrics.RecordPlayback("missing")
		s.logger.Debug(ctx, "no audio for category", logger.String("category", string(cat)))
		return nil, false
	}
	metrics.RecordPlayback("started")
	s.logger.Debug(ctx, "playing cue", logger.String("category", string(cat)))
	return h, true
}

// awaitCue waits for the logout cue to finish. It returns false when the
// session was cancelled meanwhile.
func (s *Session) awaitCue(ctx context.Context, h Handle, played bool) bool {
	if !played || h == nil {
		return true
	}
	timer := time.NewTimer(s.logoutWait)
	defer timer.Stop()

	select {
	case <-h.Done():
		return true
	case <-timer.C:
		s.logger.Warn(ctx, "logout cue did not finish in time", logger.Duration("wait", s.logoutWait))
		return true
	case <-s.inbox.Done():
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *Session) notify(ctx context.Context, kind model.NoticeKind, text string) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	err := s.notifier.Notify(nctx, model.Notice{
		Kind:        kind,
		SessionID:   s.id,
		CharacterID: s.character,
		Name:        s.name,
		Target:      s.target,
		Text:        text,
	})
	if err != nil {
		metrics.RecordNotification(string(kind), "failed")
		metrics.RecordErrorByComponent("session", "notify_failed")
		s.logger.Error(ctx, "failed to send notice", logger.String("kind", string(kind)), logger.Error(err))
		return
	}
	metrics.RecordNotification(string(kind), "sent")
}

// teardown closes the inbox so senders stop, leaves the target and runs the
// end hook. It never blocks on the notifier.
func (s *Session) teardown(ctx context.Context, reason Reason) Reason {
	_ = s.inbox.Close()

	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), leaveTimeout)
	if err := s.player.Leave(lctx, s.target); err != nil {
		metrics.RecordErrorByComponent("session", "leave_failed")
		s.logger.Warn(ctx, "failed to leave target", logger.Error(err))
	}
	cancel()

	s.mu.Lock()
	s.reason = reason
	s.mu.Unlock()

	if s.onEnd != nil {
		s.onEnd(s, reason)
	}
	metrics.RecordSessionEnded(string(reason))
	s.logger.Info(ctx, "session ended", logger.String("reason", string(reason)))
	s.finish(reason)
	return reason
}
