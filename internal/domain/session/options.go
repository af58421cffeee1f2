package session

import (
	"time"

	"github.com/okian/blurber/internal/domain/classify"
	"github.com/okian/blurber/pkg/logger"
)

// Option applies a configuration option to the Session.
type Option func(*Session)

// WithIdleTimeout sets how long the session waits for an event before it
// expires.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.idleTimeout = d
		}
	}
}

// WithLogoutWait bounds how long teardown waits for the logout cue.
func WithLogoutWait(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.logoutWait = d
		}
	}
}

// WithClassifier sets the classifier.
func WithClassifier(c *classify.Classifier) Option {
	return func(s *Session) {
		if c != nil {
			s.classifier = c
		}
	}
}

// WithPlayer sets the playback sink.
func WithPlayer(p Player) Option {
	return func(s *Session) {
		if p != nil {
			s.player = p
		}
	}
}

// WithNotifier sets where expiry and logout notices go.
func WithNotifier(n Notifier) Option {
	return func(s *Session) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithOnEnd registers a hook run once, after the session has left its
// target. The app uses it to unregister the session.
func WithOnEnd(fn func(*Session, Reason)) Option {
	return func(s *Session) {
		s.onEnd = fn
	}
}

// WithName sets the character display name used in notices.
func WithName(name string) Option {
	return func(s *Session) {
		if name != "" {
			s.name = name
		}
	}
}

// WithVoicepack selects the voicepack played for this session.
func WithVoicepack(pack string) Option {
	return func(s *Session) {
		s.voicepack = pack
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}
