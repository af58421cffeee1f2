package service

import (
	"time"

	"github.com/okian/blurber/internal/adapters/repository"
	"github.com/okian/blurber/internal/domain/dedupe"
	"github.com/okian/blurber/internal/domain/session"
	"github.com/okian/blurber/internal/domain/weapons"
	"github.com/okian/blurber/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithFeed sets the upstream event feed.
func WithFeed(f Feed) Option {
	return func(s *Service) {
		s.feed = f
	}
}

// WithResolver sets the character name directory.
func WithResolver(r Resolver) Option {
	return func(s *Service) {
		s.resolver = r
	}
}

// WithPlayer sets the playback sink shared by all sessions.
func WithPlayer(p Player) Option {
	return func(s *Service) {
		if p != nil {
			s.player = p
		}
	}
}

// WithNotifier sets where session notices go.
func WithNotifier(n session.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithStore sets the session history store.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithDeduper sets the event deduper used by the dispatcher.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithWeapons sets the weapon item set. When f is non-nil and interval is
// positive the set is refreshed from f while the service runs.
func WithWeapons(set *weapons.Set, f weapons.Fetcher, interval time.Duration) Option {
	return func(s *Service) {
		if set != nil {
			s.weapons = set
		}
		s.weaponFetcher = f
		s.weaponRefresh = interval
	}
}

// WithIdleTimeout sets how long sessions wait for events.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.idleTimeout = d
		}
	}
}

// WithLogoutWait bounds how long a session waits for its logout cue.
func WithLogoutWait(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.logoutWait = d
		}
	}
}

// WithInboxSize sets the per-session inbox capacity.
func WithInboxSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.inboxSize = n
		}
	}
}

// WithSendTimeout bounds how long dispatch waits on a full inbox.
func WithSendTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sendTimeout = d
		}
	}
}

// WithDefaultVoicepack sets the voicepack used when a request names none.
func WithDefaultVoicepack(name string) Option {
	return func(s *Service) {
		s.defaultVoicepack = name
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
