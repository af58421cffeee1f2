// Package service composes the registry, dispatcher and sessions into the
// running announcer and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/blurber/internal/adapters/playback"
	"github.com/okian/blurber/internal/adapters/repository"
	"github.com/okian/blurber/internal/domain/classify"
	"github.com/okian/blurber/internal/domain/dedupe"
	"github.com/okian/blurber/internal/domain/dispatch"
	"github.com/okian/blurber/internal/domain/model"
	"github.com/okian/blurber/internal/domain/registry"
	"github.com/okian/blurber/internal/domain/session"
	"github.com/okian/blurber/internal/domain/weapons"
	"github.com/okian/blurber/pkg/logger"
	"github.com/okian/blurber/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultIdleTimeout = 5 * time.Minute
	defaultLogoutWait  = 30 * time.Second
	defaultInboxSize   = 1000
	defaultSendTimeout = 250 * time.Millisecond
	hookTimeout        = 10 * time.Second
)

// Feed is the upstream event source. Run pumps events until ctx ends or the
// connection fails.
type Feed interface {
	dispatch.Feed
	Run(ctx context.Context) error
	Subscribe(ctx context.Context, ids ...model.EntityID) error
	Unsubscribe(ctx context.Context, ids ...model.EntityID) error
}

// Resolver maps character names to ids.
type Resolver interface {
	ResolveCharacter(ctx context.Context, name string) (model.EntityID, error)
}

// Player is the playback sink shared by all sessions.
type Player interface {
	session.Player
	Join(ctx context.Context, target string) error
}

// Service owns the session registry and everything that feeds it.
type Service struct {
	mu sync.Mutex
	// subMu orders feed subscription changes against the registry so a
	// session ending never clears the subscription of its successor.
	subMu sync.Mutex

	// Core components
	registry      *registry.Registry
	dispatcher    *dispatch.Dispatcher
	deduper       dedupe.Deduper
	classifier    *classify.Classifier
	weapons       *weapons.Set
	weaponFetcher weapons.Fetcher
	weaponRefresh time.Duration
	feed          Feed
	resolver      Resolver
	player        Player
	notifier      session.Notifier
	store         repository.Store

	// Configuration
	idleTimeout      time.Duration
	logoutWait       time.Duration
	inboxSize        int
	sendTimeout      time.Duration
	defaultVoicepack string

	// State
	ctx       context.Context
	cancel    context.CancelFunc
	group     *errgroup.Group
	sessions  sync.WaitGroup
	started   bool
	stopped   bool
	startedAt time.Time

	logger logger.Logger
}

// New constructs a Service. Without WithFeed the service only runs sessions
// for events handed to Dispatch.
func New(opts ...Option) *Service {
	s := &Service{
		registry:    registry.New(),
		weapons:     weapons.NewSet(),
		store:       repository.NewMemoryStore(),
		idleTimeout: defaultIdleTimeout,
		logoutWait:  defaultLogoutWait,
		inboxSize:   defaultInboxSize,
		sendTimeout: defaultSendTimeout,
		logger:      logger.Get().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.deduper == nil {
		s.deduper = dedupe.NewLRUDeduper()
	}
	if s.player == nil {
		s.player = playback.NewLogSink(nil, s.logger.Named("playback"))
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	s.classifier = classify.New(classify.WithWeaponSet(s.weapons))
	s.dispatcher = dispatch.New(s.registry,
		dispatch.WithDeduper(s.deduper),
		dispatch.WithLogger(s.logger.Named("dispatch")),
	)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, model.Notice) error { return nil }

// Start launches the feed, the dispatcher and the weapon refresher. It
// returns immediately; Wait reports how they ended.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting announcer service...")

	g, gctx := errgroup.WithContext(ctx)
	if s.feed != nil {
		feed := s.feed
		g.Go(func() error {
			if err := feed.Run(gctx); err != nil {
				s.logger.Error(gctx, "feed stopped", logger.Error(err))
			}
			return nil
		})
		g.Go(func() error {
			err := s.dispatcher.Run(gctx, feed)
			if err == nil && gctx.Err() == nil {
				return fmt.Errorf("%w: %w", dispatch.ErrFeedDisconnected, io.EOF)
			}
			return err
		})
	}
	if s.weaponFetcher != nil && s.weaponRefresh > 0 {
		g.Go(func() error {
			s.weapons.Keep(gctx, s.weaponFetcher, s.weaponRefresh)
			return nil
		})
	}

	s.group = g
	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "announcer service started",
		logger.Bool("feed", s.feed != nil),
		logger.Int("inbox_size", s.inboxSize),
		logger.Duration("idle_timeout", s.idleTimeout),
	)
	return nil
}

// Wait blocks until the background work launched by Start ends. A cancelled
// start context is a clean end; a lost feed is reported as an error wrapping
// dispatch.ErrFeedDisconnected.
func (s *Service) Wait() error {
	s.mu.Lock()
	g := s.group
	s.mu.Unlock()
	if g == nil {
		return nil
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Stop cancels every live session and waits for them to tear down or for
// ctx to end. Track fails with ErrStopped afterwards.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping announcer service...", logger.Int("sessions", s.registry.Len()))
	s.cancel()
	s.registry.Range(func(_ model.EntityID, in registry.Inbox) bool {
		if sess, ok := in.(*session.Session); ok {
			sess.Cancel()
		}
		return true
	})

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info(ctx, "announcer service stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop service: %w", ctx.Err())
	}
}

// Dispatch routes one event to the live sessions, as the feed does.
func (s *Service) Dispatch(ctx context.Context, e model.Event) int {
	return s.dispatcher.Dispatch(ctx, e)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.Lock()
	started, stopped, startedAt := s.started, s.stopped, s.startedAt
	s.mu.Unlock()

	active := s.registry.Len()
	stats := map[string]interface{}{
		"started":        started && !stopped,
		"sessionsActive": active,
		"charactersSeen": s.store.Count(context.Background()),
		"dedupeSize":     s.deduper.Size(),
		"weaponIds":      s.weapons.Len(),
		"inboxSize":      s.inboxSize,
		"idleTimeout":    s.idleTimeout.String(),
	}
	if f, ok := s.feed.(interface{ OfflineEndpoints() []string }); ok {
		stats["feedEndpointsOffline"] = f.OfflineEndpoints()
	}
	if started {
		stats["uptimeSeconds"] = int64(time.Since(startedAt).Seconds())
	}
	metrics.UpdateSessionsActive(active)
	return stats
}
