package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/blurber/internal/adapters/census"
	"github.com/okian/blurber/internal/adapters/feed"
	"github.com/okian/blurber/internal/adapters/http/api"
	"github.com/okian/blurber/internal/adapters/http/swagger"
	"github.com/okian/blurber/internal/adapters/mq/worker"
	"github.com/okian/blurber/internal/adapters/notify"
	"github.com/okian/blurber/internal/adapters/playback"
	"github.com/okian/blurber/internal/adapters/repository"
	app "github.com/okian/blurber/internal/app"
	"github.com/okian/blurber/internal/config"
	"github.com/okian/blurber/internal/domain/dedupe"
	"github.com/okian/blurber/internal/domain/weapons"
	"github.com/okian/blurber/pkg/logger"
	"github.com/okian/blurber/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	systemMetricsInterval     = 10 * time.Second
	startupLookupTimeout      = 15 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	os.Exit(run())
}

// run returns the process exit code. A lost event feed exits non-zero so
// the supervisor restarts the process.
func run() int {
	if err := config.LoadDotenv(); err != nil {
		os.Stderr.WriteString("failed to load .env: " + err.Error() + "\n")
		return 1
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 1
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, release := buildService(ctx, cfg)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return 1
	}

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc, cfg),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	waitErr := make(chan error, 1)
	go func() { waitErr <- svc.Wait() }()

	code := 0
	select {
	case <-ctx.Done():
		log.Info(ctx, "shutting down...")
	case err := <-serveErr:
		log.Error(ctx, "HTTP server failed", logger.Error(err))
		code = 1
	case err := <-waitErr:
		if err != nil {
			log.Error(ctx, "event feed lost", logger.Error(err))
			code = 1
		}
	}
	stop()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "service shutdown failed", logger.Error(err))
	}
	if err := release(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "adapter shutdown failed", logger.Error(err))
	}

	log.Info(shutdownCtx, "stopped", logger.Int("exit_code", code))
	return code
}

// buildService wires the adapters named by cfg into a service. The returned
// func flushes pending notices and releases the player.
func buildService(ctx context.Context, cfg *config.Config) (*app.Service, func(context.Context) error) {
	log := logger.Get()

	directory := census.New(cfg.CensusURL,
		census.WithServiceID(cfg.ServiceID),
		census.WithRateLimit(cfg.CensusRateLimit),
		census.WithCache(cfg.ResolveCacheSize, cfg.ResolveCacheTTL),
	)

	weaponSet := weapons.NewSet()
	if cfg.WeaponsFile != "" {
		if err := weaponSet.LoadFile(cfg.WeaponsFile); err != nil {
			log.Warn(ctx, "failed to load weapons file", logger.String("path", cfg.WeaponsFile), logger.Error(err))
		}
	}
	if weaponSet.Len() == 0 && cfg.WeaponsRefreshInterval > 0 {
		lctx, cancel := context.WithTimeout(ctx, startupLookupTimeout)
		if err := weaponSet.Refresh(lctx, directory); err != nil {
			log.Warn(ctx, "initial weapon lookup failed; unlock_weapon is disabled until the next refresh", logger.Error(err))
		}
		cancel()
	}

	library := playback.NewLibrary(cfg.VoicepackDir, cfg.DefaultVoicepack, time.Now().UnixNano())
	var player app.Player
	closePlayer := func(context.Context) error { return nil }
	if cfg.Headless() {
		player = playback.NewLogSink(library, nil)
	} else {
		sink := playback.NewExecSink(library, playback.WithCommand(cfg.PlayerCommand...))
		player = sink
		closePlayer = sink.Close
	}

	notifiers := notify.Multi{notify.NewLogNotifier(nil)}
	var pool *worker.Pool
	if cfg.NotifyWebhookURL != "" {
		pool = worker.NewPool(notify.NewWebhookNotifier(cfg.NotifyWebhookURL), worker.WithWorkers(cfg.NotifyWorkers))
		pool.Start(context.WithoutCancel(ctx))
		notifiers = append(notifiers, pool)
	}

	stream := feed.New(cfg.ESSURL,
		feed.WithServiceID(cfg.ServiceID),
		feed.WithSubscribeAll(cfg.SubscribeAll),
	)

	svc := app.New(
		app.WithLogger(log.Named("service")),
		app.WithFeed(stream),
		app.WithResolver(directory),
		app.WithPlayer(player),
		app.WithNotifier(notifiers),
		app.WithStore(repository.NewMemoryStore(repository.WithMaxLimit(cfg.MaxLeaderboardLimit))),
		app.WithDeduper(dedupe.NewLRUDeduper(dedupe.WithMaxSize(cfg.DedupeSize))),
		app.WithWeapons(weaponSet, directory, cfg.WeaponsRefreshInterval),
		app.WithIdleTimeout(cfg.IdleTimeout),
		app.WithLogoutWait(cfg.LogoutPlaybackTimeout),
		app.WithInboxSize(cfg.InboxSize),
		app.WithSendTimeout(cfg.DispatchSendTimeout),
		app.WithDefaultVoicepack(cfg.DefaultVoicepack),
	)
	release := func(ctx context.Context) error {
		var errs []error
		if pool != nil {
			errs = append(errs, pool.Shutdown(ctx))
		}
		errs = append(errs, closePlayer(ctx))
		return errors.Join(errs...)
	}
	return svc, release
}

// newMux registers the docs and command API routes.
func newMux(ctx context.Context, svc *app.Service, cfg *config.Config) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, cfg.MaxLeaderboardLimit).Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
