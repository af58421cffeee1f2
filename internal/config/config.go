// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// ServiceID is the game API service id used for streaming and census.
	ServiceID string `koanf:"service_id"`

	// ESSURL is the realtime event streaming endpoint.
	ESSURL string `koanf:"ess_url"`

	// CensusURL is the base URL of the census REST API.
	CensusURL string `koanf:"census_url"`

	// SubscribeAll subscribes to every character's events instead of only
	// tracked ones.
	SubscribeAll bool `koanf:"subscribe_all"`

	// IdleTimeout ends a session after this long without events.
	IdleTimeout time.Duration `koanf:"idle_timeout"`

	// InboxSize bounds the events pending per session.
	InboxSize int `koanf:"inbox_size"`

	// DispatchSendTimeout bounds how long dispatch waits on a full inbox.
	DispatchSendTimeout time.Duration `koanf:"dispatch_send_timeout"`

	// LogoutPlaybackTimeout bounds the wait for the logout cue.
	LogoutPlaybackTimeout time.Duration `koanf:"logout_playback_timeout"`

	// DedupeSize is the number of event fingerprints remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// VoicepackDir holds one directory per voicepack.
	VoicepackDir string `koanf:"voicepack_dir"`

	// DefaultVoicepack is used when a track request names none.
	DefaultVoicepack string `koanf:"default_voicepack"`

	// PlayerCommand plays one audio file; the path is appended. Empty logs
	// cues instead of playing them.
	PlayerCommand []string `koanf:"player_command"`

	// WeaponsFile lists weapon item ids, one per line.
	WeaponsFile string `koanf:"weapons_file"`

	// WeaponsRefreshInterval reloads weapon ids from census. Zero disables.
	WeaponsRefreshInterval time.Duration `koanf:"weapons_refresh_interval"`

	// CensusRateLimit caps census requests per second.
	CensusRateLimit float64 `koanf:"census_rate_limit"`

	// ResolveCacheSize and ResolveCacheTTL size the name lookup cache.
	ResolveCacheSize int           `koanf:"resolve_cache_size"`
	ResolveCacheTTL  time.Duration `koanf:"resolve_cache_ttl"`

	// NotifyWebhookURL receives session notices as JSON when set.
	NotifyWebhookURL string `koanf:"notify_webhook_url"`

	// NotifyWorkers is how many webhook posts run at once.
	NotifyWorkers int `koanf:"notify_workers"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":9080",
		ServiceID:              "example",
		ESSURL:                 "wss://push.planetside2.com/streaming?environment=ps2",
		CensusURL:              "https://census.daybreakgames.com",
		IdleTimeout:            5 * time.Minute,
		InboxSize:              1000,
		DispatchSendTimeout:    250 * time.Millisecond,
		LogoutPlaybackTimeout:  30 * time.Second,
		DedupeSize:             4096,
		VoicepackDir:           "voicepacks",
		DefaultVoicepack:       "default",
		PlayerCommand:          []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"},
		WeaponsRefreshInterval: 24 * time.Hour,
		CensusRateLimit:        5,
		ResolveCacheSize:       1024,
		ResolveCacheTTL:        time.Hour,
		NotifyWorkers:          4,
		MaxLeaderboardLimit:    100,
		ShutdownTimeout:        10 * time.Second,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.ESSURL == "":
		return fmt.Errorf("%w: ess_url must not be empty", ErrInvalidConfig)
	case c.CensusURL == "":
		return fmt.Errorf("%w: census_url must not be empty", ErrInvalidConfig)
	case c.IdleTimeout <= 0:
		return fmt.Errorf("%w: idle_timeout must be positive", ErrInvalidConfig)
	case c.InboxSize <= 0:
		return fmt.Errorf("%w: inbox_size must be positive", ErrInvalidConfig)
	case c.DispatchSendTimeout <= 0:
		return fmt.Errorf("%w: dispatch_send_timeout must be positive", ErrInvalidConfig)
	case c.LogoutPlaybackTimeout <= 0:
		return fmt.Errorf("%w: logout_playback_timeout must be positive", ErrInvalidConfig)
	case c.DedupeSize <= 0:
		return fmt.Errorf("%w: dedupe_size must be positive", ErrInvalidConfig)
	case c.NotifyWorkers <= 0:
		return fmt.Errorf("%w: notify_workers must be positive", ErrInvalidConfig)
	case c.MaxLeaderboardLimit <= 0:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	case c.WeaponsRefreshInterval < 0:
		return fmt.Errorf("%w: weapons_refresh_interval must not be negative", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json", ErrInvalidConfig)
	}
	return nil
}

// Headless reports whether cues are logged instead of played.
func (c *Config) Headless() bool { return len(c.PlayerCommand) == 0 }
