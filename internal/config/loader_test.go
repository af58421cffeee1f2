package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/blurber/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.IdleTimeout, convey.ShouldEqual, 5*time.Minute)
				convey.So(cfg.InboxSize, convey.ShouldEqual, 1000)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("BLURBER_ADDR", ":8080")
			_ = os.Setenv("BLURBER_IDLE_TIMEOUT", "90s")
			_ = os.Setenv("BLURBER_INBOX_SIZE", "50")
			_ = os.Setenv("BLURBER_SUBSCRIBE_ALL", "true")
			_ = os.Setenv("BLURBER_CENSUS_RATE_LIMIT", "2.5")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.IdleTimeout, convey.ShouldEqual, 90*time.Second)
				convey.So(cfg.InboxSize, convey.ShouldEqual, 50)
				convey.So(cfg.SubscribeAll, convey.ShouldBeTrue)
				convey.So(cfg.CensusRateLimit, convey.ShouldEqual, 2.5)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
idle_timeout: 2m
dedupe_size: 128
player_command: ["mpv", "--no-video"]
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("BLURBER_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.IdleTimeout, convey.ShouldEqual, 2*time.Minute)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 128)
				convey.So(cfg.PlayerCommand, convey.ShouldResemble, []string{"mpv", "--no-video"})
				convey.So(cfg.InboxSize, convey.ShouldEqual, 1000) // From defaults
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
inbox_size: 300
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("BLURBER_CONFIG", tmpFile)
			_ = os.Setenv("BLURBER_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")  // Overridden by env
				convey.So(cfg.InboxSize, convey.ShouldEqual, 300) // From file
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("BLURBER_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("BLURBER_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("BLURBER_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("BLURBER_INBOX_SIZE", "invalid")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestLoadDotenv(t *testing.T) {
	convey.Convey("Given a dotenv file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, ".env")
		convey.So(os.WriteFile(path, []byte("BLURBER_DEFAULT_VOICEPACK=announcer\nBLURBER_ADDR=:7000\n"), 0o600), convey.ShouldBeNil)
		_ = os.Setenv("BLURBER_ADDR", ":6000")
		defer clearConfigEnvVars()

		convey.Convey("When it is loaded before Load", func() {
			convey.So(config.LoadDotenv(path), convey.ShouldBeNil)
			cfg, err := config.Load(context.Background())

			convey.Convey("Then unset keys come from the file and set keys win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.DefaultVoicepack, convey.ShouldEqual, "announcer")
				convey.So(cfg.Addr, convey.ShouldEqual, ":6000")
			})
		})

		convey.Convey("When the file is missing", func() {
			convey.Convey("Then it is skipped", func() {
				convey.So(config.LoadDotenv(filepath.Join(dir, "missing.env")), convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"BLURBER_CONFIG",
		"BLURBER_ADDR",
		"BLURBER_IDLE_TIMEOUT",
		"BLURBER_INBOX_SIZE",
		"BLURBER_SUBSCRIBE_ALL",
		"BLURBER_CENSUS_RATE_LIMIT",
		"BLURBER_DEFAULT_VOICEPACK",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "blurber-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
