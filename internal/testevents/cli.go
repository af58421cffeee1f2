package testevents

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/okian/blurber/internal/domain/model"
	"github.com/okian/blurber/pkg/logger"
)

// NewApp builds the fake-ess command line.
func NewApp() *cli.App {
	return &cli.App{
		Name:  "fake-ess",
		Usage: "serve scripted match events over the streaming protocol",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Value:   ":9180",
				Usage:   "listen address",
				EnvVars: []string{"FAKE_ESS_ADDR"},
			},
			&cli.StringSliceFlag{
				Name:    "character",
				Aliases: []string{"c"},
				Usage:   "character id to script (repeatable)",
				EnvVars: []string{"FAKE_ESS_CHARACTERS"},
			},
			&cli.DurationFlag{
				Name:  "interval",
				Value: defaultInterval,
				Usage: "delay between events",
			},
			&cli.DurationFlag{
				Name:  "heartbeat",
				Value: defaultHeartbeat,
				Usage: "delay between heartbeat frames",
			},
			&cli.UintFlag{
				Name:  "world",
				Value: 1,
				Usage: "world id stamped on events",
			},
			&cli.Int64Flag{
				Name:  "seed",
				Value: 1,
				Usage: "seed for opponents and headshots",
			},
			&cli.BoolFlag{
				Name:  "loop",
				Usage: "replay the script after each logout",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "log level",
			},
		},
		Action: run,
	}
}

func run(cctx *cli.Context) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := logger.SetLevelString(cctx.String("log-level")); err != nil {
		return err
	}

	cfg, err := configFromFlags(cctx)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := NewServer(cfg)
	err = srv.ListenAndServe(ctx)
	st := srv.Stats()
	logger.Get().Info(ctx, "fake streaming server stopped",
		logger.Int("frames", st.Frames),
		logger.Int("events", st.Events),
		logger.Int("heartbeats", st.Heartbeats),
	)
	return err
}

func configFromFlags(cctx *cli.Context) (Config, error) {
	raw := cctx.StringSlice("character")
	if len(raw) == 0 {
		return Config{}, fmt.Errorf("at least one --character is required")
	}
	ids := make([]model.EntityID, 0, len(raw))
	for _, s := range raw {
		id, err := model.ParseEntityID(s)
		if err != nil {
			return Config{}, fmt.Errorf("--character: %w", err)
		}
		ids = append(ids, id)
	}
	return Config{
		Addr:       cctx.String("addr"),
		Characters: ids,
		Interval:   cctx.Duration("interval"),
		Heartbeat:  cctx.Duration("heartbeat"),
		WorldID:    uint32(cctx.Uint("world")),
		Seed:       cctx.Int64("seed"),
		Loop:       cctx.Bool("loop"),
	}, nil
}
