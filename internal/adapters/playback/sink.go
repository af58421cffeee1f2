// Package playback turns announcement cues into sound.
package playback

import (
	"context"
	"os/exec"
	"sync"

	"github.com/okian/blurber/internal/domain/session"
	"github.com/okian/blurber/pkg/logger"
	"github.com/okian/blurber/pkg/metrics"
)

// Default sink configuration constants.
const defaultQueueSize = 32

// DefaultCommand plays one file and exits when it is done.
var DefaultCommand = []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"}

// Sink is a player that also knows how to join a target.
type Sink interface {
	session.Player
	Join(ctx context.Context, target string) error
}

type handle struct{ done chan struct{} }

func (h *handle) Done() <-chan struct{} { return h.done }

func finished() *handle {
	h := &handle{done: make(chan struct{})}
	close(h.done)
	return h
}

// Option applies a configuration option to the ExecSink.
type Option func(*ExecSink)

// WithCommand sets the player command. The track path is appended as the
// last argument.
func WithCommand(argv ...string) Option {
	return func(s *ExecSink) {
		if len(argv) > 0 {
			s.command = argv
		}
	}
}

// WithQueueSize bounds the cues waiting per target.
func WithQueueSize(n int) Option {
	return func(s *ExecSink) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *ExecSink) {
		if l != nil {
			s.logger = l
		}
	}
}

type job struct {
	track string
	h     *handle
}

// target plays its cues one after another. refs counts the sessions that
// joined it.
type target struct {
	jobs   chan job
	cancel context.CancelFunc
	done   chan struct{}
	refs   int
}

// ExecSink plays tracks by running an external command, one queue per
// target so cues on one target never overlap. Sessions sharing a target each
// Join and Leave it; the queue stops when the last of them leaves.
type ExecSink struct {
	library   *Library
	command   []string
	queueSize int
	logger    logger.Logger

	mu      sync.Mutex
	targets map[string]*target
}

// NewExecSink creates a sink picking tracks from lib.
func NewExecSink(lib *Library, opts ...Option) *ExecSink {
	s := &ExecSink{
		library:   lib,
		command:   DefaultCommand,
		queueSize: defaultQueueSize,
		logger:    logger.Get().Named("playback"),
		targets:   make(map[string]*target),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Join starts the queue for name, or adds a reference to a running one.
// Every Join must be paired with a Leave.
func (s *ExecSink) Join(_ context.Context, name string) error {
	if len(s.command) == 0 {
		return ErrNoCommand
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.join(name).refs++
	return nil
}

// join must be called with s.mu held.
func (s *ExecSink) join(name string) *target {
	if t, ok := s.targets[name]; ok {
		return t
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &target{
		jobs:   make(chan job, s.queueSize),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.targets[name] = t
	go s.loop(ctx, name, t)
	return t
}

// Play queues a random track for the cue. It reports false when there is
// no track or the target's queue is full.
func (s *ExecSink) Play(ctx context.Context, cue session.Cue) (session.Handle, bool) {
	track, ok := s.library.Pick(cue.Voicepack, cue.Category)
	if !ok {
		return nil, false
	}

	s.mu.Lock()
	t := s.join(cue.Target)
	s.mu.Unlock()

	j := job{track: track, h: &handle{done: make(chan struct{})}}
	select {
	case t.jobs <- j:
		return j.h, true
	default:
		metrics.RecordPlayback("dropped")
		s.logger.Warn(ctx, "playback queue full", logger.String("target", cue.Target))
		return nil, false
	}
}

// Leave drops one reference to the target. When none remain the queue
// stops, interrupting the current track; pending cues complete without
// playing.
func (s *ExecSink) Leave(ctx context.Context, name string) error {
	s.mu.Lock()
	t, ok := s.targets[name]
	if ok && t.refs > 1 {
		t.refs--
		s.mu.Unlock()
		return nil
	}
	delete(s.targets, name)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return stop(ctx, t)
}

// Close stops every target regardless of references.
func (s *ExecSink) Close(ctx context.Context) error {
	s.mu.Lock()
	targets := make([]*target, 0, len(s.targets))
	for n, t := range s.targets {
		targets = append(targets, t)
		delete(s.targets, n)
	}
	s.mu.Unlock()

	for _, t := range targets {
		if err := stop(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func stop(ctx context.Context, t *target) error {
	t.cancel()
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ExecSink) loop(ctx context.Context, name string, t *target) {
	defer close(t.done)
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case j := <-t.jobs:
					close(j.h.done)
				default:
					return
				}
			}
		case j := <-t.jobs:
			s.play(ctx, name, j.track)
			close(j.h.done)
		}
	}
}

func (s *ExecSink) play(ctx context.Context, name, track string) {
	argv := append(append([]string{}, s.command[1:]...), track)
	cmd := exec.CommandContext(ctx, s.command[0], argv...) //nolint:gosec // command comes from configuration
	if err := cmd.Run(); err != nil && ctx.Err() == nil {
		metrics.RecordPlayback("failed")
		s.logger.Warn(ctx, "player command failed",
			logger.String("target", name),
			logger.String("track", track),
			logger.Error(err),
		)
		return
	}
	metrics.RecordPlayback("finished")
}

// LogSink logs cues instead of playing them. With a library it only
// reports cues that have a track.
type LogSink struct {
	library *Library
	logger  logger.Logger
}

// NewLogSink creates a headless sink. lib may be nil.
func NewLogSink(lib *Library, l logger.Logger) *LogSink {
	if l == nil {
		l = logger.Get().Named("playback")
	}
	return &LogSink{library: lib, logger: l}
}

// Join logs the join.
func (s *LogSink) Join(ctx context.Context, name string) error {
	s.logger.Info(ctx, "joined target", logger.String("target", name))
	return nil
}

// Play logs the cue and returns a completed handle.
func (s *LogSink) Play(ctx context.Context, cue session.Cue) (session.Handle, bool) {
	track := ""
	if s.library != nil {
		var ok bool
		if track, ok = s.library.Pick(cue.Voicepack, cue.Category); !ok {
			return nil, false
		}
	}
	s.logger.Info(ctx, "announce",
		logger.String("target", cue.Target),
		logger.String("category", string(cue.Category)),
		logger.String("track", track),
	)
	return finished(), true
}

// Leave logs the departure.
func (s *LogSink) Leave(ctx context.Context, name string) error {
	s.logger.Info(ctx, "left target", logger.String("target", name))
	return nil
}
