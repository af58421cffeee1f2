// Package testevents implements a fake event streaming server that replays
// scripted matches for a set of characters, so the announcer can be run
// end to end without the real service.
package testevents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/blurber/internal/adapters/feed"
	"github.com/okian/blurber/internal/domain/model"
	"github.com/okian/blurber/pkg/logger"
)

// Default server configuration constants.
const (
	defaultInterval   = time.Second
	defaultHeartbeat  = 30 * time.Second
	writeTimeout      = 5 * time.Second
	readHeaderTimeout = 5 * time.Second
	scriptSpan        = 300
)

// Server serves the streaming protocol over websocket.
type Server struct {
	cfg      Config
	upgrader websocket.Upgrader
	logger   logger.Logger

	mu    sync.Mutex
	stats Stats
}

// NewServer creates a server for cfg.
func NewServer(cfg Config) *Server {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = defaultHeartbeat
	}
	return &Server{
		cfg:    cfg,
		logger: logger.Get().Named("fake-ess"),
	}
}

// Stats returns what the server has sent so far across all connections.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// ListenAndServe serves on cfg.Addr until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "fake streaming server listening",
			logger.String("addr", s.cfg.Addr), logger.Int("characters", len(s.cfg.Characters)))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// ServeHTTP upgrades the request and streams until the client leaves.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), "upgrade failed", logger.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &session{
		server: s,
		conn:   conn,
		subs:   make(map[model.EntityID]struct{}),
	}
	s.logger.Info(ctx, "client connected", logger.String("remote", r.RemoteAddr), logger.String("service_id", r.URL.Query().Get("service-id")))

	if err := c.send(feed.Frame{Service: feed.ServicePush, Type: feed.TypeConnectionState, Connected: "true"}); err != nil {
		return
	}
	go func() {
		defer cancel()
		c.readCommands(ctx)
	}()
	c.stream(ctx)
}

func (s *Server) count(fn func(*Stats)) {
	s.mu.Lock()
	fn(&s.stats)
	s.mu.Unlock()
}

// session is one client connection.
type session struct {
	server *Server
	conn   *websocket.Conn

	writeMu sync.Mutex

	mu   sync.Mutex
	all  bool
	subs map[model.EntityID]struct{}
}

func (c *session) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	c.server.count(func(st *Stats) { st.Frames++ })
	return nil
}

// readCommands applies subscribe and clearSubscribe commands until the
// connection fails.
func (c *session) readCommands(ctx context.Context) {
	log := c.server.logger
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd feed.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			log.Warn(ctx, "undecodable command", logger.Error(err))
			continue
		}
		if cmd.Service != feed.ServiceEvent {
			continue
		}
		switch cmd.Action {
		case feed.ActionSubscribe:
			c.apply(cmd, true)
		case feed.ActionClearSubscribe:
			c.apply(cmd, false)
		case feed.ActionEcho:
		default:
			continue
		}
		if err := c.send(map[string]any{"subscription": c.subscription()}); err != nil {
			return
		}
	}
}

func (c *session) apply(cmd feed.Command, add bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cmd.All == "true" {
		c.all = add
		if !add {
			c.subs = make(map[model.EntityID]struct{})
		}
	}
	for _, raw := range cmd.Characters {
		if raw == "all" {
			c.all = add
			continue
		}
		id, err := model.ParseEntityID(raw)
		if err != nil {
			continue
		}
		if add {
			c.subs[id] = struct{}{}
		} else {
			delete(c.subs, id)
		}
	}
}

func (c *session) subscription() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]any{"characterCount": len(c.subs), "all": c.all}
}

func (c *session) wants(id model.EntityID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.all {
		return true
	}
	_, ok := c.subs[id]
	return ok
}

// stream plays each character's script round robin, one event per tick,
// skipping characters the client has not subscribed to.
func (c *session) stream(ctx context.Context) {
	cfg := c.server.cfg
	script := NewScript(cfg.Seed, cfg.WorldID)
	queues := make([][]model.Event, len(cfg.Characters))
	starts := make([]int64, len(cfg.Characters))
	for i, id := range cfg.Characters {
		starts[i] = time.Now().Unix()
		queues[i] = script.Events(id, starts[i])
	}

	tick := time.NewTicker(cfg.Interval)
	defer tick.Stop()
	beat := time.NewTicker(cfg.Heartbeat)
	defer beat.Stop()

	next := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-beat.C:
			if err := c.send(feed.Frame{Service: feed.ServiceEvent, Type: feed.TypeHeartbeat}); err != nil {
				return
			}
			c.server.count(func(st *Stats) { st.Heartbeats++ })
		case <-tick.C:
			for tries := 0; tries < len(queues); tries++ {
				i := next
				next = (next + 1) % len(queues)
				if !c.wants(cfg.Characters[i]) {
					continue
				}
				if len(queues[i]) == 0 {
					if !cfg.Loop {
						continue
					}
					starts[i] += scriptSpan
					queues[i] = script.Events(cfg.Characters[i], starts[i])
				}
				e := queues[i][0]
				queues[i] = queues[i][1:]
				p := feed.Encode(e)
				if err := c.send(feed.Frame{Service: feed.ServiceEvent, Type: feed.TypeServiceMessage, Payload: &p}); err != nil {
					return
				}
				c.server.count(func(st *Stats) { st.Events++ })
				break
			}
		}
	}
}
