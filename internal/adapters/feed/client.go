// Package feed consumes the game's realtime event streaming service over a
// websocket and exposes the decoded events as an ordered channel.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/blurber/internal/domain/model"
	"github.com/okian/blurber/pkg/logger"
	"github.com/okian/blurber/pkg/metrics"
)

// Default client configuration constants.
const (
	DefaultURL          = "wss://push.planetside2.com/streaming?environment=ps2"
	defaultPingInterval = 30 * time.Second
	defaultBufferSize   = 1024
	writeTimeout        = 10 * time.Second
)

// Client is a single streaming connection. Run it once; when it returns the
// Events channel is closed and Err reports the cause.
type Client struct {
	rawURL       string
	serviceID    string
	subscribeAll bool
	eventNames   []string
	pingInterval time.Duration
	bufferSize   int
	dialer       *websocket.Dialer
	logger       logger.Logger

	events chan model.Event

	mu         sync.Mutex
	conn       *websocket.Conn
	characters map[model.EntityID]struct{}
	offline    map[string]struct{}
	running    bool
	err        error

	writeMu sync.Mutex
}

// New creates a client for the streaming endpoint at rawURL.
func New(rawURL string, opts ...Option) *Client {
	c := &Client{
		rawURL:       rawURL,
		eventNames:   DefaultEventNames,
		pingInterval: defaultPingInterval,
		bufferSize:   defaultBufferSize,
		dialer:       websocket.DefaultDialer,
		logger:       logger.Get().Named("feed"),
		characters:   make(map[model.EntityID]struct{}),
		offline:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.events = make(chan model.Event, c.bufferSize)
	return c
}

// Events returns the decoded event stream.
func (c *Client) Events() <-chan model.Event { return c.events }

// Err reports why the stream ended. It is only meaningful after Events has
// been closed.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Endpoint returns the URL dialled, including the service id.
func (c *Client) Endpoint() (string, error) {
	u, err := url.Parse(c.rawURL)
	if err != nil {
		return "", fmt.Errorf("parse feed url: %w", err)
	}
	if c.serviceID != "" {
		q := u.Query()
		q.Set("service-id", "s:"+c.serviceID)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Run connects, subscribes and pumps events until ctx ends or the
// connection fails. A cancelled context is a clean end.
func (c *Client) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.running = true
	c.mu.Unlock()

	err := c.run(ctx)
	if ctx.Err() != nil {
		err = nil
	}

	c.mu.Lock()
	c.err = err
	c.conn = nil
	c.mu.Unlock()
	close(c.events)
	return err
}

func (c *Client) run(ctx context.Context) error {
	endpoint, err := c.Endpoint()
	if err != nil {
		return err
	}
	conn, resp, err := c.dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial feed: %w", err)
	}
	defer conn.Close()

	c.mu.Lock()
	c.conn = conn
	initial := c.sortedCharacters()
	c.mu.Unlock()
	c.logger.Info(ctx, "feed connected", logger.Int("characters", len(initial)), logger.Bool("subscribe_all", c.subscribeAll))

	if c.subscribeAll {
		err = c.write(ctx, c.subscribeCommand([]string{all}))
	} else if len(initial) > 0 {
		err = c.write(ctx, c.subscribeCommand(initial))
	}
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.keepalive(ctx, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read feed: %w", err)
		}
		if err := c.handle(ctx, data); err != nil {
			return err
		}
	}
}

// keepalive pings the server and closes the connection once ctx ends so
// the blocked reader returns.
func (c *Client) keepalive(ctx context.Context, conn *websocket.Conn) {
	t := time.NewTicker(c.pingInterval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeTimeout)); err != nil {
				c.logger.Warn(ctx, "failed to ping feed", logger.Error(err))
			}
		case <-ctx.Done():
			_ = conn.Close()
			return
		}
	}
}

func (c *Client) handle(ctx context.Context, data []byte) error {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		metrics.RecordFeedFrame("invalid")
		c.logger.Warn(ctx, "undecodable frame", logger.Error(err))
		return nil
	}

	switch {
	case f.Type == TypeServiceMessage && f.Payload != nil:
		metrics.RecordFeedFrame(TypeServiceMessage)
		e, err := f.Payload.Decode()
		if err != nil {
			metrics.RecordErrorByComponent("feed", "malformed_payload")
			c.logger.Warn(ctx, "dropping malformed event", logger.Error(err))
			return nil
		}
		select {
		case c.events <- e:
		case <-ctx.Done():
			return ctx.Err()
		}
	case f.Type == TypeHeartbeat:
		metrics.RecordFeedFrame(TypeHeartbeat)
	case f.Type == TypeConnectionState:
		metrics.RecordFeedFrame(TypeConnectionState)
		c.logger.Debug(ctx, "connection state changed", logger.String("connected", f.Connected))
	case f.Type == TypeServiceState:
		metrics.RecordFeedFrame(TypeServiceState)
		c.setEndpoint(ctx, f.Detail, f.EndpointOnline())
	case len(f.Subscription) > 0:
		metrics.RecordFeedFrame("subscription")
		c.logger.Debug(ctx, "subscription acknowledged", logger.String("subscription", string(f.Subscription)))
	default:
		metrics.RecordFeedFrame("other")
	}
	return nil
}

// setEndpoint records an upstream world server going up or down. Events for
// characters on an offline endpoint stop until it returns.
func (c *Client) setEndpoint(ctx context.Context, detail string, online bool) {
	c.mu.Lock()
	_, wasOffline := c.offline[detail]
	if online {
		delete(c.offline, detail)
	} else {
		c.offline[detail] = struct{}{}
	}
	c.mu.Unlock()

	switch {
	case !online && !wasOffline:
		c.logger.Warn(ctx, "upstream endpoint offline", logger.String("endpoint", detail))
	case online && wasOffline:
		c.logger.Info(ctx, "upstream endpoint back online", logger.String("endpoint", detail))
	}
}

// OfflineEndpoints lists the upstream endpoints last reported offline.
func (c *Client) OfflineEndpoints() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.offline))
	for d := range c.offline {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Subscribe adds characters to the subscription. Ids are remembered and
// sent on connect when the client is not yet connected.
func (c *Client) Subscribe(ctx context.Context, ids ...model.EntityID) error {
	c.mu.Lock()
	for _, id := range ids {
		c.characters[id] = struct{}{}
	}
	n := len(c.characters)
	connected := c.conn != nil
	c.mu.Unlock()
	metrics.UpdateSubscribedCharacters(n)

	if !connected || c.subscribeAll || len(ids) == 0 {
		return nil
	}
	return c.write(ctx, c.subscribeCommand(idStrings(ids)))
}

// Unsubscribe removes characters from the subscription.
func (c *Client) Unsubscribe(ctx context.Context, ids ...model.EntityID) error {
	c.mu.Lock()
	for _, id := range ids {
		delete(c.characters, id)
	}
	n := len(c.characters)
	connected := c.conn != nil
	c.mu.Unlock()
	metrics.UpdateSubscribedCharacters(n)

	if !connected || c.subscribeAll || len(ids) == 0 {
		return nil
	}
	return c.write(ctx, Command{
		Service:    ServiceEvent,
		Action:     ActionClearSubscribe,
		Characters: idStrings(ids),
	})
}

func (c *Client) subscribeCommand(characters []string) Command {
	return Command{
		Service:                        ServiceEvent,
		Action:                         ActionSubscribe,
		Characters:                     characters,
		EventNames:                     c.eventNames,
		Worlds:                         []string{all},
		LogicalAndCharactersWithWorlds: true,
	}
}

func (c *Client) write(ctx context.Context, cmd Command) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("send %s: %w", cmd.Action, err)
	}
	return nil
}

// sortedCharacters must be called with c.mu held.
func (c *Client) sortedCharacters() []string {
	ids := make([]model.EntityID, 0, len(c.characters))
	for id := range c.characters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return idStrings(ids)
}

func idStrings(ids []model.EntityID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
