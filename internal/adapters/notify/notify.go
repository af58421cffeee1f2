// Package notify delivers plain-text session notices to users.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/okian/blurber/internal/domain/model"
	"github.com/okian/blurber/pkg/logger"
)

// Default webhook configuration constants.
const (
	defaultRetries = 2
	defaultTimeout = 10 * time.Second
)

// ErrRejected is returned when the webhook answers with a non-2xx status.
var ErrRejected = errors.New("webhook rejected notice")

// Notifier delivers notices.
type Notifier interface {
	Notify(ctx context.Context, n model.Notice) error
}

// LogNotifier writes notices to the log.
type LogNotifier struct {
	logger logger.Logger
}

// NewLogNotifier creates a notifier that logs. l may be nil.
func NewLogNotifier(l logger.Logger) *LogNotifier {
	if l == nil {
		l = logger.Get().Named("notify")
	}
	return &LogNotifier{logger: l}
}

// Notify logs n.
func (l *LogNotifier) Notify(ctx context.Context, n model.Notice) error {
	l.logger.Info(ctx, n.Text,
		logger.String("kind", string(n.Kind)),
		logger.String("session_id", n.SessionID),
		logger.String("character_id", n.CharacterID.String()),
		logger.String("target", n.Target),
	)
	return nil
}

// Option applies a configuration option to the WebhookNotifier.
type Option func(*WebhookNotifier)

// WithRetries sets how often a failed post is retried.
func WithRetries(n int) Option {
	return func(w *WebhookNotifier) {
		if n >= 0 {
			w.retries = n
		}
	}
}

// WithRetryWait sets the backoff bounds between retries.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(w *WebhookNotifier) {
		if minWait > 0 && maxWait >= minWait {
			w.retryWaitMin, w.retryWaitMax = minWait, maxWait
		}
	}
}

// WithTimeout bounds a post including retries.
func WithTimeout(d time.Duration) Option {
	return func(w *WebhookNotifier) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithLogger sets the logger that receives retry attempts.
func WithLogger(l logger.Logger) Option {
	return func(w *WebhookNotifier) {
		if l != nil {
			w.logger = l
		}
	}
}

// WebhookNotifier posts notices as JSON.
type WebhookNotifier struct {
	url          string
	retries      int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
	timeout      time.Duration
	logger       logger.Logger
	client       *retryablehttp.Client
}

// NewWebhookNotifier creates a notifier posting to url.
func NewWebhookNotifier(url string, opts ...Option) *WebhookNotifier {
	w := &WebhookNotifier{
		url:          url,
		retries:      defaultRetries,
		retryWaitMin: 500 * time.Millisecond,
		retryWaitMax: 5 * time.Second,
		timeout:      defaultTimeout,
		logger:       logger.Get().Named("notify"),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.client = retryablehttp.NewClient()
	w.client.RetryMax = w.retries
	w.client.RetryWaitMin = w.retryWaitMin
	w.client.RetryWaitMax = w.retryWaitMax
	w.client.HTTPClient.Timeout = w.timeout
	w.client.Logger = retryablehttp.LeveledLogger(logger.NewLeveled(w.logger))
	return w
}

// Notify posts n to the webhook.
func (w *WebhookNotifier) Notify(ctx context.Context, n model.Notice) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notice: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notice: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}
	return nil
}

// Multi fans a notice out to several notifiers and joins their errors.
type Multi []Notifier

// Notify calls every notifier.
func (m Multi) Notify(ctx context.Context, n model.Notice) error {
	var errs []error
	for _, nt := range m {
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
