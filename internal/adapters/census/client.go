// Package census resolves character names and weapon ids through the game's
// public REST directory.
package census

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/okian/blurber/internal/domain/model"
	"github.com/okian/blurber/pkg/logger"
	"github.com/okian/blurber/pkg/metrics"
)

// Default client configuration constants.
const (
	DefaultBaseURL      = "https://census.daybreakgames.com"
	defaultServiceID    = "example"
	defaultNamespace    = "ps2:v2"
	defaultRate         = 5
	defaultCacheSize    = 1024
	defaultCacheTTL     = time.Hour
	defaultRetries      = 3
	defaultRetryWaitMin = time.Second
	defaultRetryWaitMax = 10 * time.Second
	defaultTimeout      = 20 * time.Second
	weaponItemTypeID    = 26
	weaponQueryLimit    = 10000
	minNameLength       = 3
)

// Client talks to the census REST API.
type Client struct {
	baseURL       string
	serviceID     string
	ratePerSecond float64
	cacheSize     int
	cacheTTL      time.Duration
	retries       int
	retryWaitMin  time.Duration
	retryWaitMax  time.Duration
	timeout       time.Duration
	logger        logger.Logger

	http    *http.Client
	limiter *rate.Limiter
	cache   *expirable.LRU[string, model.EntityID]
}

// New creates a census client against baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		serviceID:     defaultServiceID,
		ratePerSecond: defaultRate,
		cacheSize:     defaultCacheSize,
		cacheTTL:      defaultCacheTTL,
		retries:       defaultRetries,
		retryWaitMin:  defaultRetryWaitMin,
		retryWaitMax:  defaultRetryWaitMax,
		timeout:       defaultTimeout,
		logger:        logger.Get().Named("census"),
	}
	for _, opt := range opts {
		opt(c)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = c.retries
	rc.RetryWaitMin = c.retryWaitMin
	rc.RetryWaitMax = c.retryWaitMax
	rc.Logger = retryablehttp.LeveledLogger(logger.NewLeveled(c.logger))
	c.http = rc.StandardClient()
	c.http.Timeout = c.timeout

	if c.ratePerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(c.ratePerSecond), 1)
	}
	c.cache = expirable.NewLRU[string, model.EntityID](c.cacheSize, nil, c.cacheTTL)
	return c
}

type characterList struct {
	Characters []struct {
		CharacterID string `json:"character_id"`
	} `json:"character_list"`
	Returned int `json:"returned"`
}

type itemList struct {
	Items []struct {
		ItemID string `json:"item_id"`
	} `json:"item_list"`
	Returned int `json:"returned"`
}

// ResolveCharacter returns the id of the character named name. Names are
// matched case-insensitively.
func (c *Client) ResolveCharacter(ctx context.Context, name string) (model.EntityID, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if len(key) < minNameLength {
		return 0, fmt.Errorf("%w: %q must have at least %d characters", ErrInvalidName, name, minNameLength)
	}
	if id, ok := c.cache.Get(key); ok {
		metrics.RecordCensusLookup("cache_hit")
		return id, nil
	}

	var out characterList
	query := "name.first_lower=" + url.QueryEscape(key) + "&c:show=character_id&c:limit=1"
	if err := c.get(ctx, "character", query, &out); err != nil {
		metrics.RecordCensusLookup("error")
		return 0, err
	}
	if len(out.Characters) == 0 {
		metrics.RecordCensusLookup("not_found")
		return 0, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	id, err := model.ParseEntityID(out.Characters[0].CharacterID)
	if err != nil {
		metrics.RecordCensusLookup("error")
		return 0, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	c.cache.Add(key, id)
	metrics.RecordCensusLookup("resolved")
	c.logger.Debug(ctx, "resolved character", logger.String("name", key), logger.String("character_id", id.String()))
	return id, nil
}

// FetchWeaponIDs lists the ids of every weapon item.
func (c *Client) FetchWeaponIDs(ctx context.Context) ([]uint64, error) {
	var out itemList
	query := fmt.Sprintf("item_type_id=%d&c:show=item_id&c:limit=%d", weaponItemTypeID, weaponQueryLimit)
	if err := c.get(ctx, "item", query, &out); err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(out.Items))
	for _, it := range out.Items {
		id, err := strconv.ParseUint(it.ItemID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Client) get(ctx context.Context, collection, query string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("census rate limit: %w", err)
		}
	}

	u := fmt.Sprintf("%s/s:%s/get/%s/%s/?%s", c.baseURL, c.serviceID, defaultNamespace, collection, query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build census request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s returned %d", ErrUpstream, collection, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrUpstream, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrUpstream, collection, err)
	}

	// The API reports some failures in a 200 body.
	var envelope struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != "" {
		return fmt.Errorf("%w: %s", ErrUpstream, envelope.Error)
	}
	return nil
}
