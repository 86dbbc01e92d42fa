// Package remote is the HTTP client for the venue game server.
//
// Every request is a GET retried with exponential backoff on transport
// errors and on 429/500/502/503/504, honoring Retry-After. Other statuses,
// undecodable bodies and payloads failing validation are permanent.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/inference-sim/bouncer/sim/game"
)

// DefaultUserAgent identifies the client to the game server.
const DefaultUserAgent = "bouncer/1.0"

// Config holds connection and retry settings.
type Config struct {
	BaseURL        string
	UserAgent      string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	// Retries is the number of retries after the first attempt.
	Retries uint
	// BackoffFactor is the first retry delay; each further retry doubles it.
	BackoffFactor time.Duration
	MaxBackoff    time.Duration
	// RequestsPerSecond paces outgoing requests; 0 disables pacing.
	RequestsPerSecond float64
}

// DefaultConfig returns the standard settings for baseURL:
// 5s connect, 30s read, 5 retries starting at 0.5s.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		UserAgent:      DefaultUserAgent,
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    30 * time.Second,
		Retries:        5,
		BackoffFactor:  500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Body)
}

// Retryable reports whether the status is worth retrying.
func (e *StatusError) Retryable() bool {
	switch e.Code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Client talks to one game server. Safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a client from cfg.
func NewClient(cfg Config) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxIdleConnsPerHost:   4,
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Transport: transport},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Start creates a new game.
func (c *Client) Start(ctx context.Context, scenario int, playerID string) (*game.NewGameResponse, error) {
	params := url.Values{}
	params.Set("scenario", strconv.Itoa(scenario))
	params.Set("playerId", playerID)
	return get[game.NewGameResponse](ctx, c, "/new-game", params)
}

// DecideAndNext reports the decision on personIndex and fetches the next
// person. A nil accept fetches the first person without deciding.
func (c *Client) DecideAndNext(ctx context.Context, gameID string, personIndex int, accept *bool) (*game.DecideResponse, error) {
	params := url.Values{}
	params.Set("gameId", gameID)
	params.Set("personIndex", strconv.Itoa(personIndex))
	if accept != nil {
		params.Set("accept", strconv.FormatBool(*accept))
	}
	return get[game.DecideResponse](ctx, c, "/decide-and-next", params)
}

func get[T any](ctx context.Context, c *Client, path string, params url.Values) (*T, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path + "?" + params.Encode()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.BackoffFactor
	b.Multiplier = 2
	b.RandomizationFactor = 0
	if c.cfg.MaxBackoff > 0 {
		b.MaxInterval = c.cfg.MaxBackoff
	}

	attempt := 0
	op := func() (*T, error) {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		return fetch[T](ctx, c, endpoint)
	}
	out, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.cfg.Retries+1),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, d time.Duration) {
			logrus.Warnf("GET %s failed (attempt %d): %v; retrying in %v", path, attempt, err, d)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return out, nil
}

func fetch[T any](ctx context.Context, c *Client, endpoint string) (*T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{Code: resp.StatusCode, Body: truncate(string(body), 200)}
		if !se.Retryable() {
			return nil, backoff.Permanent(se)
		}
		if secs, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
			return nil, errors.Join(se, backoff.RetryAfter(secs))
		}
		return nil, se
	}

	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decoding response: %w", err))
	}
	if err := game.Validate(&out); err != nil {
		return nil, backoff.Permanent(err)
	}
	return &out, nil
}

// retryAfter parses a Retry-After header in delay-seconds or HTTP-date form.
func retryAfter(h string) (int, bool) {
	h = strings.TrimSpace(h)
	if h == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(h); err == nil {
		return max(0, secs), true
	}
	if t, err := http.ParseTime(h); err == nil {
		return max(0, int(time.Until(t).Seconds())), true
	}
	return 0, false
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// IsRetryable reports whether err is a retryable status error.
func IsRetryable(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Retryable()
}
