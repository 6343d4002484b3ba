package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/nerrad567/gray-logic-driver/internal/authority"
	"github.com/nerrad567/gray-logic-driver/internal/infrastructure/config"
)

// Default settings applied when the configuration leaves them zero.
const (
	defaultTimeout           = 10 * time.Second
	defaultMaxFailures       = 5
	defaultBreakerTimeout    = 30 * time.Second
	halfOpenMaxRequests      = 1
	maxResponseBody          = 16 << 20
	tokenTTL                 = 5 * time.Minute
	tokenRefreshBeforeExpiry = time.Minute
)

// Logger defines the logging interface used by the Client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Client talks to the authority's HTTP API.
//
// Every request waits on a client-side rate limiter and runs through a
// circuit breaker. Only transport failures and 5xx answers count against
// the breaker: a 404 for an absent driver is an ordinary answer.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	tokens  *tokenSource
	logger  Logger
}

// New creates a client for the authority at cfg.URL.
//
// Parameters:
//   - cfg: Authority connection, rate limit and breaker settings
//   - subject: Name carried in the bearer token, normally the driver's service name
//
// Returns:
//   - *Client: Ready to use; no connection is made until the first call
//   - error: If the URL is invalid
func New(cfg config.AuthorityConfig, subject string) (*Client, error) {
	base, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing authority url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("authority url %q: scheme must be http or https", cfg.URL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := max(cfg.RateBurst, 1)

	c := &Client{
		base:    base,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  noopLogger{},
	}
	if cfg.TokenSecret != "" {
		c.tokens = &tokenSource{secret: []byte(cfg.TokenSecret), subject: subject}
	}

	maxFailures := cfg.Breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultMaxFailures
	}
	breakerTimeout := cfg.Breaker.Timeout
	if breakerTimeout <= 0 {
		breakerTimeout = defaultBreakerTimeout
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "authority",
		MaxRequests: halfOpenMaxRequests,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("authority circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return c, nil
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// BreakerState returns "closed", "open" or "half-open".
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// Authority returns the repositories of every record kind, served over
// this client.
func (c *Client) Authority() *authority.Client {
	attrID := func(a *authority.Attribute) int64 { return a.ID }
	return &authority.Client{
		Drivers: &drivers{repo[authority.Driver]{c: c, path: "drivers",
			idOf: func(d *authority.Driver) int64 { return d.ID }}},
		DriverAttributes: &repo[authority.Attribute]{c: c, path: "driver-attributes", idOf: attrID},
		PointAttributes:  &repo[authority.Attribute]{c: c, path: "point-attributes", idOf: attrID},
		Profiles: &repo[authority.Profile]{c: c, path: "profiles",
			idOf: func(p *authority.Profile) int64 { return p.ID }},
		Devices: &repo[authority.Device]{c: c, path: "devices",
			idOf: func(d *authority.Device) int64 { return d.ID }},
		Points: &repo[authority.Point]{c: c, path: "points",
			idOf: func(p *authority.Point) int64 { return p.ID }},
		DriverInfos: &repo[authority.DriverInfo]{c: c, path: "driver-infos",
			idOf: func(i *authority.DriverInfo) int64 { return i.ID }},
		PointInfos: &repo[authority.PointInfo]{c: c, path: "point-infos",
			idOf: func(i *authority.PointInfo) int64 { return i.ID }},
	}
}

// countsAsSuccess keeps ordinary rejections (4xx envelopes) from tripping
// the breaker.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	var env *authority.EnvelopeError
	return errors.As(err, &env) && env.Status < http.StatusInternalServerError
}

// call performs one request and decodes the envelope's data into out.
//
// Parameters:
//   - method: HTTP method
//   - segments: Path below /api/v1, each segment already escaped
//   - query: Optional query parameters
//   - body: Optional request body, JSON encoded
//   - out: Destination for the envelope data; may be nil
func (c *Client) call(ctx context.Context, method string, segments []string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("authority rate limit: %w", err)
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, segments, query, body, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s %s", authority.ErrCircuitOpen, method, segments[0])
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method string, segments []string, query url.Values, body, out any) error {
	u := c.base.JoinPath(append([]string{"api", "v1"}, segments...)...)
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, err := c.tokens.token()
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", authority.ErrUnavailable, method, u.Path, err)
	}
	defer resp.Body.Close()

	var env authority.Envelope[json.RawMessage]
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&env); err != nil {
		return fmt.Errorf("%w: %s %s answered %d without an envelope", authority.ErrUnavailable, method, u.Path, resp.StatusCode)
	}
	if !env.OK {
		status := resp.StatusCode
		if status < http.StatusBadRequest {
			status = http.StatusInternalServerError
		}
		return &authority.EnvelopeError{Status: status, Message: env.Message}
	}

	c.logger.Debug("authority call", "method", method, "path", u.Path, "status", resp.StatusCode)

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: decoding %s %s data: %w", authority.ErrUnavailable, method, u.Path, err)
	}
	return nil
}
