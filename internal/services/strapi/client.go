package strapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"strapisync/internal/logger"
)

const (
	// rateLimitSafetyMargin is added to a server-supplied reset timestamp.
	rateLimitSafetyMargin = time.Second

	DefaultMaxRetries = 100
)

type Options struct {
	BaseURL    string
	HTTPClient *http.Client

	HealthCacheTTL     time.Duration
	HealthPollInterval time.Duration
	TokenReuseWindow   time.Duration

	// RequestTimeout bounds a single attempt unless the request sets its
	// own Timeout.
	RequestTimeout time.Duration

	// MaxRetries bounds retries of rate-limited (429) answers. Zero means
	// DefaultMaxRetries; a negative value disables retries.
	MaxRetries int
	// BaseDelay and MaxDelay shape the fallback backoff when the remote
	// sends no timing headers.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	Admin  Identity
	Cipher Cipher
	Logger *logger.Logger
}

// Client is the per-process coordinator: it owns the health state, the
// credential cache and the rate-limit backoff, and executes requests.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	timeout    time.Duration
	now        func() time.Time
	logger     *logger.Logger

	Health      *HealthMonitor
	Credentials *CredentialCache
	Auth        *AuthClient

	backoffMu sync.RWMutex
	backoff   time.Duration
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:1337"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	maxRetries := opts.MaxRetries
	switch {
	case maxRetries == 0:
		maxRetries = DefaultMaxRetries
	case maxRetries < 0:
		maxRetries = 0
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		timeout:    timeout,
		now:        time.Now,
		logger:     log,
	}
	healthClient := &http.Client{Transport: httpClient.Transport, Timeout: timeout}
	c.Health = NewHealthMonitor(baseURL, healthClient, opts.HealthCacheTTL, opts.HealthPollInterval, log)
	c.Credentials = NewCredentialCache(opts.TokenReuseWindow, c.Backoff, opts.Cipher)
	c.Auth = newAuthClient(c, opts)
	return c
}

// BaseURL returns the remote's base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Backoff is the delay derived from the most recent rate-limit answer.
func (c *Client) Backoff() time.Duration {
	c.backoffMu.RLock()
	defer c.backoffMu.RUnlock()
	return c.backoff
}

func (c *Client) setBackoff(d time.Duration) {
	c.backoffMu.Lock()
	c.backoff = d
	c.backoffMu.Unlock()
}

// Request describes one call. ResourceType and ID only feed error context.
type Request struct {
	Method       string
	Path         string
	Token        string
	Query        *Query
	Body         interface{}
	ResourceType string
	ID           string
	// Timeout overrides the client's per-attempt timeout.
	Timeout time.Duration
}

// Send performs an entry CRUD call: /api/<resourceType>[/<id>]. The id is
// ignored for POST.
func (c *Client) Send(ctx context.Context, method, resourceType, token, id string, body interface{}) (*Response, error) {
	path := "/api/" + resourceType
	if method != http.MethodPost && id != "" {
		path += "/" + url.PathEscape(id)
	}
	return c.Do(ctx, Request{
		Method:       method,
		Path:         path,
		Token:        token,
		Body:         body,
		ResourceType: resourceType,
		ID:           id,
	})
}

// Find lists entries of resourceType matching q.
func (c *Client) Find(ctx context.Context, resourceType, token string, q *Query) (*Response, error) {
	return c.Do(ctx, Request{
		Method:       http.MethodGet,
		Path:         "/api/" + resourceType,
		Token:        token,
		Query:        q,
		ResourceType: resourceType,
	})
}

// SendAdmin calls the admin API: /admin/<resourceType>[/<action>][/<id>][?q].
func (c *Client) SendAdmin(ctx context.Context, method, resourceType, action, id, token string, q *Query, body interface{}) (*Response, error) {
	path := "/admin/" + resourceType
	if action != "" {
		path += "/" + action
	}
	if id != "" {
		path += "/" + url.PathEscape(id)
	}
	return c.Do(ctx, Request{
		Method:       method,
		Path:         path,
		Token:        token,
		Query:        q,
		Body:         body,
		ResourceType: resourceType,
		ID:           id,
	})
}

// Do waits for the remote to be healthy, then issues the request, retrying
// 429 answers up to MaxRetries times.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	if err := c.Health.WaitForHealth(ctx); err != nil {
		return nil, &RequestError{Method: r.Method, ResourceType: r.ResourceType, ID: r.ID, Err: errors.Join(ErrUnhealthy, err)}
	}

	var bodyBytes []byte
	if r.Body != nil {
		var err error
		bodyBytes, err = json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s body: %w", r.ResourceType, err)
		}
	}

	endpoint := c.baseURL + r.Path
	if qs := r.Query.Encode(); qs != "" {
		endpoint += "?" + qs
	}
	correlationID := uuid.NewString()
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	// lastRateLimit is what the caller sees once retries run out.
	var lastRateLimit *RequestError
	attempt := 0
	operation := func() (*Response, error) {
		attempt++
		resp, err := c.send(ctx, r, endpoint, bodyBytes, correlationID, timeout)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode <= 299:
			return resp, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			lastRateLimit = &RequestError{
				Method:       r.Method,
				ResourceType: r.ResourceType,
				ID:           r.ID,
				StatusCode:   resp.StatusCode,
				Message:      errorMessage(resp.Body),
			}
			if delay, ok := c.retryAfter(resp.Header); ok {
				return nil, &backoff.RetryAfterError{Duration: delay}
			}
			return nil, lastRateLimit
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, backoff.Permanent(&AuthExpiredError{Method: r.Method, ResourceType: r.ResourceType, ID: r.ID, StatusCode: resp.StatusCode})
		default:
			return nil, backoff.Permanent(&RequestError{
				Method:       r.Method,
				ResourceType: r.ResourceType,
				ID:           r.ID,
				StatusCode:   resp.StatusCode,
				Message:      errorMessage(resp.Body),
			})
		}
	}

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.newRetryBackoff()),
		backoff.WithMaxTries(uint(c.maxRetries)+1),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(_ error, next time.Duration) {
			c.setBackoff(next)
			c.logger.Warn("strapi rate limited on %s %s, retry %d in %s", r.Method, r.Path, attempt, next)
		}),
	)
	if err == nil {
		return resp, nil
	}
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}

	var retryAfter *backoff.RetryAfterError
	if errors.As(err, &retryAfter) && lastRateLimit != nil {
		return nil, lastRateLimit
	}
	var reqErr *RequestError
	var expired *AuthExpiredError
	if errors.As(err, &reqErr) || errors.As(err, &expired) {
		return nil, err
	}
	// Cancelled while waiting out a rate limit.
	status := 0
	if lastRateLimit != nil {
		status = lastRateLimit.StatusCode
	}
	return nil, &RequestError{Method: r.Method, ResourceType: r.ResourceType, ID: r.ID, StatusCode: status, Err: err}
}

// send performs a single attempt bounded by timeout and buffers the body.
func (c *Client) send(ctx context.Context, r Request, endpoint string, body []byte, correlationID string, timeout time.Duration) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, endpoint, bodyReader)
	if err != nil {
		return nil, &RequestError{Method: r.Method, ResourceType: r.ResourceType, ID: r.ID, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", correlationID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RequestError{Method: r.Method, ResourceType: r.ResourceType, ID: r.ID, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Method: r.Method, ResourceType: r.ResourceType, ID: r.ID, StatusCode: resp.StatusCode, Err: err}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: payload}, nil
}

// newRetryBackoff is the fallback policy for 429 answers without timing
// headers: BaseDelay doubling up to MaxDelay.
func (c *Client) newRetryBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.baseDelay
	bo.MaxInterval = c.maxDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	return bo
}

// retryAfter reads the remote's wait hint: x-retry-after (seconds), then
// Retry-After, then the time left until x-ratelimit-reset (unix seconds) plus
// a safety margin.
func (c *Client) retryAfter(h http.Header) (time.Duration, bool) {
	for _, name := range []string{"X-Retry-After", "Retry-After"} {
		if d, ok := parseSeconds(h.Get(name)); ok {
			return d, true
		}
	}
	if raw := strings.TrimSpace(h.Get("X-Ratelimit-Reset")); raw != "" {
		if reset, err := strconv.ParseInt(raw, 10, 64); err == nil {
			d := time.Unix(reset, 0).Sub(c.now()) + rateLimitSafetyMargin
			if d < rateLimitSafetyMargin {
				d = rateLimitSafetyMargin
			}
			return d, true
		}
	}
	return 0, false
}

func parseSeconds(raw string) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

func errorMessage(payload []byte) string {
	var env errorEnvelope
	if json.Unmarshal(payload, &env) == nil {
		if env.Error != nil && env.Error.Message != "" {
			return env.Error.Message
		}
		if env.Message != "" {
			return env.Message
		}
	}
	return strings.TrimSpace(string(payload))
}
