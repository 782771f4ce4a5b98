package client

import (
	"bytes"
	"context"
	"io"
	"math/rand/v2"
	nethttp "net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/admitio/portalclient/logger"
	"github.com/admitio/portalclient/metrics"
	"github.com/admitio/portalclient/navigation"
	"github.com/admitio/portalclient/storage"
	"github.com/admitio/portalclient/token"
	"github.com/admitio/portalclient/trace"
)

// client implements the Client interface
type client struct {
	httpClient *nethttp.Client
	logger     logger.Logger

	// mu guards the runtime-reconfigurable settings.
	mu      sync.RWMutex
	origin  string
	timeout time.Duration
	policy  RetryPolicy

	paths    Paths
	identity Identity
	timezone string

	tokens  TokenResolver
	renewer token.Renewer
	store   storage.Store
	nav     navigation.Navigator

	ledger  *metrics.Ledger
	csrf    *csrfManager
	limiter *rate.Limiter
	logout  *logoutGuard

	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor

	// injectable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	rng   func() float64
}

// NewClient creates a client with default configuration: in-memory storage,
// the standard three-slot token chain, and the default retry policy.
func NewClient(log logger.Logger) Client {
	return NewBuilder(log).Build()
}

// Builder provides a fluent interface for configuring the portal client
type Builder struct {
	origin    string
	timeout   time.Duration
	policy    RetryPolicy
	paths     Paths
	identity  Identity
	timezone  string
	tokens    TokenResolver
	renewer   token.Renewer
	store     storage.Store
	nav       navigation.Navigator
	transport nethttp.RoundTripper
	limiter   *rate.Limiter
	logger    logger.Logger

	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
}

// NewBuilder creates a new client builder with defaults.
func NewBuilder(log logger.Logger) *Builder {
	return &Builder{
		origin:   "http://localhost:8080",
		timeout:  DefaultTimeout,
		policy:   DefaultRetryPolicy(),
		paths:    DefaultPaths(),
		identity: Identity{Type: "web-portal", Version: "1.0.0"},
		timezone: time.Now().Location().String(),
		logger:   log,
	}
}

// WithBaseURL sets the initial origin requests resolve against.
func (b *Builder) WithBaseURL(origin string) *Builder {
	b.origin = origin
	return b
}

// WithTimeout sets the per-attempt request timeout.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.timeout = timeout
	return b
}

// WithRetryPolicy sets the retry policy.
func (b *Builder) WithRetryPolicy(policy RetryPolicy) *Builder {
	b.policy = policy
	return b
}

// WithPaths sets the fixed endpoint and navigation paths.
func (b *Builder) WithPaths(paths Paths) *Builder {
	b.paths = paths
	return b
}

// WithIdentity sets the client-identity header values.
func (b *Builder) WithIdentity(identity Identity) *Builder {
	b.identity = identity
	return b
}

// WithTimezone sets the X-Timezone header value.
func (b *Builder) WithTimezone(tz string) *Builder {
	b.timezone = tz
	return b
}

// WithTokenResolver sets the credential resolver.
func (b *Builder) WithTokenResolver(resolver TokenResolver) *Builder {
	b.tokens = resolver
	return b
}

// WithTokenRenewer sets the identity-provider refresh collaborator.
func (b *Builder) WithTokenRenewer(renewer token.Renewer) *Builder {
	b.renewer = renewer
	return b
}

// WithStore sets the session storage collaborator.
func (b *Builder) WithStore(store storage.Store) *Builder {
	b.store = store
	return b
}

// WithNavigator sets the host navigation collaborator.
func (b *Builder) WithNavigator(nav navigation.Navigator) *Builder {
	b.nav = nav
	return b
}

// WithTransport sets the underlying round tripper. Tests use this to stub
// the network.
func (b *Builder) WithTransport(rt nethttp.RoundTripper) *Builder {
	b.transport = rt
	return b
}

// WithRateLimit throttles outgoing dispatches to rps requests per second
// with the given burst.
func (b *Builder) WithRateLimit(rps float64, burst int) *Builder {
	b.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return b
}

// WithRequestInterceptor adds a request interceptor.
func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.requestInterceptors = append(b.requestInterceptors, interceptor)
	return b
}

// WithResponseInterceptor adds a response interceptor.
func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.responseInterceptors = append(b.responseInterceptors, interceptor)
	return b
}

// Build creates the client with the configured options.
func (b *Builder) Build() Client {
	store := b.store
	if store == nil {
		store = storage.NewMemoryStore()
	}
	tokens := b.tokens
	if tokens == nil {
		tokens = token.NewDefaultResolver(store)
	}
	nav := b.nav
	if nav == nil {
		nav = navigation.NewRecorder("/")
	}
	httpClient := &nethttp.Client{Transport: b.transport}

	c := &client{
		httpClient:           httpClient,
		logger:               b.logger,
		origin:               strings.TrimRight(b.origin, "/"),
		timeout:              b.timeout,
		policy:               b.policy,
		paths:                b.paths,
		identity:             b.identity,
		timezone:             b.timezone,
		tokens:               tokens,
		renewer:              b.renewer,
		store:                store,
		nav:                  nav,
		ledger:               metrics.NewLedger(),
		limiter:              b.limiter,
		logout:               &logoutGuard{},
		requestInterceptors:  b.requestInterceptors,
		responseInterceptors: b.responseInterceptors,
		now:                  time.Now,
		sleep:                sleepContext,
		rng:                  rand.Float64,
	}
	c.csrf = newCSRFManager(httpClient, c.resolveURL, b.paths.CSRF, b.logger)
	return c
}

// Get performs a GET request
func (c *client) Get(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodGet, req)
}

// Post performs a POST request
func (c *client) Post(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPost, req)
}

// Put performs a PUT request
func (c *client) Put(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPut, req)
}

// Patch performs a PATCH request
func (c *client) Patch(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodPatch, req)
}

// Delete performs a DELETE request
func (c *client) Delete(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodDelete, req)
}

// HealthCheck reports whether the liveness endpoint answers with success.
func (c *client) HealthCheck(ctx context.Context) bool {
	resp, err := c.Get(ctx, &Request{Path: c.paths.Health})
	return err == nil && resp != nil && IsSuccessStatus(resp.StatusCode)
}

// Do performs an HTTP request with the specified method. One logical call may
// span several physical attempts; the correlation id is minted once and
// reused across the whole retry chain.
func (c *client) Do(ctx context.Context, method string, req *Request) (*Response, error) {
	if err := c.validateRequest(req); err != nil {
		return nil, err
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, NewConnectionError("request cancelled while rate limited", "")
		}
	}

	corrID := trace.EnsureCorrelationID(ctx)
	policy := c.retryPolicy()
	timeout := c.requestTimeout(req)

	for attempt := 1; ; attempt++ {
		req.attempt = attempt - 1
		c.ledger.RecordStart(corrID, req.attempt)
		c.logRequest(method, req, corrID)

		resp, err := c.doAttempt(ctx, method, req, corrID, timeout)
		if err != nil {
			// Transport failures carry no retryable status and terminate
			// the call.
			c.ledger.Remove(corrID)
			return nil, err
		}

		if IsSuccessStatus(resp.StatusCode) {
			if entry, ok := c.ledger.RecordEnd(corrID); ok {
				resp.Stats = Stats{ElapsedTime: entry.Duration, Attempts: entry.Attempts + 1}
			}
			c.logResponse(resp)
			return resp, nil
		}

		if policy.Retryable(resp.StatusCode) && attempt < policy.MaxAttempts {
			delay := backoffDelay(policy, attempt, c.rng)
			c.logRetry(method, req, corrID, resp.StatusCode, attempt, delay)
			if err := c.sleep(ctx, delay); err != nil {
				c.ledger.Remove(corrID)
				return nil, NewConnectionError("request cancelled while waiting to retry", corrID)
			}
			continue
		}

		c.ledger.Remove(corrID)
		c.logResponse(resp)

		switch resp.StatusCode {
		case nethttp.StatusUnauthorized:
			c.handleUnauthorized(ctx, resp)
		case nethttp.StatusForbidden:
			c.handleForbidden()
		}
		return nil, errorFromResponse(resp)
	}
}

// doAttempt performs one physical attempt under its own timeout.
func (c *client) doAttempt(ctx context.Context, method string, req *Request, corrID string, timeout time.Duration) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := c.buildRequest(attemptCtx, method, req, corrID)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewConnectionError("", corrID)
	}
	defer httpResp.Body.Close()

	if err := c.runResponseInterceptors(attemptCtx, httpReq, httpResp); err != nil {
		return nil, NewConnectionError("response interceptor failed", corrID)
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, NewConnectionError("failed to read response body", corrID)
	}

	return &Response{
		StatusCode:    httpResp.StatusCode,
		Body:          respBody,
		Headers:       httpResp.Header,
		CorrelationID: corrID,
	}, nil
}

// buildRequest produces the fully decorated *http.Request for one attempt.
// The origin is resolved here, at dispatch time, so reconfiguration between
// two calls changes the second call's target.
func (c *client) buildRequest(ctx context.Context, method string, req *Request, corrID string) (*nethttp.Request, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := nethttp.NewRequestWithContext(ctx, method, c.resolveURL(req.Path), body)
	if err != nil {
		return nil, NewValidationError("failed to create HTTP request: " + err.Error())
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if httpReq.Header.Get("Content-Type") == "" && req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpReq.Header.Set(HeaderCorrelationID, corrID)
	httpReq.Header.Set(HeaderRequestTime, c.now().Format(time.RFC3339))
	httpReq.Header.Set(HeaderTimezone, c.timezone)
	httpReq.Header.Set(HeaderClientType, c.identity.Type)
	httpReq.Header.Set(HeaderClientVersion, c.identity.Version)

	if httpReq.Header.Get(HeaderAuthorization) == "" {
		if tok, ok := c.tokens.Resolve(); ok {
			httpReq.Header.Set(HeaderAuthorization, "Bearer "+tok)
		}
	}

	// Anti-forgery token for mutating methods, except the token-issue call
	// itself (which would recurse).
	if isMutating(method) && !c.isCSRFPath(req.Path) {
		if tok, err := c.csrf.Token(ctx); err != nil {
			c.logger.Warn().
				Str("correlation_id", corrID).
				Err(err).
				Msg("could not obtain CSRF token, proceeding without it")
		} else {
			httpReq.Header.Set(HeaderCSRFToken, tok)
		}
	}

	if err := c.runRequestInterceptors(ctx, httpReq); err != nil {
		return nil, NewValidationError("request interceptor failed: " + err.Error())
	}
	return httpReq, nil
}

// backoffDelay computes the wait before the retry that follows the given
// 1-based failed attempt: BaseDelay x 2^(attempt-1), plus up to 10% jitter.
func backoffDelay(policy RetryPolicy, attempt int, rng func() float64) time.Duration {
	// Cap attempt to avoid overflow when computing the multiplier
	if attempt > 20 {
		attempt = 20
	}
	d := policy.BaseDelay * time.Duration(1<<(attempt-1))
	if policy.Jitter {
		d += time.Duration(rng() * 0.1 * float64(d))
	}
	return d
}

// validateRequest validates the request before sending
func (c *client) validateRequest(req *Request) error {
	if req == nil {
		return NewValidationError("request cannot be nil")
	}
	if req.Path == "" {
		return NewValidationError("request path cannot be empty")
	}
	return nil
}

// resolveURL prefixes relative paths with the origin read at call time.
// Absolute URLs pass through untouched.
func (c *client) resolveURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	c.mu.RLock()
	origin := c.origin
	c.mu.RUnlock()
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return origin + path
}

func (c *client) isCSRFPath(path string) bool {
	return path == c.paths.CSRF || strings.HasSuffix(path, c.paths.CSRF)
}

func (c *client) requestTimeout(req *Request) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timeout
}

func (c *client) retryPolicy() RetryPolicy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.policy
}

// SetRetryPolicy replaces the retry policy for subsequent calls.
func (c *client) SetRetryPolicy(policy RetryPolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultRetryPolicy().BaseDelay
	}
	if len(policy.RetryableStatuses) == 0 {
		policy.RetryableStatuses = DefaultRetryPolicy().RetryableStatuses
	}
	c.policy = policy
}

// SetTimeout replaces the per-attempt timeout for subsequent calls.
func (c *client) SetTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = d
}

// SetBaseURL replaces the origin for subsequent calls.
func (c *client) SetBaseURL(origin string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.origin = strings.TrimRight(origin, "/")
}

// Metrics returns a point-in-time copy of the in-flight call ledger.
func (c *client) Metrics() metrics.Snapshot {
	return c.ledger.Snapshot()
}

// ClearMetrics empties the ledger.
func (c *client) ClearMetrics() {
	c.ledger.Clear()
}

// runRequestInterceptors executes all request interceptors
func (c *client) runRequestInterceptors(ctx context.Context, req *nethttp.Request) error {
	for _, interceptor := range c.requestInterceptors {
		if err := interceptor(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// runResponseInterceptors executes all response interceptors
func (c *client) runResponseInterceptors(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error {
	for _, interceptor := range c.responseInterceptors {
		if err := interceptor(ctx, req, resp); err != nil {
			return err
		}
	}
	return nil
}

func isMutating(method string) bool {
	switch method {
	case nethttp.MethodPost, nethttp.MethodPut, nethttp.MethodPatch, nethttp.MethodDelete:
		return true
	}
	return false
}

// sleepContext waits d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// logRequest logs the outgoing request
func (c *client) logRequest(method string, req *Request, corrID string) {
	logEvent := c.logger.Info().
		Str("direction", "outbound").
		Str("method", method).
		Str("path", req.Path).
		Str("correlation_id", corrID)

	if req.attempt > 0 {
		logEvent = logEvent.Int("retry_attempt", req.attempt)
	}
	if len(req.Headers) > 0 {
		logEvent = logEvent.Interface("headers", req.Headers)
	}

	logEvent.Msg("portal client request")
}

// logResponse logs the completed call
func (c *client) logResponse(resp *Response) {
	c.logger.Info().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Str("correlation_id", resp.CorrelationID).
		Dur("elapsed", resp.Stats.ElapsedTime).
		Int("attempts", resp.Stats.Attempts).
		Msg("portal client response")
}

func (c *client) logRetry(method string, req *Request, corrID string, status, attempt int, delay time.Duration) {
	c.logger.Warn().
		Str("method", method).
		Str("path", req.Path).
		Str("correlation_id", corrID).
		Int("status", status).
		Int("attempt", attempt).
		Dur("backoff", delay).
		Msg("retrying request")
}
