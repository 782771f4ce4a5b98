// Package client implements the shared HTTP client every portal service
// funnels through: header decoration, credential attachment, bounded retry
// with backoff, auth-failure handling, and per-call metrics.
package client

import (
	"context"
	nethttp "net/http"
	"time"

	"github.com/admitio/portalclient/metrics"
	"github.com/admitio/portalclient/trace"
)

// Standard headers attached to every outgoing request.
const (
	HeaderAuthorization = "Authorization"
	HeaderCorrelationID = trace.HeaderCorrelationID
	HeaderRequestTime   = "X-Request-Time"
	HeaderTimezone      = "X-Timezone"
	HeaderClientType    = "X-Client-Type"
	HeaderClientVersion = "X-Client-Version"
	HeaderCSRFToken     = "X-CSRF-Token"
)

// SlotReturnPath is the storage slot holding the location to return to after
// a forced login.
const SlotReturnPath = "redirect_after_login"

const (
	// DefaultTimeout is the default per-attempt request timeout
	DefaultTimeout = 30 * time.Second

	// DefaultUploadTimeout suits large document uploads
	DefaultUploadTimeout = 120 * time.Second
)

// Client is the request chokepoint the portal's feature services call.
type Client interface {
	Get(ctx context.Context, req *Request) (*Response, error)
	Post(ctx context.Context, req *Request) (*Response, error)
	Put(ctx context.Context, req *Request) (*Response, error)
	Patch(ctx context.Context, req *Request) (*Response, error)
	Delete(ctx context.Context, req *Request) (*Response, error)
	Do(ctx context.Context, method string, req *Request) (*Response, error)

	// HealthCheck reports whether the liveness endpoint answers with success.
	HealthCheck(ctx context.Context) bool

	// Runtime reconfiguration. Administrative, not per-request.
	SetRetryPolicy(policy RetryPolicy)
	SetTimeout(d time.Duration)
	SetBaseURL(origin string)

	// Metrics returns a point-in-time copy of the in-flight call ledger.
	Metrics() metrics.Snapshot
	// ClearMetrics empties the ledger.
	ClearMetrics()
}

// Request describes one outgoing call. A Request is owned by exactly one
// in-flight call and must not be shared.
type Request struct {
	// Path is relative to the resolved origin, or a fully qualified URL.
	Path    string
	Headers map[string]string
	Body    []byte
	// Timeout overrides the client's per-attempt timeout when positive.
	Timeout time.Duration

	// attempt counts retries; it belongs to the retry loop.
	attempt int
}

// Response is the result of a completed call.
type Response struct {
	StatusCode    int
	Body          []byte
	Headers       nethttp.Header
	CorrelationID string
	Stats         Stats
}

// Stats carries per-call execution statistics.
type Stats struct {
	ElapsedTime time.Duration
	Attempts    int
}

// RetryPolicy decides which failures are retried and how long to wait.
type RetryPolicy struct {
	// MaxAttempts bounds total attempts, the first dispatch included.
	MaxAttempts int
	// BaseDelay seeds the exponential backoff.
	BaseDelay time.Duration
	// Jitter adds up to 10% of the computed delay to spread retry storms.
	Jitter bool
	// RetryableStatuses lists the HTTP statuses eligible for retry.
	RetryableStatuses []int
}

// DefaultRetryPolicy returns the portal's standard retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		BaseDelay:         time.Second,
		Jitter:            true,
		RetryableStatuses: []int{408, 429, 500, 502, 503, 504},
	}
}

// Retryable reports whether status is eligible for retry under the policy.
func (p RetryPolicy) Retryable(status int) bool {
	for _, s := range p.RetryableStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Identity holds the fixed client-identity header values.
type Identity struct {
	Type    string
	Version string
}

// Paths names the fixed endpoints and navigation targets the client touches.
type Paths struct {
	Health       string
	CSRF         string
	Login        string
	Unauthorized string
}

// DefaultPaths returns the portal's standard paths.
func DefaultPaths() Paths {
	return Paths{
		Health:       "/health",
		CSRF:         "/api/csrf-token",
		Login:        "/login",
		Unauthorized: "/unauthorized",
	}
}

// TokenResolver produces the best available bearer token, if any.
type TokenResolver interface {
	Resolve() (string, bool)
}

// RequestInterceptor is called after the dispatcher decorates the request and
// before it is sent.
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor is called after a response is received, before the
// client inspects it.
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error

// IsSuccessStatus checks if a status code represents success (2xx).
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
