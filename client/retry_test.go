package client

import (
	"context"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubResponse(status int, body string) *nethttp.Response {
	return &nethttp.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(nethttp.Header),
	}
}

func TestAlwaysFailingTransportStopsAtMaxAttempts(t *testing.T) {
	var attempts int32
	rt := roundTripperFunc(func(*nethttp.Request) (*nethttp.Response, error) {
		atomic.AddInt32(&attempts, 1)
		return stubResponse(503, `{"message":"overloaded"}`), nil
	})

	c := NewBuilder(newTestLogger()).
		WithBaseURL("http://portal.test").
		WithRetryPolicy(fastPolicy()).
		WithTransport(rt).
		Build()

	_, err := c.Get(context.Background(), &Request{Path: "/x"})
	require.Error(t, err)

	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))

	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, 503, e.Status)
	assert.Equal(t, "overloaded", e.Message)
	assert.Empty(t, c.Metrics())
}

func TestRetrySucceedsOnLaterAttempt(t *testing.T) {
	var attempts int32
	rt := roundTripperFunc(func(*nethttp.Request) (*nethttp.Response, error) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return stubResponse(502, ""), nil
		}
		return stubResponse(200, `{"ok":true}`), nil
	})

	c := NewBuilder(newTestLogger()).
		WithBaseURL("http://portal.test").
		WithRetryPolicy(fastPolicy()).
		WithTransport(rt).
		Build()

	resp, err := c.Get(context.Background(), &Request{Path: "/x"})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 3, resp.Stats.Attempts)
	assert.Empty(t, c.Metrics())
}

func TestNonRetryableStatusFailsImmediately(t *testing.T) {
	var attempts int32
	rt := roundTripperFunc(func(*nethttp.Request) (*nethttp.Response, error) {
		atomic.AddInt32(&attempts, 1)
		return stubResponse(400, `{"message":"bad request"}`), nil
	})

	c := NewBuilder(newTestLogger()).
		WithBaseURL("http://portal.test").
		WithRetryPolicy(fastPolicy()).
		WithTransport(rt).
		Build()

	_, err := c.Get(context.Background(), &Request{Path: "/x"})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
	assert.True(t, IsStatus(err, 400))
}

func TestTimeoutStatusesAreRetryable(t *testing.T) {
	for _, status := range []int{408, 429} {
		var attempts int32
		rt := roundTripperFunc(func(*nethttp.Request) (*nethttp.Response, error) {
			if atomic.AddInt32(&attempts, 1) == 1 {
				return stubResponse(status, ""), nil
			}
			return stubResponse(200, `{}`), nil
		})

		c := NewBuilder(newTestLogger()).
			WithBaseURL("http://portal.test").
			WithRetryPolicy(fastPolicy()).
			WithTransport(rt).
			Build()

		resp, err := c.Get(context.Background(), &Request{Path: "/x"})
		require.NoError(t, err, "status %d", status)
		assert.Equal(t, 2, resp.Stats.Attempts)
	}
}

func TestBackoffGrowthWithoutJitter(t *testing.T) {
	policy := RetryPolicy{BaseDelay: time.Second, Jitter: false}
	rng := func() float64 { return 1 }

	assert.Equal(t, 1000*time.Millisecond, backoffDelay(policy, 1, rng))
	assert.Equal(t, 2000*time.Millisecond, backoffDelay(policy, 2, rng))
	assert.Equal(t, 4000*time.Millisecond, backoffDelay(policy, 3, rng))
}

func TestBackoffJitterAddsAtMostTenPercent(t *testing.T) {
	policy := RetryPolicy{BaseDelay: time.Second, Jitter: true}

	assert.Equal(t, time.Second, backoffDelay(policy, 1, func() float64 { return 0 }))
	assert.Equal(t, 1100*time.Millisecond, backoffDelay(policy, 1, func() float64 { return 1 }))

	got := backoffDelay(policy, 2, func() float64 { return 0.5 })
	assert.Equal(t, 2100*time.Millisecond, got)
}

func TestBackoffCapsAttemptExponent(t *testing.T) {
	policy := RetryPolicy{BaseDelay: time.Millisecond, Jitter: false}
	rng := func() float64 { return 0 }

	assert.Equal(t, backoffDelay(policy, 20, rng), backoffDelay(policy, 50, rng))
}

func TestRetryWaitsAreObserved(t *testing.T) {
	rt := roundTripperFunc(func(*nethttp.Request) (*nethttp.Response, error) {
		return stubResponse(500, ""), nil
	})

	c := NewBuilder(newTestLogger()).
		WithBaseURL("http://portal.test").
		WithRetryPolicy(RetryPolicy{
			MaxAttempts:       3,
			BaseDelay:         time.Second,
			Jitter:            false,
			RetryableStatuses: []int{500},
		}).
		WithTransport(rt).
		Build().(*client)

	var delays []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	_, err := c.Get(context.Background(), &Request{Path: "/x"})
	require.Error(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestRetryCancelledDuringBackoff(t *testing.T) {
	rt := roundTripperFunc(func(*nethttp.Request) (*nethttp.Response, error) {
		return stubResponse(500, ""), nil
	})

	c := NewBuilder(newTestLogger()).
		WithBaseURL("http://portal.test").
		WithRetryPolicy(fastPolicy()).
		WithTransport(rt).
		Build().(*client)

	c.sleep = func(ctx context.Context, _ time.Duration) error {
		return context.Canceled
	}

	_, err := c.Get(context.Background(), &Request{Path: "/x"})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ConnectionError))
	assert.Empty(t, c.Metrics())
}

func TestRetryChainKeepsCorrelationID(t *testing.T) {
	var mu sync.Mutex
	var ids []string
	var attempts int32
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		mu.Lock()
		ids = append(ids, r.Header.Get(HeaderCorrelationID))
		mu.Unlock()
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(503)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := NewBuilder(newTestLogger()).
		WithBaseURL(server.URL).
		WithRetryPolicy(fastPolicy()).
		Build()

	resp, err := c.Get(context.Background(), &Request{Path: "/x"})
	require.NoError(t, err)

	require.Len(t, ids, 3)
	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, ids[0], ids[2])
	assert.Equal(t, ids[0], resp.CorrelationID)
}

func TestUnauthorizedIsNeverRetried(t *testing.T) {
	var attempts int32
	rt := roundTripperFunc(func(*nethttp.Request) (*nethttp.Response, error) {
		atomic.AddInt32(&attempts, 1)
		return stubResponse(401, `{"message":"expired"}`), nil
	})

	c := NewBuilder(newTestLogger()).
		WithBaseURL("http://portal.test").
		WithRetryPolicy(fastPolicy()).
		WithTransport(rt).
		Build()

	_, err := c.Get(context.Background(), &Request{Path: "/x"})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
	assert.True(t, IsStatus(err, 401))
}
