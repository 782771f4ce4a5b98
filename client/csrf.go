package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/admitio/portalclient/logger"
)

// csrfTokenTTL bounds how long a fetched anti-forgery token is reused before
// a fresh one is requested.
const csrfTokenTTL = 15 * time.Minute

// csrfManager fetches and caches the server-issued anti-forgery token.
// Concurrent fetches collapse into one round trip.
type csrfManager struct {
	httpClient *nethttp.Client
	resolveURL func(path string) string
	path       string
	logger     logger.Logger

	group singleflight.Group

	mu        sync.Mutex
	token     string
	fetchedAt time.Time
	now       func() time.Time
}

func newCSRFManager(httpClient *nethttp.Client, resolveURL func(string) string, path string, log logger.Logger) *csrfManager {
	return &csrfManager{
		httpClient: httpClient,
		resolveURL: resolveURL,
		path:       path,
		logger:     log,
		now:        time.Now,
	}
}

// Token returns a valid anti-forgery token, fetching one when the cache is
// cold or stale.
func (m *csrfManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.token != "" && m.now().Sub(m.fetchedAt) < csrfTokenTTL {
		tok := m.token
		m.mu.Unlock()
		return tok, nil
	}
	m.mu.Unlock()

	v, err, _ := m.group.Do("csrf", func() (any, error) {
		return m.fetch(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token so the next mutating call fetches a
// fresh one.
func (m *csrfManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
}

// fetch performs the token-issue round trip. The request is deliberately
// undecorated: the issue endpoint must not itself require a CSRF header.
func (m *csrfManager) fetch(ctx context.Context) (string, error) {
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, m.resolveURL(m.path), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build CSRF token request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("CSRF token fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if !IsSuccessStatus(resp.StatusCode) {
		return "", fmt.Errorf("CSRF token endpoint answered with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read CSRF token response: %w", err)
	}

	var payload struct {
		CSRFToken string `json:"csrfToken"`
		Token     string `json:"token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("malformed CSRF token response: %w", err)
	}
	tok := payload.CSRFToken
	if tok == "" {
		tok = payload.Token
	}
	if tok == "" {
		return "", errors.New("CSRF token endpoint returned an empty token")
	}

	m.mu.Lock()
	m.token = tok
	m.fetchedAt = m.now()
	m.mu.Unlock()
	return tok, nil
}
