package client

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/admitio/portalclient/token"
)

// CodeSessionInvalidated is the server's error code signalling that another
// device or tab superseded this session.
const CodeSessionInvalidated = "SESSION_INVALIDATED"

const sessionInvalidatedMessage = "Your session was closed because your account signed in somewhere else."

// logoutGuard makes the forced-logout path single-fire across concurrent
// calls that each receive a session-invalidation response.
type logoutGuard struct {
	fired atomic.Bool
}

// trip reports true exactly once.
func (g *logoutGuard) trip() bool {
	return g.fired.CompareAndSwap(false, true)
}

func (g *logoutGuard) reset() {
	g.fired.Store(false)
}

// handleUnauthorized resolves a terminal 401. A session-invalidation marker
// forces logout with no renewal attempt; an ordinary expiry tries a silent
// renewal and falls back to the login redirect, remembering where the user
// was.
func (c *client) handleUnauthorized(ctx context.Context, resp *Response) {
	if isSessionInvalidated(resp.Body) {
		c.forceLogout(resp.CorrelationID)
		return
	}

	if c.renewer != nil {
		err := c.renewer.Renew(ctx)
		if err == nil {
			// The renewed token serves the next call; this one is not
			// replayed.
			c.logger.Info().
				Str("correlation_id", resp.CorrelationID).
				Msg("credentials renewed after expiry")
			return
		}
		c.logger.Warn().
			Str("correlation_id", resp.CorrelationID).
			Err(err).
			Msg("credential renewal failed")
	}

	c.store.Set(SlotReturnPath, c.nav.Current())
	c.nav.Navigate(c.paths.Login)
}

// forceLogout clears every credential slot and sends the user to login.
// Concurrent 401s trigger it at most once.
func (c *client) forceLogout(corrID string) {
	if !c.logout.trip() {
		return
	}
	for _, slot := range token.Slots() {
		c.store.Remove(slot)
	}
	c.logger.Warn().
		Str("correlation_id", corrID).
		Msg("session invalidated by the server, forcing logout")
	c.nav.Alert(sessionInvalidatedMessage)
	c.nav.Navigate(c.paths.Login)
}

// handleForbidden sends the user to the unauthorized view. Credentials stay:
// the user is authenticated, just not permitted.
func (c *client) handleForbidden() {
	if c.nav.Current() == c.paths.Unauthorized {
		return
	}
	c.nav.Navigate(c.paths.Unauthorized)
}

// isSessionInvalidated checks the response body for the invalidation marker.
func isSessionInvalidated(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	var payload apiError
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	return payload.Code == CodeSessionInvalidated
}
