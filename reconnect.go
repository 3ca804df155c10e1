package realtime

import (
	"context"
	"time"

	"nhooyr.io/websocket"
)

// backoffDelay returns the delay before retry number attempt (zero-based):
// min(initial * 2^attempt, max). No jitter is applied; each client talks to
// its own session so synchronized retries across clients are not a concern
// at this layer.
func backoffDelay(initial, max time.Duration, attempt int) time.Duration {
	if attempt > 30 {
		return max
	}
	d := initial << uint(attempt)
	if d <= 0 || d > max {
		return max
	}
	return d
}

// startReconnect moves the client into the reconnecting state after an
// unexpected connection loss and schedules the first retry. When the retry
// budget is already spent it reports a terminal disconnect instead.
func (c *Client) startReconnect(prev ConnectionState, reason string) {
	c.mu.Lock()
	if c.state == StateDisconnected || c.state == StateError {
		// Caller disconnected (or a terminal failure landed) while the loss
		// was being processed.
		c.mu.Unlock()
		return
	}
	c.state = StateReconnecting
	exhausted := c.scheduleRetryLocked(c.gen)
	c.mu.Unlock()

	if exhausted {
		c.notifyState(prev, StateError)
		c.emitDisconnected(Disconnected{Reason: reason, Terminal: true})
		return
	}
	c.notifyState(prev, StateReconnecting)
	c.emitDisconnected(Disconnected{Reason: reason, Terminal: false})
}

// scheduleRetryLocked arms the backoff timer for the next reconnection
// attempt, or moves to the error state when attempts are exhausted and
// reports true. Callers hold c.mu.
func (c *Client) scheduleRetryLocked(gen uint64) bool {
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.state = StateError
		c.logger.Error("reconnect_exhausted", map[string]any{"attempts": c.attempts})
		return true
	}
	delay := backoffDelay(c.cfg.InitialReconnectDelay, c.cfg.MaxReconnectDelay, c.attempts)
	c.attempts++
	c.logger.Info("reconnect_scheduled", map[string]any{"attempt": c.attempts, "delay": delay.String()})
	c.retryTimer = time.AfterFunc(delay, func() { c.attemptReconnect(gen) })
	return false
}

// attemptReconnect performs one dial from the backoff timer. A stale
// generation means the caller disconnected or reconnected by other means in
// the interim; the attempt stands down silently.
func (c *Client) attemptReconnect(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.retryTimer = nil
	attempt := c.attempts
	c.mu.Unlock()

	c.logger.Info("reconnect_attempt", map[string]any{"attempt": attempt})
	conn, err := c.dial(context.Background())

	c.mu.Lock()
	if gen != c.gen || c.state != StateReconnecting {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "superseded")
		}
		return
	}
	if err != nil {
		c.logger.Warn("reconnect_failed", map[string]any{"attempt": attempt, "err": err.Error()})
		exhausted := c.scheduleRetryLocked(gen)
		c.mu.Unlock()
		if exhausted {
			c.notifyState(StateReconnecting, StateError)
			c.emitDisconnected(Disconnected{
				Reason:   "reconnect attempts exhausted: " + err.Error(),
				Terminal: true,
			})
		}
		return
	}

	c.installConnLocked(conn)
	c.mu.Unlock()
	c.logger.Info("reconnected", map[string]any{"attempt": attempt})
	c.notifyState(StateReconnecting, StateConnected)
	c.afterOpen(context.Background(), conn)
}
