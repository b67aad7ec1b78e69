package crmchat

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// newBackoff yields ReconnectInterval * 2^n capped at MaxReconnectDelay,
// without jitter: 1s, 2s, 4s, 8s, 16s, 30s, ... with the defaults.
func newBackoff(cfg Config) *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.ReconnectInterval,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         cfg.MaxReconnectDelay,
	}
	b.Reset()
	return b
}

// scheduleReconnectLocked is called after an abnormal close or a failed dial.
// It arms the single reconnect timer unless reconnects are disabled, the user
// disconnected, or the attempt budget is spent.
func (c *Client) scheduleReconnectLocked(cause error) *StateEvent {
	c.stopTimerLocked()
	switch {
	case c.userClosed:
		return c.setStateLocked(StateClosed, cause)
	case !c.cfg.AutoReconnect:
		return c.setStateLocked(StateIdle, cause)
	case c.attempts >= c.cfg.MaxReconnectTries:
		c.log().Warn("reconnect attempts exhausted", map[string]any{"room_id": c.roomID, "attempts": c.attempts})
		return c.setStateLocked(StateIdle, cause)
	}

	c.delay = c.backoff.NextBackOff()
	c.attempts++
	c.timerSeq++
	seq := c.timerSeq
	c.timer = time.AfterFunc(c.delay, func() { c.reconnect(seq) })
	c.log().Info("reconnect scheduled", map[string]any{
		"room_id": c.roomID,
		"attempt": c.attempts,
		"delay":   c.delay.String(),
	})
	return c.setStateLocked(StateReconnecting, cause)
}

func (c *Client) reconnect(seq uint64) {
	c.mu.Lock()
	if c.timer == nil || c.timerSeq != seq || c.userClosed {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.mu.Unlock()

	// Failures are recorded on the client and rescheduled by dial.
	_ = c.dial(context.Background(), false)
}

func (c *Client) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
