// Package afk implements the AFK state machine (C7): away/present
// gating for the event listener and agent-initiated outbound messages.
package afk

import (
	"context"
	"log/slog"
	"time"

	"github.com/zulipmcp/bridge/internal/store"
)

// Controller wraps the store's AFK row with the enable/disable/status
// operations and the auto-return background tick from spec.md §4.7.
type Controller struct {
	afk    *store.AFKStore
	log    *slog.Logger
	ticker *time.Ticker
	stop   chan struct{}
}

// New builds a Controller over afkStore. It starts no ticker;
// RunAutoReturnLoop does the periodic auto-return check.
func New(afkStore *store.AFKStore, logger *slog.Logger) *Controller {
	return &Controller{afk: afkStore, log: logger}
}

// Status returns the current AFK row.
func (c *Controller) Status(ctx context.Context) (*store.AFKState, error) {
	return c.afk.Get(ctx)
}

// Enable transitions to away, with an optional auto-return deadline
// hours from now.
func (c *Controller) Enable(ctx context.Context, reason string, hours float64) error {
	var deadline *time.Time
	if hours > 0 {
		t := time.Now().UTC().Add(time.Duration(hours * float64(time.Hour)))
		deadline = &t
	}
	return c.afk.Enable(ctx, reason, deadline)
}

// Disable transitions to present.
func (c *Controller) Disable(ctx context.Context) error {
	return c.afk.Disable(ctx)
}

// IsAFK reports the current away/present flag, used by agent_message's
// gating check and the listener controller's tick.
func (c *Controller) IsAFK(ctx context.Context) (bool, error) {
	state, err := c.afk.Get(ctx)
	if err != nil {
		return false, err
	}
	return state.IsAFK, nil
}

// RunAutoReturnLoop runs the auto-return tick until ctx is cancelled,
// transitioning present whenever auto_return_at has elapsed.
func (c *Controller) RunAutoReturnLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := c.afk.ApplyAutoReturn(ctx, now); err != nil {
				c.log.Error("afk: auto-return tick failed", "error", err)
			}
		}
	}
}
