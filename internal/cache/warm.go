package cache

import (
	"context"
	"time"
)

// Start runs the background maintenance loop. It waits for an element set,
// warms the window of WarmDays starting today, then checks the store every
// CheckInterval and re-warms after a cutover.
//
// Blocks until ctx is cancelled.
func (c *RowCache) Start(ctx context.Context) {
	if !c.waitForElements(ctx) {
		return
	}
	c.warmup(ctx)

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("row cache maintenance stopped")
			return
		case <-ticker.C:
			if c.setChanged() {
				c.warmup(ctx)
			}
		}
	}
}

// waitForElements blocks until the store holds a set, checking every
// second. Returns false if ctx is cancelled.
func (c *RowCache) waitForElements(ctx context.Context) bool {
	if c.store.Get() != nil {
		return true
	}

	c.logger.Info("row cache waiting for elements...")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if c.store.Get() != nil {
				c.logger.Info("elements available, starting row cache warmup")
				return true
			}
		}
	}
}

// warmup fills the cache with rows for [today, today+WarmDays).
func (c *RowCache) warmup(ctx context.Context) {
	if c.config.WarmDays == 0 {
		return
	}
	from := DayKey(c.now())
	to := from.AddDate(0, 0, c.config.WarmDays-1)

	start := time.Now()
	rows, _, err := c.Rows(ctx, from, to)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("row cache warmup failed", "error", err)
		}
		return
	}

	c.logger.Info("row cache warmup complete",
		"rows", len(rows),
		"from", from.Format(time.DateOnly),
		"to", to.Format(time.DateOnly),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
