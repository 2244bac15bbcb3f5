// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/checkclock/internal/logging"
)

// DefaultCompactInterval is used when the configured interval is not positive.
const DefaultCompactInterval = time.Hour

// Compactor periodically deletes uploaded entries and runs value-log GC.
type Compactor struct {
	outbox   *Outbox
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	running     bool
	lastRun     time.Time
	lastDeleted int64
}

// NewCompactor creates a compactor for o.
func NewCompactor(o *Outbox, interval time.Duration) *Compactor {
	if interval <= 0 {
		interval = DefaultCompactInterval
	}
	return &Compactor{outbox: o, interval: interval}
}

// Start begins the background compaction loop.
func (c *Compactor) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.running = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run()

	logging.Info().Dur("interval", c.interval).Msg("Outbox compactor started")
	return nil
}

// Stop stops the loop and waits for a running compaction to finish.
func (c *Compactor) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.cancel()
	c.running = false
	c.mu.Unlock()

	c.wg.Wait()
	logging.Info().Msg("Outbox compactor stopped")
}

// IsRunning returns whether the compactor is active.
func (c *Compactor) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Compactor) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.compact()
		}
	}
}

func (c *Compactor) compact() {
	start := time.Now()

	deleted, err := c.outbox.DeleteUploaded()
	if err != nil {
		logging.Error().Err(err).Msg("Outbox compaction failed to delete uploaded entries")
	}
	if err := c.outbox.RunGC(); err != nil {
		logging.Error().Err(err).Msg("Outbox compaction GC error")
	}

	c.mu.Lock()
	c.lastRun = time.Now()
	c.lastDeleted = deleted
	c.mu.Unlock()

	if deleted > 0 {
		logging.Info().
			Int64("deleted", deleted).
			Dur("duration", time.Since(start)).
			Msg("Outbox compaction removed uploaded entries")
	}
}

// RunNow triggers an immediate compaction run.
func (c *Compactor) RunNow() {
	c.compact()
}

// LastRun returns when compaction last ran and how many entries it removed.
func (c *Compactor) LastRun() (time.Time, int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRun, c.lastDeleted
}
