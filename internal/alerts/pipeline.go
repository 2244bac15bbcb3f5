// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package alerts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/checkclock/internal/config"
	"github.com/tomtom215/checkclock/internal/logging"
	"github.com/tomtom215/checkclock/internal/metrics"
	"github.com/tomtom215/checkclock/internal/models"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 5 * time.Second

	deliveryTimeout = 30 * time.Second
)

var (
	// ErrNoDelivery is returned when every notifier rejected an alert.
	ErrNoDelivery = errors.New("no notifier delivered the alert")

	// ErrDeferred is returned by a notifier that kept the alert for later
	// delivery. It is not retried and does not count as delivered.
	ErrDeferred = errors.New("alert delivery deferred")
)

type item struct {
	alert    models.AdminErrorAlert
	attempts int

	// handed holds the notifiers that already took the alert.
	handed map[string]bool
}

// Pipeline is the bounded-retry admin alert queue.
type Pipeline struct {
	notifiers   []Notifier
	maxAttempts int
	retryDelay  time.Duration

	mu    sync.Mutex
	queue []item

	processing atomic.Bool
	wg         sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewPipeline creates a pipeline over notifiers. Zero values in cfg fall back
// to DefaultMaxAttempts and DefaultRetryDelay.
func NewPipeline(cfg config.AlertsConfig, notifiers ...Notifier) *Pipeline {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		notifiers:   notifiers,
		maxAttempts: maxAttempts,
		retryDelay:  delay,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Enqueue implements logging.AlertSink.
func (p *Pipeline) Enqueue(alert models.AdminErrorAlert) {
	if p.ctx.Err() != nil {
		return
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}
	p.push(item{alert: alert})
	p.kick()
}

// Len returns the number of queued alerts.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Close stops processing. Alerts still queued are abandoned.
func (p *Pipeline) Close() {
	p.cancel()
	p.wg.Wait()
	if n := p.Len(); n > 0 {
		logging.Warn().Int("pending", n).Msg("Alert pipeline closed with undelivered alerts")
	}
}

// Wait blocks until the current processing pass, if any, has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) kick() {
	if !p.processing.CompareAndSwap(false, true) {
		return
	}
	p.wg.Add(1)
	go p.process()
}

func (p *Pipeline) process() {
	defer p.wg.Done()

	for {
		it, ok := p.pop()
		if !ok {
			p.processing.Store(false)
			// An Enqueue may have slipped in between the empty pop and the
			// flag reset; pick it up rather than leave it stranded.
			if p.Len() == 0 || !p.processing.CompareAndSwap(false, true) {
				return
			}
			continue
		}

		err := p.deliver(&it)
		if err == nil {
			continue
		}

		it.attempts++
		if it.attempts >= p.maxAttempts {
			metrics.AlertsDropped.Inc()
			logging.Error().Err(err).
				Str("title", it.alert.Title).
				Int("attempts", it.attempts).
				Msg("admin alert dropped after max retries")
			continue
		}

		logging.Warn().Err(err).
			Str("title", it.alert.Title).
			Int("attempt", it.attempts).
			Dur("retry_in", p.retryDelay).
			Msg("Admin alert delivery failed, retrying")

		select {
		case <-time.After(p.retryDelay):
			p.push(it)
		case <-p.ctx.Done():
			p.push(it)
			p.processing.Store(false)
			return
		}
	}
}

// deliver offers the alert to every notifier that has not taken it yet and
// succeeds when any of them accepts it. Deferring notifiers are not asked
// again, and an alert that only they took is done.
func (p *Pipeline) deliver(it *item) error {
	if len(p.notifiers) == 0 {
		logging.Debug().Str("title", it.alert.Title).Msg("No alert notifiers configured, alert discarded")
		return nil
	}

	ctx, cancel := context.WithTimeout(p.ctx, deliveryTimeout)
	defer cancel()

	var errList []error
	delivered := false
	for _, n := range p.notifiers {
		if it.handed[n.Name()] {
			continue
		}
		err := n.Notify(ctx, it.alert)
		metrics.RecordAlertDelivery(n.Name(), err)
		switch {
		case err == nil:
			delivered = true
		case errors.Is(err, ErrDeferred):
			if it.handed == nil {
				it.handed = make(map[string]bool)
			}
			it.handed[n.Name()] = true
			logging.Debug().Str("notifier", n.Name()).Str("title", it.alert.Title).Msg("Admin alert deferred")
		default:
			errList = append(errList, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	if delivered || len(errList) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrNoDelivery, errors.Join(errList...))
}

func (p *Pipeline) push(it item) {
	p.mu.Lock()
	p.queue = append(p.queue, it)
	metrics.AlertQueueDepth.Set(float64(len(p.queue)))
	p.mu.Unlock()
}

func (p *Pipeline) pop() (item, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return item{}, false
	}
	it := p.queue[0]
	p.queue[0] = item{}
	p.queue = p.queue[1:]
	metrics.AlertQueueDepth.Set(float64(len(p.queue)))
	return it, true
}
