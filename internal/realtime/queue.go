// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tomtom215/checkclock/internal/config"
	"github.com/tomtom215/checkclock/internal/logging"
	"github.com/tomtom215/checkclock/internal/metrics"
)

// Flush policy defaults.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 5 * time.Second
)

// FlushPolicy bounds how long a flush keeps trying while disconnected.
type FlushPolicy struct {
	MaxRetries int
	RetryDelay time.Duration
}

// PolicyFromConfig fills unset fields with the defaults.
func PolicyFromConfig(cfg config.FlushConfig) FlushPolicy {
	p := FlushPolicy{MaxRetries: cfg.MaxRetries, RetryDelay: cfg.RetryDelay}
	if p.MaxRetries <= 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.RetryDelay <= 0 {
		p.RetryDelay = DefaultRetryDelay
	}
	return p
}

// Queue is a FIFO of items waiting for a connected channel.
// It is safe for concurrent use.
type Queue[T any] struct {
	name  string
	mu    sync.Mutex
	items []T
	depth prometheus.Gauge

	flushing atomic.Bool
}

// NewQueue creates an empty queue. channel and name label the depth gauge.
func NewQueue[T any](channel, name string) *Queue[T] {
	return &Queue[T]{
		name:  name,
		depth: metrics.RealtimeQueueDepth.WithLabelValues(channel, name),
	}
}

// Name returns the queue label.
func (q *Queue[T]) Name() string {
	return q.name
}

// Push appends items to the tail.
func (q *Queue[T]) Push(items ...T) {
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, items...)
	n := len(q.items)
	q.mu.Unlock()
	q.depth.Set(float64(n))
}

// Pop removes the head. ok is false when the queue is empty.
func (q *Queue[T]) Pop() (item T, ok bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return item, false
	}
	item = q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	n := len(q.items)
	q.mu.Unlock()
	q.depth.Set(float64(n))
	return item, true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns a copy of the queued items, head first.
func (q *Queue[T]) Snapshot() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]T, len(q.items))
	copy(out, q.items)
	return out
}

// FlushResult describes one flush pass.
type FlushResult struct {
	Sent     int
	Requeued int
	Failed   int
	Aborted  bool

	// Skipped is set when another flush of the same queue was running.
	Skipped bool
}

// Flush drains q through send while connected reports true.
//
// A dequeue that finds the channel disconnected moves the item to a holding
// list and waits policy.RetryDelay. When the channel is back, held items are
// sent first so queue order is kept. After policy.MaxRetries consecutive
// disconnected checks the held items go back to the tail of q in their
// original order and the pass stops. Items whose send fails are re-queued
// after the pass. Only one flush per queue runs at a time.
func Flush[T any](ctx context.Context, q *Queue[T], connected func() bool, send func(context.Context, T) error, policy FlushPolicy) FlushResult {
	if !q.flushing.CompareAndSwap(false, true) {
		return FlushResult{Skipped: true}
	}

	var (
		res     FlushResult
		holding []T
		failed  []T
		retries int
	)

	requeueHolding := func() {
		q.Push(holding...)
		res.Requeued += len(holding)
		holding = nil
	}

	sendOne := func(item T) {
		if err := send(ctx, item); err != nil {
			failed = append(failed, item)
			res.Failed++
			logging.Warn().Err(err).Str("queue", q.name).Msg("Queued item send failed, requeueing")
			return
		}
		res.Sent++
	}

	for {
		if !connected() {
			item, ok := q.Pop()
			if ok {
				holding = append(holding, item)
			} else if len(holding) == 0 {
				break
			}
			retries++
			logging.Warn().
				Str("queue", q.name).
				Int("retry", retries).
				Int("max_retries", policy.MaxRetries).
				Int("held", len(holding)).
				Msg("Realtime channel unavailable, holding queued item")

			if retries >= policy.MaxRetries {
				requeueHolding()
				res.Aborted = true
				break
			}

			select {
			case <-ctx.Done():
				requeueHolding()
				res.Aborted = true
			case <-time.After(policy.RetryDelay):
			}
			if res.Aborted {
				break
			}
			continue
		}

		retries = 0
		for _, held := range holding {
			sendOne(held)
		}
		holding = nil

		item, ok := q.Pop()
		if !ok {
			break
		}
		sendOne(item)
	}

	q.Push(failed...)

	metrics.RealtimeFlushItems.WithLabelValues(q.name, "sent").Add(float64(res.Sent))
	metrics.RealtimeFlushItems.WithLabelValues(q.name, "requeued").Add(float64(res.Requeued))
	metrics.RealtimeFlushItems.WithLabelValues(q.name, "failed").Add(float64(res.Failed))
	if res.Aborted {
		metrics.RealtimeFlushAborts.WithLabelValues(q.name).Inc()
		logging.Error().
			Str("queue", q.name).
			Int("pending", q.Len()).
			Msg("Realtime flush retry limit reached, items stay pending")
	} else if res.Sent > 0 || res.Failed > 0 {
		logging.Info().
			Str("queue", q.name).
			Int("sent", res.Sent).
			Int("failed", res.Failed).
			Msg("Realtime queue flushed")
	}

	q.flushing.Store(false)
	// A Push whose own Flush was skipped may have landed after the last Pop.
	if !res.Aborted && res.Failed == 0 && q.Len() > 0 && connected() {
		more := Flush(ctx, q, connected, send, policy)
		res.Sent += more.Sent
		res.Requeued += more.Requeued
		res.Failed += more.Failed
		res.Aborted = more.Aborted
	}
	return res
}

// drained is nil when res emptied the queue it ran over, ErrQueued otherwise.
func drained(res FlushResult) error {
	if res.Skipped || res.Aborted || res.Failed > 0 {
		return ErrQueued
	}
	return nil
}
