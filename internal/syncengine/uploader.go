// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package syncengine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/checkclock/internal/config"
	"github.com/tomtom215/checkclock/internal/logging"
	"github.com/tomtom215/checkclock/internal/metrics"
	"github.com/tomtom215/checkclock/internal/outbox"
)

const (
	// MinUploadInterval is the shortest periodic upload tick accepted.
	MinUploadInterval = config.MinPunchUploadInterval

	uploadTimeout = 30 * time.Second
)

// ErrOffline is returned by UploadNow when the remote store is unreachable.
var ErrOffline = errors.New("remote store unreachable")

// PunchCache is the subset of outbox.Outbox used by the uploader.
type PunchCache interface {
	Pending(ctx context.Context) ([]*outbox.Entry, error)
	MarkUploaded(ctx context.Context, ids []string) error
	RecordFailure(ctx context.Context, ids []string, lastError string) error
}

// BatchSender sends one encoded punch batch.
type BatchSender interface {
	UploadPunchBatch(ctx context.Context, officeID int, payload string) error
}

// UploadResult describes one batch upload.
type UploadResult struct {
	Entries  int       `json:"entries"`
	Uploaded bool      `json:"uploaded"`
	At       time.Time `json:"at"`
}

// Uploader periodically uploads the whole punch cache as one batch.
type Uploader struct {
	cache     PunchCache
	sender    BatchSender
	online    OnlineChecker
	officeID  int
	separator string
	interval  time.Duration

	// uploadMu serialises periodic and manual uploads.
	uploadMu sync.Mutex

	// Loop state, protected by mu
	mu       sync.Mutex
	running  bool
	stopping bool
	cancel   context.CancelFunc
	stopDone chan struct{}
	last     UploadResult
}

// NewUploader creates an uploader. Intervals under MinUploadInterval are raised to it.
func NewUploader(cache PunchCache, sender BatchSender, online OnlineChecker, officeID int, separator string, interval time.Duration) *Uploader {
	if interval < MinUploadInterval {
		interval = MinUploadInterval
	}
	if separator == "" {
		separator = outbox.DefaultSeparator
	}
	return &Uploader{
		cache:     cache,
		sender:    sender,
		online:    online,
		officeID:  officeID,
		separator: separator,
		interval:  interval,
	}
}

// UploadNow collects every cached punch and sends it as one batch. On success
// the batch is purged from the cache; on failure the cache is left intact and
// each entry's attempt counter is bumped. An empty cache is not an error.
func (u *Uploader) UploadNow(ctx context.Context) (UploadResult, error) {
	u.uploadMu.Lock()
	defer u.uploadMu.Unlock()

	ctx = logging.ContextWithPassID(ctx)
	log := logging.Ctx(ctx)
	res := UploadResult{At: time.Now().UTC()}

	entries, err := u.cache.Pending(ctx)
	if err != nil {
		metrics.OutboxUploads.WithLabelValues("error").Inc()
		return res, err
	}
	res.Entries = len(entries)
	if len(entries) == 0 {
		metrics.OutboxUploads.WithLabelValues("empty").Inc()
		u.setLast(res)
		return res, nil
	}

	if u.online != nil && !u.online.IsOnline(ctx) {
		metrics.OutboxUploads.WithLabelValues("offline").Inc()
		log.Info().Int("entries", len(entries)).Msg("Punch upload skipped, remote store unreachable")
		return res, ErrOffline
	}

	batch, err := outbox.BuildBatch(u.officeID, entries, u.separator)
	if err != nil {
		metrics.OutboxUploads.WithLabelValues("error").Inc()
		return res, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
	err = u.sender.UploadPunchBatch(sendCtx, u.officeID, batch.Payload)
	cancel()

	if err != nil {
		metrics.OutboxUploads.WithLabelValues("error").Inc()
		log.Error().Err(err).Int("entries", len(entries)).Msg("Punch batch upload failed, cache kept")
		if ferr := u.cache.RecordFailure(ctx, batch.IDs, err.Error()); ferr != nil {
			log.Warn().Err(ferr).Msg("Failed to record punch upload attempt")
		}
		return res, err
	}

	if err := u.cache.MarkUploaded(ctx, batch.IDs); err != nil {
		// The remote side has the batch; it is sent again next tick.
		metrics.OutboxUploads.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("Punch batch uploaded but cache purge failed")
		return res, err
	}

	res.Uploaded = true
	metrics.OutboxUploads.WithLabelValues("success").Inc()
	log.Info().Int("entries", len(entries)).Msg("Punch batch uploaded")
	u.setLast(res)
	return res, nil
}

// LastUpload returns the result of the last successful or empty upload.
func (u *Uploader) LastUpload() UploadResult {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.last
}

func (u *Uploader) setLast(r UploadResult) {
	u.mu.Lock()
	u.last = r
	u.mu.Unlock()
}

// Start begins the periodic upload loop.
func (u *Uploader) Start(ctx context.Context) error {
	u.mu.Lock()

	for u.stopping {
		stopDone := u.stopDone
		u.mu.Unlock()
		<-stopDone
		u.mu.Lock()
	}

	if u.running {
		u.mu.Unlock()
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	u.cancel = cancel
	u.running = true
	u.stopDone = make(chan struct{})
	done := u.stopDone

	u.mu.Unlock()

	go u.run(loopCtx, done)

	logging.Info().Dur("interval", u.interval).Msg("Punch uploader started")
	return nil
}

// Stop stops the loop and waits for an in-flight upload.
func (u *Uploader) Stop() {
	u.mu.Lock()
	if !u.running || u.stopping {
		u.mu.Unlock()
		return
	}

	u.cancel()
	u.running = false
	u.stopping = true
	stopDone := u.stopDone
	u.mu.Unlock()

	<-stopDone

	u.mu.Lock()
	u.stopping = false
	u.mu.Unlock()

	logging.Info().Msg("Punch uploader stopped")
}

// IsRunning reports whether the loop is active.
func (u *Uploader) IsRunning() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.running
}

func (u *Uploader) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := u.UploadNow(ctx); err != nil && !errors.Is(err, ErrOffline) {
				logging.Debug().Err(err).Msg("Periodic punch upload failed")
			}
		}
	}
}
