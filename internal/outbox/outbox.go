// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/checkclock/internal/config"
	"github.com/tomtom215/checkclock/internal/errs"
	"github.com/tomtom215/checkclock/internal/logging"
	"github.com/tomtom215/checkclock/internal/metrics"
	"github.com/tomtom215/checkclock/internal/models"
)

// Prefix keys for entry states
const (
	prefixPending  = "pending:"
	prefixUploaded = "uploaded:"
)

// gcDiscardRatio is the value-log rewrite threshold passed to Badger GC.
const gcDiscardRatio = 0.5

const closeTimeout = 30 * time.Second

var (
	// ErrClosed is returned when the outbox is closed.
	ErrClosed = errors.New("outbox is closed")

	// ErrEntryNotFound is returned when an entry doesn't exist.
	ErrEntryNotFound = errors.New("outbox entry not found")
)

// Entry is one cached punch.
type Entry struct {
	ID        string            `json:"id"`
	Punch     models.PunchEvent `json:"punch"`
	Line      string            `json:"line"`
	CreatedAt time.Time         `json:"created_at"`

	Attempts      int       `json:"attempts"`
	LastAttemptAt time.Time `json:"last_attempt_at,omitempty"`
	LastError     string    `json:"last_error,omitempty"`

	UploadedAt *time.Time `json:"uploaded_at,omitempty"`
}

// Stats contains outbox counters for the status endpoint.
type Stats struct {
	PendingCount  int64     `json:"pending"`
	UploadedCount int64     `json:"uploaded_awaiting_compaction"`
	LastGC        time.Time `json:"last_gc,omitempty"`
}

// Outbox is the Badger backed punch cache.
type Outbox struct {
	db       *badger.DB
	inMemory bool

	mu     sync.RWMutex
	closed bool
	lastGC time.Time
}

// Open opens (or creates) the outbox directory at cfg.Path.
func Open(cfg config.OutboxConfig) (*Outbox, error) {
	opts := badger.DefaultOptions(cfg.Path)
	opts.SyncWrites = cfg.SyncWrites
	opts.NumCompactors = 2
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errs.New(errs.LocalStorage, "outbox.Open", fmt.Errorf("open BadgerDB: %w", err))
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("Punch outbox opened")

	o := &Outbox{db: db}
	o.refreshGauge()
	return o, nil
}

// OpenInMemory opens a non-persistent outbox for tests and dry runs.
func OpenInMemory() (*Outbox, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errs.New(errs.LocalStorage, "outbox.OpenInMemory", err)
	}
	return &Outbox{db: db, inMemory: true}, nil
}

// Append caches one punch and returns its entry id. Entries sort by
// creation time, so Pending returns them in append order.
func (o *Outbox) Append(ctx context.Context, punch *models.PunchEvent) (string, error) {
	if err := o.checkOpen(); err != nil {
		return "", err
	}
	if punch == nil {
		return "", errs.New(errs.Serialization, "outbox.Append", errors.New("punch cannot be nil"))
	}

	now := time.Now().UTC()
	entry := &Entry{
		ID:        fmt.Sprintf("%020d-%s", now.UnixNano(), uuid.New().String()),
		Punch:     *punch,
		Line:      punch.Line(),
		CreatedAt: now,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return "", errs.New(errs.Serialization, "outbox.Append", err)
	}

	err = o.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixPending+entry.ID), data)
	})
	if err != nil {
		return "", errs.New(errs.LocalStorage, "outbox.Append", fmt.Errorf("write to BadgerDB: %w", err))
	}

	metrics.OutboxEntries.Inc()
	return entry.ID, nil
}

// Pending returns every entry not yet uploaded, oldest first.
func (o *Outbox) Pending(ctx context.Context) ([]*Entry, error) {
	if err := o.checkOpen(); err != nil {
		return nil, err
	}

	var entries []*Entry
	err := o.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixPending)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			var entry Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(it.Item().Key())).Msg("Outbox entry does not decode, skipping")
				continue
			}
			entries = append(entries, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, errs.New(errs.LocalStorage, "outbox.Pending", fmt.Errorf("iterate pending entries: %w", err))
	}
	return entries, nil
}

// MarkUploaded moves a whole uploaded batch out of the pending set in one
// transaction. Unknown ids fail the call and nothing is moved.
func (o *Outbox) MarkUploaded(ctx context.Context, ids []string) error {
	if err := o.checkOpen(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	now := time.Now().UTC()
	err := o.db.Update(func(txn *badger.Txn) error {
		for _, id := range ids {
			pendingKey := []byte(prefixPending + id)
			entry, err := getEntry(txn, pendingKey)
			if err != nil {
				return err
			}
			entry.UploadedAt = &now

			data, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("marshal uploaded entry: %w", err)
			}
			if err := txn.Set([]byte(prefixUploaded+id), data); err != nil {
				return fmt.Errorf("set uploaded entry: %w", err)
			}
			if err := txn.Delete(pendingKey); err != nil {
				return fmt.Errorf("delete pending entry: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return errs.New(errs.LocalStorage, "outbox.MarkUploaded", err)
	}

	metrics.OutboxEntries.Sub(float64(len(ids)))
	return nil
}

// RecordFailure bumps the attempt counter of every id. Ids that vanished in
// the meantime are skipped.
func (o *Outbox) RecordFailure(ctx context.Context, ids []string, lastError string) error {
	if err := o.checkOpen(); err != nil {
		return err
	}

	now := time.Now().UTC()
	err := o.db.Update(func(txn *badger.Txn) error {
		for _, id := range ids {
			key := []byte(prefixPending + id)
			entry, err := getEntry(txn, key)
			if errors.Is(err, ErrEntryNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			entry.Attempts++
			entry.LastAttemptAt = now
			entry.LastError = lastError

			data, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("marshal entry: %w", err)
			}
			if err := txn.Set(key, data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errs.New(errs.LocalStorage, "outbox.RecordFailure", err)
	}
	return nil
}

// DeleteUploaded removes every uploaded entry and returns the count.
func (o *Outbox) DeleteUploaded() (int64, error) {
	if err := o.checkOpen(); err != nil {
		return 0, err
	}

	var count int64
	err := o.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var keys [][]byte
		prefix := []byte(prefixUploaded)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}

		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, errs.New(errs.LocalStorage, "outbox.DeleteUploaded", err)
	}
	return count, nil
}

// Stats counts entries per state.
func (o *Outbox) Stats() Stats {
	o.mu.RLock()
	st := Stats{LastGC: o.lastGC}
	closed := o.closed
	o.mu.RUnlock()
	if closed {
		return st
	}

	_ = o.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefixPending)); it.ValidForPrefix([]byte(prefixPending)); it.Next() {
			st.PendingCount++
		}
		for it.Seek([]byte(prefixUploaded)); it.ValidForPrefix([]byte(prefixUploaded)); it.Next() {
			st.UploadedCount++
		}
		return nil
	})
	return st
}

// RunGC runs Badger value-log GC until nothing is left to rewrite.
func (o *Outbox) RunGC() error {
	if err := o.checkOpen(); err != nil {
		return err
	}
	if o.inMemory {
		return nil
	}

	for {
		err := o.db.RunValueLogGC(gcDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			break
		}
		if err != nil {
			metrics.OutboxGCRuns.WithLabelValues("error").Inc()
			return fmt.Errorf("run GC: %w", err)
		}
	}

	o.mu.Lock()
	o.lastGC = time.Now()
	o.mu.Unlock()
	metrics.OutboxGCRuns.WithLabelValues("success").Inc()
	return nil
}

// Close closes the database, giving up after 30 seconds.
func (o *Outbox) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- o.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("Punch outbox closed")
		return nil
	case <-time.After(closeTimeout):
		logging.Warn().Dur("timeout", closeTimeout).Msg("BadgerDB close timed out")
		return fmt.Errorf("badgerdb close timeout after %v", closeTimeout)
	}
}

func (o *Outbox) checkOpen() error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return ErrClosed
	}
	return nil
}

func (o *Outbox) refreshGauge() {
	metrics.OutboxEntries.Set(float64(o.Stats().PendingCount))
}

func getEntry(txn *badger.Txn, key []byte) (*Entry, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}

	var entry Entry
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &entry)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal entry: %w", err)
	}
	return &entry, nil
}
