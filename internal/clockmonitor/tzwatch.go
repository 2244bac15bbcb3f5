// CheckClock - Offline-Resilient Attendance Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkclock

package clockmonitor

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tomtom215/checkclock/internal/logging"
)

// timezoneFiles are the names whose replacement means the zone changed.
var timezoneFiles = map[string]bool{
	"localtime": true,
	"timezone":  true,
}

// TimezoneWatcher watches a directory (usually /etc) for timezone file
// replacement. Editors and timedatectl replace files by rename, so the
// directory is watched instead of the files.
type TimezoneWatcher struct {
	dir string
}

// NewTimezoneWatcher creates a watcher for dir.
func NewTimezoneWatcher(dir string) *TimezoneWatcher {
	return &TimezoneWatcher{dir: dir}
}

// Name implements Source.
func (w *TimezoneWatcher) Name() string { return "tzwatch" }

// Run implements Source.
func (w *TimezoneWatcher) Run(ctx context.Context, out chan<- Signal) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !timezoneFiles[filepath.Base(ev.Name)] {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
				continue
			}
			sig := Signal{Kind: KindTimezone, At: time.Now(), Detail: ev.Name}
			select {
			case out <- sig:
			case <-ctx.Done():
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn().Err(err).Str("dir", w.dir).Msg("Timezone watch error")
		}
	}
}
