package store

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jonathan/autoapply-client/internal/types"
)

// PrefEvent is delivered when the preferences record changes on disk.
type PrefEvent struct {
	Prefs *types.UserPreferences
	Err   error
}

// PrefWatcher reports external edits to the preferences record, so a
// long-running watch session picks up changes made by a concurrent
// `prefs set` invocation.
type PrefWatcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	events   chan PrefEvent
	debounce time.Duration
}

// WatchPreferences creates a watcher over the store's preferences record.
// Call Start to begin delivery and Stop to release the underlying watcher.
func (s *Store) WatchPreferences() (*PrefWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &PrefWatcher{
		store:    s,
		watcher:  fsWatcher,
		events:   make(chan PrefEvent, 10),
		debounce: 100 * time.Millisecond,
	}, nil
}

// Events returns the channel receiving preference change events.
func (w *PrefWatcher) Events() <-chan PrefEvent {
	return w.events
}

// Start begins watching the state directory for preference changes.
func (w *PrefWatcher) Start(ctx context.Context) error {
	// The directory is watched, not the file: atomic saves replace the file
	// by rename, which would drop a file-level watch.
	if err := w.watcher.Add(w.store.Dir()); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.store.Dir(), err)
	}
	go w.run(ctx)
	return nil
}

// Stop closes the underlying watcher. The event channel is closed by the
// delivery goroutine once it drains, so Stop never races a pending send.
func (w *PrefWatcher) Stop() error {
	return w.watcher.Close()
}

func (w *PrefWatcher) run(ctx context.Context) {
	defer close(w.events)
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != preferencesFile {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Debounce: an atomic save produces several events in a burst.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerCh:
			timer = nil
			timerCh = nil
			prefs, err := w.store.Preferences()
			select {
			case w.events <- PrefEvent{Prefs: prefs, Err: err}:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.events <- PrefEvent{Err: err}:
			default:
			}
		}
	}
}
