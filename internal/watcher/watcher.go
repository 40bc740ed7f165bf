// Package watcher reports changes to settings files so the server can
// restart with the new configuration.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 100 * time.Millisecond

// Watcher monitors named files in one directory and calls onChange after
// any of them is written, created, renamed or removed.
// It watches the directory since fsnotify cannot watch non-existent files.
type Watcher struct {
	ctx      context.Context
	watcher  *fsnotify.Watcher
	cancel   context.CancelFunc
	onChange func(path string)
	names    map[string]bool
	dir      string
	debounce time.Duration
	mu       sync.Mutex
	running  bool
}

// New creates a Watcher for the files called names inside dir.
func New(dir string, names []string, onChange func(path string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		dir:      filepath.Clean(dir),
		names:    set,
		onChange: onChange,
		watcher:  fsw,
		ctx:      ctx,
		cancel:   cancel,
		debounce: DefaultDebounce,
	}, nil
}

// SetDebounce changes the quiet period before onChange fires. Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Start begins watching. A missing directory is logged and not watched.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if _, err := os.Stat(w.dir); err != nil {
		log.Warn().Err(err).Str("path", w.dir).Msg("Settings directory not found, not watching")
	} else if err := w.watcher.Add(w.dir); err != nil {
		return err
	}

	go w.watchLoop()
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.running = false
	w.cancel()
	return w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	var debounceTimer *time.Timer

	for {
		select {
		case <-w.ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}

			log.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("Settings file event")
			path := event.Name
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				w.fire(path)
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Dir(filepath.Clean(event.Name)) != w.dir {
		return false
	}
	if !w.names[filepath.Base(event.Name)] {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0
}

func (w *Watcher) fire(path string) {
	select {
	case <-w.ctx.Done():
		return
	default:
	}
	log.Info().Str("path", path).Msg("Settings file changed")
	if w.onChange != nil {
		w.onChange(path)
	}
}
