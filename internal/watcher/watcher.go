// Package watcher provides file system watching with debouncing for the
// i3 configuration directory.
package watcher

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vpittamp/i3pm/internal/log"
)

// Watcher monitors the config directory for changes and coalesces rapid
// event bursts into single change notifications.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dirs      []string
	debounce  time.Duration
	onChange  chan struct{}
	done      chan struct{}
}

// Config holds watcher configuration options.
type Config struct {
	// Dirs are the directories to watch (config dir and its projects/
	// subdirectory).
	Dirs        []string
	DebounceDur time.Duration
}

// DefaultConfig returns sensible defaults for the watcher.
func DefaultConfig(configDir string) Config {
	return Config{
		Dirs:        []string{configDir, filepath.Join(configDir, "projects")},
		DebounceDur: 100 * time.Millisecond,
	}
}

// New creates a new config watcher.
func New(cfg Config) (*Watcher, error) {
	log.Debug(log.CatWatcher, "creating watcher", "dirs", strings.Join(cfg.Dirs, ","), "debounce", cfg.DebounceDur)
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		log.ErrorErr(log.CatWatcher, "failed to create fsnotify watcher", err)
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsWatcher: fsw,
		dirs:      cfg.Dirs,
		debounce:  cfg.DebounceDur,
		onChange:  make(chan struct{}, 1),
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching. Returns a channel that receives a signal when
// configuration relevant files change.
func (w *Watcher) Start() (<-chan struct{}, error) {
	for _, dir := range w.dirs {
		if err := w.fsWatcher.Add(dir); err != nil {
			// Directories may not exist yet (fresh install); keep going.
			log.Warn(log.CatWatcher, "cannot watch directory", "dir", dir, "error", err)
		}
	}

	go w.loop()
	return w.onChange, nil
}

func (w *Watcher) loop() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			log.Debug(log.CatWatcher, "fs event", "op", event.Op.String(), "file", event.Name)
			// Restart the debounce window on every relevant event.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			select {
			case w.onChange <- struct{}{}:
			default:
				// A notification is already pending.
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "watcher error", err)
		}
	}
}

// relevant filters the noise: only JSON config writes matter, and temp
// files from atomic writes are ignored.
func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return strings.HasSuffix(base, ".json") || strings.HasSuffix(base, ".json"+".deleted")
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() {
	select {
	case <-w.done:
		return
	default:
		close(w.done)
	}
	_ = w.fsWatcher.Close()
}
