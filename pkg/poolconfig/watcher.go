package poolconfig

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a single config file and reloads it on change, pushing
// the new Config to a channel for a supervisor to apply to a live
// executor. Rapid successive writes are debounced into one reload. Only
// Write and Create events on the watched path trigger a reload; the watch
// is on the file itself, so a save that renames another file over it is
// not followed.
type Watcher struct {
	fsw      *fsnotify.Watcher
	path     string
	updates  chan *Config
	errors   chan error
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewWatcher starts watching path for changes. The caller owns draining
// Updates() and Errors(); both are buffered but can fill under a fast
// stream of edits, in which case each new notification that finds its
// channel full is dropped (the older ones stay buffered) rather than
// blocking fsnotify's event loop.
func NewWatcher(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("poolconfig: failed to create file watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("poolconfig: failed to watch %s: %w", path, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		fsw:     fsw,
		path:    path,
		updates: make(chan *Config, 4),
		errors:  make(chan error, 4),
		ctx:     ctx,
		cancel:  cancel,
	}
	go w.loop()
	return w, nil
}

// Updates delivers a freshly reloaded, validated Config after each
// debounced change to the watched file.
func (w *Watcher) Updates() <-chan *Config { return w.updates }

// Errors delivers reload failures (invalid JSON, a Validate failure) that
// don't produce an update — the watcher keeps running after one.
func (w *Watcher) Errors() <-chan error { return w.errors }

// Close stops the watcher and releases the underlying fsnotify handle.
func (w *Watcher) Close() error {
	w.cancel()
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	var debounce *time.Timer
	reload := func() {
		cfg, err := Load(w.path)
		if err != nil {
			select {
			case w.errors <- err:
			default:
			}
			return
		}
		select {
		case w.updates <- cfg:
		default:
		}
	}

	for {
		select {
		case <-w.ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(150*time.Millisecond, reload)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}
