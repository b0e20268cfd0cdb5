package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	applogger "TradePilot/pkg/logger"
)

// Watcher reloads the registry when the orchestrator deploys new bundle
// files into the model directory. Events are debounced so a four-artifact
// write triggers one reload, not four.
type Watcher struct {
	reg      *Registry
	l        *applogger.Logger
	fw       *fsnotify.Watcher
	debounce time.Duration
}

// NewWatcher creates a filesystem watcher over the registry's model dir.
func NewWatcher(reg *Registry, l *applogger.Logger, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	if err := fw.Add(reg.Dir()); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", reg.Dir(), err)
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{reg: reg, l: l, fw: fw, debounce: debounce}, nil
}

// Run blocks until ctx is cancelled, reloading after quiet periods.
func (w *Watcher) Run(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.l.Warn("model dir watch error", applogger.Error(err))
		case <-timerC:
			timer = nil
			timerC = nil
			if n, err := w.reg.LoadAll(); err != nil {
				w.l.Error("registry reload failed", applogger.Error(err))
			} else {
				w.l.Info("registry reloaded after deploy", applogger.Int("bundles", n))
			}
		}
	}
}

// Close releases the filesystem watcher.
func (w *Watcher) Close() error { return w.fw.Close() }
