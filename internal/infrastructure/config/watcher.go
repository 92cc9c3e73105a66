package config

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/careloop/careloop/pkg/safego"
)

// Watcher watches config.yaml files for changes and notifies a callback with
// the freshly reloaded configuration. Only hot-reloadable settings (log level)
// should be applied by the callback; everything else needs a restart.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	onReload func(*Config)
}

// NewWatcher creates a watcher over the global and local config files.
func NewWatcher(logger *zap.Logger, onReload func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{watcher: fw, logger: logger, onReload: onReload}

	// Watch directories rather than files: editors replace files on save,
	// which drops a file-level watch.
	for _, dir := range []string{HomeDir(), "."} {
		if err := fw.Add(dir); err != nil {
			logger.Debug("Config dir not watchable", zap.String("dir", dir), zap.Error(err))
		}
	}

	return w, nil
}

// Start runs the watch loop until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	safego.Go(w.logger, "config-watcher", func() {
		defer w.watcher.Close()

		var debounce *time.Timer
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !isConfigEvent(event) {
					continue
				}
				// Debounce: editors fire several events per save.
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(200*time.Millisecond, w.reload)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("Config watcher error", zap.Error(err))
			}
		}
	})
}

func (w *Watcher) reload() {
	cfg, err := Load()
	if err != nil {
		w.logger.Warn("Config reload failed, keeping previous settings", zap.Error(err))
		return
	}
	w.logger.Info("Config reloaded",
		zap.String("log_level", cfg.Log.Level),
	)
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

func isConfigEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	return strings.EqualFold(filepath.Base(event.Name), "config.yaml")
}
