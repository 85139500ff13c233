package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher watches the config file for changes and reloads the Manager when
// modifications are detected, so operational knobs like log level can be
// changed without restarting the service. Changes are debounced to avoid
// multiple reloads during rapid successive writes.
type Watcher struct {
	manager    *Manager
	configPath string
	watcher    *fsnotify.Watcher

	debounceDelay time.Duration
	logger        zerolog.Logger

	// OnReload, if set, is called after every successful reload with the
	// fresh config.
	OnReload func(Config)

	mu            sync.Mutex
	debounceTimer *time.Timer
}

// NewWatcher creates a config file watcher bound to the given Manager.
func NewWatcher(manager *Manager, configPath string, logger zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		manager:       manager,
		configPath:    configPath,
		watcher:       fw,
		debounceDelay: 100 * time.Millisecond,
		logger:        logger.With().Str("component", "config.watcher").Logger(),
	}, nil
}

// Start begins watching the config file. It blocks until the context is
// canceled, so run it in its own goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	// fsnotify requires watching directories, not files directly.
	configDir := filepath.Dir(w.configPath)
	configFile := filepath.Base(w.configPath)

	if err := w.watcher.Add(configDir); err != nil {
		w.logger.Error().Err(err).Str("dir", configDir).Msg("Failed to watch config directory")
		return err
	}
	w.logger.Debug().Str("file", w.configPath).Msg("Watching config file")

	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != configFile {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("Config watcher error")
		}
	}
}

// scheduleReload coalesces rapid successive writes into a single reload.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.reload)
}

func (w *Watcher) reload() {
	if err := w.manager.Reload(w.configPath); err != nil {
		w.logger.Warn().Err(err).Msg("Config reload failed, keeping previous config")
		return
	}
	cfg := w.manager.Get()
	w.logger.Info().Str("log_level", cfg.Log.Level).Msg("Config reloaded")
	if w.OnReload != nil {
		w.OnReload(cfg)
	}
}
