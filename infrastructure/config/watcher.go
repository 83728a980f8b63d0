package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/anmolarora1/em/pkg/utils"
)

// DynamicConfig is the part of the configuration that can change while running
type DynamicConfig struct {
	LogLevel           string `yaml:"logLevel" validate:"omitempty,oneof=debug info warn error"`
	DataIntegrityCheck bool   `yaml:"dataIntegrityCheck"`
}

// Watcher reloads DynamicConfig from a YAML file whenever it changes on disk
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	mu       sync.RWMutex
	current  DynamicConfig
	onChange []func(DynamicConfig)
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a Watcher seeded with initial. A missing file is not an error: the
// directory is watched so the file is picked up once created.
func NewWatcher(path string, initial DynamicConfig, logger *zap.Logger) (*Watcher, error) {
	if loaded, err := loadDynamicConfig(path); err == nil {
		initial = *loaded
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory so atomic saves (rename over the file) are seen
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	return &Watcher{
		path:    path,
		watcher: watcher,
		current: initial,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start begins watching for configuration changes
func (w *Watcher) Start() {
	go w.watchLoop()
	w.logger.Info("Configuration watcher started", zap.String("path", w.path))
}

// Stop stops watching for configuration changes
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
		w.logger.Info("Configuration watcher stopped")
	})
}

func (w *Watcher) watchLoop() {
	// Editors emit several events per save
	var debounce *time.Timer
	const debounceDuration = 100 * time.Millisecond

	for {
		select {
		case <-w.stopCh:
			if debounce != nil {
				debounce.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceDuration, w.reload)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	next, err := loadDynamicConfig(w.path)
	if err != nil {
		w.logger.Error("Failed to reload configuration, keeping current", zap.Error(err))
		return
	}

	w.mu.Lock()
	prev := w.current
	w.current = *next
	handlers := append([]func(DynamicConfig){}, w.onChange...)
	w.mu.Unlock()

	if prev == *next {
		return
	}
	w.logger.Info("Configuration reloaded",
		zap.String("logLevel", next.LogLevel),
		zap.Bool("dataIntegrityCheck", next.DataIntegrityCheck),
	)
	for _, handler := range handlers {
		handler(*next)
	}
}

// OnChange registers a callback for configuration changes
func (w *Watcher) OnChange(handler func(DynamicConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, handler)
}

// Current returns the current dynamic configuration
func (w *Watcher) Current() DynamicConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func loadDynamicConfig(path string) (*DynamicConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg DynamicConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := utils.ValidateStruct(cfg); err != nil {
		return nil, fmt.Errorf("invalid dynamic config: %w", err)
	}
	return &cfg, nil
}
