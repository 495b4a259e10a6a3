package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/wemix/blockwait/pkg/logger"
)

// Manager manages configuration with hot-reload support
type Manager struct {
	current    *Config
	configPath string

	// File watching
	watcher *fsnotify.Watcher

	// Synchronization
	mu       sync.RWMutex
	updateCh chan Update

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	logger *logger.Logger
}

// Update represents a configuration change event
type Update struct {
	Path      string
	OldConfig *Config
	NewConfig *Config
	Error     error
}

// NewManager creates a new configuration manager
func NewManager(configPath string, logger *logger.Logger) (*Manager, error) {
	ctx, cancel := context.WithCancel(context.Background())

	// Create file watcher
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	m := &Manager{
		configPath: configPath,
		watcher:    watcher,
		updateCh:   make(chan Update, 10),
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger,
	}

	// Load initial configuration
	if err := m.loadConfig(); err != nil {
		cancel()
		watcher.Close()
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Start watching for changes
	if err := m.startWatching(); err != nil {
		cancel()
		watcher.Close()
		return nil, fmt.Errorf("failed to start watching: %w", err)
	}

	return m, nil
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// GetUpdateChannel returns the update notification channel
func (m *Manager) GetUpdateChannel() <-chan Update {
	return m.updateCh
}

// Stop stops the configuration manager. The update channel closes once
// the watch loop exits.
func (m *Manager) Stop() {
	m.cancel()
	m.watcher.Close()
}

// loadConfig loads configuration from disk
func (m *Manager) loadConfig() error {
	cfg := DefaultConfig()

	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		// Create default config if not exists
		if err := SaveFile(m.configPath, cfg); err != nil {
			return err
		}
		m.current = cfg
		return nil
	}

	if err := LoadFile(m.configPath, cfg); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	m.current = cfg
	return nil
}

// startWatching starts watching the config file for changes
func (m *Manager) startWatching() error {
	// Watch the directory, not the file (for atomic writes)
	dir := filepath.Dir(m.configPath)
	if err := m.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}

	// Start the watcher goroutine
	go m.watchLoop()

	return nil
}

// watchLoop handles file system events. It is the only sender on the
// update channel and closes it on exit.
func (m *Manager) watchLoop() {
	defer close(m.updateCh)

	for {
		select {
		case <-m.ctx.Done():
			return

		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}

			// Check if it's our config file
			if filepath.Base(event.Name) != filepath.Base(m.configPath) {
				continue
			}

			// Handle the event
			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create {
				m.handleConfigChange()
			}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Error("watcher error", zap.Error(err))
		}
	}
}

// handleConfigChange reloads the config file after a change. An invalid
// file keeps the previous configuration in effect.
func (m *Manager) handleConfigChange() {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldConfig := m.cloneConfig(m.current)

	if err := m.loadConfig(); err != nil {
		m.logger.Error("failed to reload config", zap.Error(err))
		m.notifyUpdate(oldConfig, nil, err)
		return
	}

	m.logger.Info("configuration reloaded", zap.String("path", m.configPath))
	m.notifyUpdate(oldConfig, m.current, nil)
}

// cloneConfig creates a deep copy of the config
func (m *Manager) cloneConfig(cfg *Config) *Config {
	if cfg == nil {
		return nil
	}

	// Deep copy using JSON marshal/unmarshal
	data, _ := json.Marshal(cfg)
	var clone Config
	json.Unmarshal(data, &clone)
	return &clone
}

// notifyUpdate sends an update notification
func (m *Manager) notifyUpdate(oldConfig, newConfig *Config, err error) {
	select {
	case m.updateCh <- Update{
		Path:      m.configPath,
		OldConfig: oldConfig,
		NewConfig: newConfig,
		Error:     err,
	}:
	case <-m.ctx.Done():
	default:
		// Channel full, log and continue
		m.logger.Warn("config update channel full, dropping notification")
	}
}
