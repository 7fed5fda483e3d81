// Package config persists the small amount of state the relay client keeps
// between runs.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/pkg/errors"
)

// Settings is everything remembered between runs.
type Settings struct {
	// Address is the relay address from the last start.
	Address string `json:"address"`
}

// DefaultSettings returns the settings used before anything is saved.
func DefaultSettings() Settings {
	return Settings{}
}

// Manager handles loading and saving settings.
type Manager struct {
	mu         sync.Mutex
	configPath string
	settings   Settings
	onChanged  func(Settings)
}

// NewManager creates a manager backed by the per-user settings file.
func NewManager() (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return NewManagerWithPath(configPath), nil
}

// NewManagerWithPath creates a manager backed by the given file.
func NewManagerWithPath(path string) *Manager {
	return &Manager{
		configPath: path,
		settings:   DefaultSettings(),
	}
}

// getConfigPath returns the path to the settings file, creating the
// directory if needed.
func getConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "vkey")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "vkey")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config", "vkey")
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}

	return filepath.Join(configDir, "settings.json"), nil
}

// Load reads settings from disk. A missing file is not an error; the
// defaults stay in place.
func (m *Manager) Load() error {
	m.mu.Lock()
	data, err := os.ReadFile(m.configPath)
	if os.IsNotExist(err) {
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		m.mu.Unlock()
		return errors.Wrap(err, "reading settings")
	}

	settings := m.settings
	if err := json.Unmarshal(data, &settings); err != nil {
		m.mu.Unlock()
		return errors.Wrap(err, "parsing settings")
	}
	m.settings = settings
	onChanged := m.onChanged
	m.mu.Unlock()

	if onChanged != nil {
		onChanged(settings)
	}
	return nil
}

// Save writes the current settings to disk.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.settings, "", "  ")
	if err != nil {
		return err
	}
	return errors.Wrap(os.WriteFile(m.configPath, data, 0644), "writing settings")
}

// Get returns a copy of the current settings.
func (m *Manager) Get() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// Set replaces the settings.
func (m *Manager) Set(settings Settings) {
	m.mu.Lock()
	m.settings = settings
	onChanged := m.onChanged
	m.mu.Unlock()

	if onChanged != nil {
		onChanged(settings)
	}
}

// SetAddress updates just the remembered relay address.
func (m *Manager) SetAddress(address string) {
	m.mu.Lock()
	m.settings.Address = address
	settings := m.settings
	onChanged := m.onChanged
	m.mu.Unlock()

	if onChanged != nil {
		onChanged(settings)
	}
}

// RegisterChangeCallback registers a function called whenever settings
// change.
func (m *Manager) RegisterChangeCallback(fn func(Settings)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}

// Path returns the backing file path.
func (m *Manager) Path() string {
	return m.configPath
}
