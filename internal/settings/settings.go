// Package settings provides local settings file management for translation
// preferences. Settings are stored in settings.json next to the executable,
// or at a custom path for tests.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

const (
	// SettingsFileName is the name of the settings file
	SettingsFileName = "settings.json"

	// ToneFormal requests a formal register from the translation service
	ToneFormal = "formal"
	// ToneFriendly requests a friendly, conversational register
	ToneFriendly = "friendly"
)

// LocalSettings represents per-user translation preferences
type LocalSettings struct {
	Tone         string  `json:"tone"`          // "formal" or "friendly"
	GlossaryPath string  `json:"glossary_path"` // CSV of source,target term pairs
	FontName     string  `json:"font_name"`
	FontPath     string  `json:"font_path"`
	FontSize     float64 `json:"font_size"`
}

// Manager manages the local settings file
type Manager struct {
	filePath string
	settings *LocalSettings
	mu       sync.RWMutex
}

// NewManager creates a settings manager using settings.json in the
// executable's directory.
func NewManager() (*Manager, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, err
	}
	return NewManagerWithPath(filepath.Join(filepath.Dir(exePath), SettingsFileName)), nil
}

// NewManagerWithPath creates a settings manager with a custom path.
// Useful for testing.
func NewManagerWithPath(filePath string) *Manager {
	m := &Manager{
		filePath: filePath,
		settings: defaultSettings(),
	}
	_ = m.Load() // Ignore error if file doesn't exist
	return m
}

func defaultSettings() *LocalSettings {
	return &LocalSettings{Tone: ToneFormal}
}

// Load loads settings from the file
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			m.settings = defaultSettings()
			return nil
		}
		return err
	}

	var s LocalSettings
	if err := json.Unmarshal(data, &s); err != nil {
		m.settings = defaultSettings()
		return err
	}
	if s.Tone != ToneFormal && s.Tone != ToneFriendly {
		s.Tone = ToneFormal
	}

	m.settings = &s
	return nil
}

// Save saves settings to the file
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := json.MarshalIndent(m.settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.filePath, data, 0644)
}

// Get returns a copy of the current settings
func (m *Manager) Get() LocalSettings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.settings
}

// Update replaces the current settings
func (m *Manager) Update(s LocalSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.Tone != ToneFormal && s.Tone != ToneFriendly {
		s.Tone = ToneFormal
	}
	m.settings = &s
}
