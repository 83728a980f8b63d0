// Package yamlfile keeps the settings mirror in a small YAML file so a few settings survive
// restarts and can be read before the local store has loaded.
package yamlfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// SettingsMirror is a ports.SettingsMirror persisted to a YAML map. Every change rewrites
// the file through a temp file and rename.
type SettingsMirror struct {
	path   string
	mu     sync.RWMutex
	values map[string]string
}

// Open loads path, or starts empty when the file does not exist yet
func Open(path string) (*SettingsMirror, error) {
	m := &SettingsMirror{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return m, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read settings mirror: %w", err)
	}
	if err := yaml.Unmarshal(data, &m.values); err != nil {
		return nil, fmt.Errorf("failed to parse settings mirror %s: %w", path, err)
	}
	if m.values == nil {
		m.values = make(map[string]string)
	}
	return m, nil
}

func (m *SettingsMirror) Get(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[name]
	return value, ok
}

func (m *SettingsMirror) Set(name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.values[name]; ok && current == value {
		return nil
	}
	m.values[name] = value
	return m.flush()
}

func (m *SettingsMirror) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[name]; !ok {
		return nil
	}
	delete(m.values, name)
	return m.flush()
}

func (m *SettingsMirror) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string]string)
	return m.flush()
}

// flush must be called with mu held
func (m *SettingsMirror) flush() error {
	data, err := yaml.Marshal(m.values)
	if err != nil {
		return fmt.Errorf("failed to encode settings mirror: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(m.path), ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write settings mirror: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write settings mirror: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		return fmt.Errorf("failed to replace settings mirror: %w", err)
	}
	return nil
}
