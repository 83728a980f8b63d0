package memory

import "sync"

// SettingsMirror is a map-backed ports.SettingsMirror
type SettingsMirror struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewSettingsMirror creates an empty mirror
func NewSettingsMirror() *SettingsMirror {
	return &SettingsMirror{values: make(map[string]string)}
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
	m.values[name] = value
	return nil
}

func (m *SettingsMirror) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, name)
	return nil
}

func (m *SettingsMirror) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string]string)
	return nil
}
