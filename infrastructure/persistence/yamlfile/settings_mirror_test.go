package yamlfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsMirror_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")

	m, err := Open(path)
	require.NoError(t, err)
	_, ok := m.Get("Settings/Theme")
	assert.False(t, ok)

	require.NoError(t, m.Set("Settings/Theme", "Light"))
	require.NoError(t, m.Set("Settings/Font Size", "18"))
	require.NoError(t, m.Delete("Settings/Font Size"))

	reopened, err := Open(path)
	require.NoError(t, err)
	theme, ok := reopened.Get("Settings/Theme")
	require.True(t, ok)
	assert.Equal(t, "Light", theme)
	_, ok = reopened.Get("Settings/Font Size")
	assert.False(t, ok)
}

func TestSettingsMirror_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	m, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, m.Set("Settings/Tutorial", "On"))

	require.NoError(t, m.Clear())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))
}

func TestOpen_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- not\n- a map\n"), 0o600))

	_, err := Open(path)
	assert.Error(t, err)
}
