package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, LoadConfig(dir))

	assert.Equal(t, "auto", Cfg.Provider.Transport)
	assert.Equal(t, 5, Cfg.Retry.MaxAttempts)
	assert.Equal(t, 300, Cfg.Retry.BaseDelayMs)
	assert.Equal(t, 120, Cfg.Controller.PreconnectBufferMs)
	assert.Equal(t, 8000, Cfg.Stream.KeepaliveIntervalMs)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("provider:\n  name: deepgram\n  api_key: abc123\nretry:\n  max_attempts: 9\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644))

	require.NoError(t, LoadConfig(dir))

	assert.Equal(t, "deepgram", Cfg.Provider.Name)
	assert.Equal(t, "abc123", Cfg.Provider.APIKey)
	assert.Equal(t, 9, Cfg.Retry.MaxAttempts)
}

func TestLoadConfig_EnvOverridesFileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("provider:\n  api_key: from-file\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644))
	t.Setenv("SARAUDIO_PROVIDER_API_KEY", "from-env")
	require.NoError(t, LoadConfig(dir))

	assert.Equal(t, "from-env", Cfg.Provider.APIKey)
}
