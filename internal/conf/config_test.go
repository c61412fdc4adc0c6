package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	settings, err := load(viper.New(), "", []string{dir})
	require.NoError(t, err)

	assert.Equal(t, DefaultDataDir, settings.Storage.DataDir)
	assert.Equal(t, DefaultAppendixDir, settings.Storage.AppendixDir)
	assert.Equal(t, DefaultHistoryLimit, settings.History.Limit)
	assert.Equal(t, "info", settings.Logging.DefaultLevel)

	assert.FileExists(t, filepath.Join(dir, ConfigFileName))
}

func TestLoadReadsExistingFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)
	content := []byte(`
storage:
  datadir: /srv/health/data
  appendixdir: /srv/health/Appendix
history:
  limit: 8
logging:
  default_level: debug
`)
	require.NoError(t, os.WriteFile(configPath, content, 0o600))

	settings, err := load(viper.New(), configPath, nil)
	require.NoError(t, err)

	assert.Equal(t, "/srv/health/data", settings.Storage.DataDir)
	assert.Equal(t, "/srv/health/Appendix", settings.Storage.AppendixDir)
	assert.Equal(t, 8, settings.History.Limit)
	assert.Equal(t, "debug", settings.Logging.DefaultLevel)
	// untouched keys keep their defaults
	assert.Equal(t, DefaultSlowQueryMs, settings.Storage.SlowQuery)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(configPath, []byte("history:\n  limit: 0\nstorage:\n  datadir: same\n  appendixdir: same\n"), 0o600))

	_, err := load(viper.New(), configPath, nil)
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 2)
}

func TestSaveYAMLConfigRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)

	original, err := load(viper.New(), "", []string{dir})
	require.NoError(t, err)

	original.Storage.DataDir = "people"
	original.History.Limit = 3
	require.NoError(t, SaveYAMLConfig(configPath, original))

	reloaded, err := load(viper.New(), configPath, nil)
	require.NoError(t, err)
	assert.Equal(t, "people", reloaded.Storage.DataDir)
	assert.Equal(t, 3, reloaded.History.Limit)

	// no temporary files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestValidateStorageSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		s       StorageSettings
		wantErr bool
	}{
		{"valid", StorageSettings{DataDir: "data", AppendixDir: "Appendix"}, false},
		{"empty data dir", StorageSettings{DataDir: " ", AppendixDir: "Appendix"}, true},
		{"empty appendix dir", StorageSettings{DataDir: "data"}, true},
		{"same directory", StorageSettings{DataDir: "data/", AppendixDir: "./data"}, true},
		{"negative slow query", StorageSettings{DataDir: "a", AppendixDir: "b", SlowQuery: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := validateStorageSettings(&tt.s)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
