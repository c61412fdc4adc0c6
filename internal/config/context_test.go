package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlanZ-Git/HealthDatabase/internal/conf"
	"github.com/AlanZ-Git/HealthDatabase/internal/datastore"
	"github.com/AlanZ-Git/HealthDatabase/internal/errors"
	"github.com/AlanZ-Git/HealthDatabase/internal/logger"
)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	dir := t.TempDir()
	return &conf.Settings{
		Storage: conf.StorageSettings{
			DataDir:     filepath.Join(dir, "data"),
			AppendixDir: filepath.Join(dir, "Appendix"),
		},
		History: conf.HistorySettings{Limit: 2},
		Logging: logger.LoggingConfig{
			DefaultLevel: "error",
			Console:      &logger.ConsoleOutput{Enabled: false},
		},
	}
}

func TestNewContextWiresRegistry(t *testing.T) {
	settings := testSettings(t)

	app, err := NewContext(settings)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	assert.Nil(t, app.Metrics, "metrics stay off without a textfile")
	require.NoError(t, app.Registry.Create("Alice"))
	assert.FileExists(t, filepath.Join(settings.Storage.DataDir, "Alice.sqlite"))

	store := app.Store("Alice")
	ctx := context.Background()
	for _, loc := range []string{"A", "B", "C"} {
		_, err := store.CreateRecord(ctx, datastore.RecordInput{Date: "2024-01-15", Location: loc})
		require.NoError(t, err)
	}

	values, err := store.DistinctValues(ctx, datastore.HistoryLocation, nil, 0)
	require.NoError(t, err)
	assert.Len(t, values, 2, "history limit comes from settings")
}

func TestContextCloseWritesMetrics(t *testing.T) {
	t.Cleanup(errors.ClearErrorHooks)

	settings := testSettings(t)
	settings.Metrics.TextFile = filepath.Join(t.TempDir(), "healthdb.prom")

	app, err := NewContext(settings)
	require.NoError(t, err)
	require.NotNil(t, app.Metrics)

	require.NoError(t, app.Registry.Create("Alice"))
	require.NoError(t, app.Close())

	data, err := os.ReadFile(settings.Metrics.TextFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `operation="entity_create"`)
}

func TestNewContextDebugDoesNotMutateSettings(t *testing.T) {
	settings := testSettings(t)
	settings.Debug = true
	settings.Logging.Console = &logger.ConsoleOutput{Enabled: false, Level: "error"}

	app, err := NewContext(settings)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	assert.Equal(t, "error", settings.Logging.DefaultLevel)
	assert.Equal(t, "error", settings.Logging.Console.Level)
}

func TestNewContextRejectsNilSettings(t *testing.T) {
	_, err := NewContext(nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestCloseUninitializedContext(t *testing.T) {
	var app Context
	assert.NoError(t, app.Close())
}
