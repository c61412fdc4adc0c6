package datastore

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/AlanZ-Git/HealthDatabase/internal/logger"
)

// stepClock returns a strictly increasing time on every call
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// newTestRegistry returns a registry over fresh directories in t.TempDir()
func newTestRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	base := t.TempDir()
	defaults := []Option{
		WithLogger(logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, nil)),
		WithClock(newStepClock().Now),
	}
	return NewRegistry(filepath.Join(base, "data"), filepath.Join(base, "Appendix"), append(defaults, opts...)...)
}

// newTestStore creates the entity and returns its store
func newTestStore(t *testing.T, name string, opts ...Option) (*Registry, *RecordStore) {
	t.Helper()
	reg := newTestRegistry(t, opts...)
	require.NoError(t, reg.Create(name))
	return reg, reg.Store(name)
}

// writeSource creates a source file outside the store directories
func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// rawDB opens an entity file directly for tests that corrupt state on purpose
func rawDB(t *testing.T, reg *Registry, name string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(reg.Path(name)), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
