package datastore

import (
	"time"

	gormlogger "gorm.io/gorm/logger"

	"github.com/AlanZ-Git/HealthDatabase/internal/logger"
)

// DefaultSlowQueryThreshold defines the duration after which a statement is
// logged as slow. Every statement runs against a local file, so anything
// near this is worth a warning.
const DefaultSlowQueryThreshold = 200 * time.Millisecond

// GetLogger returns the datastore package logger scoped to the datastore module.
// Fetched on each call so it follows the current central logger.
func GetLogger() logger.Logger {
	return logger.Global().Module(componentName)
}

// newGormLogger routes GORM statement logging through the datastore logger
func newGormLogger(log logger.Logger, slowThreshold time.Duration) gormlogger.Interface {
	return logger.NewGormLoggerAdapter(log.Module("sql"), slowThreshold)
}
