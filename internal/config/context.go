// Package config assembles the runtime state shared by CLI commands.
package config

import (
	"time"

	"github.com/AlanZ-Git/HealthDatabase/internal/conf"
	"github.com/AlanZ-Git/HealthDatabase/internal/datastore"
	"github.com/AlanZ-Git/HealthDatabase/internal/errors"
	"github.com/AlanZ-Git/HealthDatabase/internal/logger"
	"github.com/AlanZ-Git/HealthDatabase/internal/observability"
)

// Context holds the overall application state: settings, the logger, the
// entity registry and, when a textfile is configured, the metrics.
type Context struct {
	Settings *conf.Settings
	Registry *datastore.Registry
	Metrics  *observability.Metrics

	logger *logger.CentralLogger
}

// NewContext sets up logging, metrics and the entity registry from settings.
// The central logger becomes the global logger.
func NewContext(settings *conf.Settings) (*Context, error) {
	if settings == nil {
		return nil, errors.Newf("settings cannot be nil").
			Component("config").
			Category(errors.CategoryConfiguration).
			Build()
	}

	logCfg := settings.Logging
	if settings.Debug {
		logCfg.DefaultLevel = string(logger.LogLevelDebug)
		if logCfg.Console != nil {
			console := *logCfg.Console
			console.Level = string(logger.LogLevelDebug)
			logCfg.Console = &console
		}
	}

	central, err := logger.NewCentralLogger(&logCfg)
	if err != nil {
		return nil, errors.New(err).
			Component("config").
			Category(errors.CategoryConfiguration).
			Context("operation", "setup_logging").
			Build()
	}
	logger.SetGlobal(central)

	ctx := &Context{
		Settings: settings,
		logger:   central,
	}

	opts := []datastore.Option{
		datastore.WithLogger(central.Module("datastore")),
		datastore.WithHistoryLimit(settings.History.Limit),
		datastore.WithSlowThreshold(time.Duration(settings.Storage.SlowQuery) * time.Millisecond),
	}

	if settings.Metrics.TextFile != "" {
		m, err := observability.NewMetrics()
		if err != nil {
			return nil, err
		}
		ctx.Metrics = m
		opts = append(opts, datastore.WithMetrics(m.Datastore))
	}

	ctx.Registry = datastore.NewRegistry(settings.Storage.DataDir, settings.Storage.AppendixDir, opts...)
	return ctx, nil
}

// Store returns the record store of one entity
func (c *Context) Store(entity string) *datastore.RecordStore {
	return c.Registry.Store(entity)
}

// Close writes the metrics textfile, if configured, and closes the log file.
// Closing a Context that was never set up does nothing.
func (c *Context) Close() error {
	if c == nil || c.Settings == nil {
		return nil
	}
	var errs []error
	if c.Metrics != nil {
		if err := c.Metrics.WriteTextfile(c.Settings.Metrics.TextFile); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.logger.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
