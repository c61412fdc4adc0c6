package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/AlanZ-Git/HealthDatabase/internal/errors"
	"github.com/AlanZ-Git/HealthDatabase/internal/logger"
	"github.com/AlanZ-Git/HealthDatabase/internal/observability/metrics"
	"github.com/AlanZ-Git/HealthDatabase/internal/securefs"
)

// RecordStore owns one entity's records and attachments. Every operation
// opens the entity's storage file, does its work and closes it again; no
// handle or transaction outlives a call.
//
// When the entity has no storage file, listing operations return empty
// results and every other operation returns ErrEntityNotFound.
type RecordStore struct {
	entity   string
	registry *Registry
	opts     options
}

// NewRecordStore returns a store for one entity without going through a
// Registry the caller keeps around.
func NewRecordStore(dataDir, appendixDir, entity string, opts ...Option) *RecordStore {
	return NewRegistry(dataDir, appendixDir, opts...).Store(entity)
}

// Entity returns the name of the entity the store is bound to
func (s *RecordStore) Entity() string {
	return s.entity
}

// Exists reports whether the entity's storage file exists
func (s *RecordStore) Exists() bool {
	return validEntityName(s.entity) && s.registry.Exists(s.entity)
}

// attachmentDir returns the entity's attachment directory
func (s *RecordStore) attachmentDir() string {
	return s.registry.AttachmentDir(s.entity)
}

// entityLogger returns the store logger carrying the entity and any trace ID in ctx
func (s *RecordStore) entityLogger(ctx context.Context) logger.Logger {
	return s.opts.log.With(logger.String("entity", s.entity)).WithContext(ctx)
}

// withDB runs fn against a fresh handle on the entity's storage file and
// closes the handle before returning. ErrEntityNotFound is returned without
// calling fn when the file does not exist.
func (s *RecordStore) withDB(ctx context.Context, operation string, fn func(db *gorm.DB) error) error {
	if !s.Exists() {
		return notFoundError(ErrEntityNotFound, "entity", s.entity)
	}

	db, err := openSQLite(s.registry.Path(s.entity), s.opts.log, s.opts.slowThreshold, s.opts.now)
	if err != nil {
		return dbError(err, operation, "entity", s.entity)
	}
	defer func() {
		if err := closeSQLite(db); err != nil {
			s.entityLogger(ctx).Warn("failed to close storage handle",
				logger.String("operation", operation),
				logger.Error(err))
		}
	}()

	return fn(db.WithContext(ctx))
}

// withFS runs fn against a sandbox rooted at the attachment directory
func (s *RecordStore) withFS(fn func(sfs *securefs.SecureFS) error) error {
	sfs, err := securefs.New(s.registry.appendixDir)
	if err != nil {
		return err
	}
	defer sfs.Close()
	return fn(sfs)
}

// boundary converts an error leaving an operation into a categorized one,
// logs it and records the outcome.
func (s *RecordStore) boundary(ctx context.Context, operation string, start time.Time, err error) error {
	elapsed := time.Since(start)
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
		if !isCategorized(err) {
			err = dbError(err, operation, "entity", s.entity)
		}
		s.logFailure(ctx, operation, elapsed, err)
	}
	s.opts.metrics.RecordOperation(operation, status, elapsed.Seconds())
	return err
}

func (s *RecordStore) logFailure(ctx context.Context, operation string, elapsed time.Duration, err error) {
	log := s.entityLogger(ctx).With(logger.Duration("elapsed", elapsed))
	switch {
	case errors.IsNotFound(err):
		log.Debug("operation target not found",
			logger.String("operation", operation),
			logger.Error(err))
	case errors.IsValidation(err):
		log.Warn("operation rejected",
			logger.String("operation", operation),
			logger.Error(err))
	default:
		log.Error("operation failed",
			logger.String("operation", operation),
			logger.Error(err))
	}
}
