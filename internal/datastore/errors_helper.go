package datastore

import (
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/AlanZ-Git/HealthDatabase/internal/errors"
)

const componentName = "datastore"

// Sentinel errors. Operations wrap them in categorized errors, so callers
// match with errors.Is.
var (
	ErrEntityNotFound     = errors.NewStd("entity not found")
	ErrEntityExists       = errors.NewStd("entity already exists")
	ErrInvalidEntityName  = errors.NewStd("invalid entity name")
	ErrRecordNotFound     = errors.NewStd("record not found")
	ErrAttachmentNotFound = errors.NewStd("attachment not found")
	ErrSourceMissing      = errors.NewStd("source file does not exist")
	ErrDateRequired       = errors.NewStd("date is required")
	ErrInvalidDate        = errors.NewStd("date must be formatted as YYYY-MM-DD")
	ErrInvalidField       = errors.NewStd("invalid history field")
)

// dbError creates a properly categorized database error with context
func dbError(err error, operation string, context ...any) error {
	builder := errors.New(err).
		Component(componentName).
		Category(errors.CategoryDatabase).
		Context("operation", operation)

	if code := sqliteCode(err); code != "" {
		builder = builder.Context("sqlite_code", code)
		if code == sqlite3.ErrBusy.Error() || code == sqlite3.ErrLocked.Error() {
			builder = builder.Category(errors.CategoryState).Priority(errors.PriorityHigh)
		}
	}

	return withContext(builder, context).Build()
}

// validationError wraps a sentinel with the offending field and value
func validationError(sentinel error, field string, value any) error {
	return errors.New(sentinel).
		Component(componentName).
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", fmt.Sprintf("%v", value)).
		Build()
}

// notFoundError creates a not found error (low priority, not shown to users)
func notFoundError(sentinel error, resource string, identifier any) error {
	return errors.New(sentinel).
		Component(componentName).
		Category(errors.CategoryNotFound).
		Priority(errors.PriorityLow).
		Context("resource", resource).
		Context("identifier", fmt.Sprintf("%v", identifier)).
		Build()
}

// conflictError creates a conflict error for things that already exist
func conflictError(sentinel error, operation string, context ...any) error {
	builder := errors.New(sentinel).
		Component(componentName).
		Category(errors.CategoryConflict).
		Priority(errors.PriorityMedium).
		Context("operation", operation)

	return withContext(builder, context).Build()
}

// fileError creates an attachment file error
func fileError(err error, operation, path string) error {
	return errors.New(err).
		Component(componentName).
		Category(errors.CategoryAttachment).
		Context("operation", operation).
		FileContext(path, 0).
		Build()
}

func withContext(builder *errors.ErrorBuilder, context []any) *errors.ErrorBuilder {
	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}
	return builder
}

// sqliteCode returns the SQLite primary result code of err, or "" when err
// did not come from the engine.
func sqliteCode(err error) string {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code.Error()
	}
	return ""
}

// isCategorized reports whether err was already built by this package,
// so operation boundaries do not wrap it twice.
func isCategorized(err error) bool {
	var ee *errors.EnhancedError
	return errors.As(err, &ee) && strings.EqualFold(ee.GetComponent(), componentName)
}
