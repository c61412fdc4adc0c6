package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/AlanZ-Git/HealthDatabase/internal/observability/metrics"
)

// DistinctValues returns up to limit distinct non-blank values of field,
// most recently used first. A value's recency is the latest updated time of
// the records carrying it, ties going to the higher record identity.
//
// For HistorySubUnit and HistoryResponsibleParty a non-nil scope restricts
// the values to records whose location equals the scope. A scope that is
// blank after trimming yields no values at all: a dependent field offers no
// suggestions until its location is filled in. The scope is ignored for
// HistoryLocation. A non-positive limit uses the configured default.
func (s *RecordStore) DistinctValues(ctx context.Context, field HistoryField, scope *string, limit int) (values []string, err error) {
	start := time.Now()
	defer func() { err = s.boundary(ctx, metrics.OpHistoryQuery, start, err) }()

	column, scoped, ok := field.column()
	if !ok {
		return nil, validationError(ErrInvalidField, "field", field)
	}
	if limit <= 0 {
		limit = s.opts.historyLimit
	}

	values = []string{}

	var location string
	if scoped && scope != nil {
		location = normalizeText(*scope)
		if location == "" {
			return values, nil
		}
	}

	if !s.Exists() {
		return values, nil
	}

	err = s.withDB(ctx, metrics.OpHistoryQuery, func(db *gorm.DB) error {
		q := db.Model(&VisitRecord{}).
			Select(column).
			Where(column + " IS NOT NULL AND TRIM(" + column + ") <> ''")
		if location != "" {
			q = q.Where("hospital = ?", location)
		}
		err := q.Group(column).
			Order("MAX(updated_at) DESC, MAX(id) DESC").
			Limit(limit).
			Scan(&values).Error
		if err != nil {
			return dbError(err, "distinct_values", "field", field)
		}
		return nil
	})
	return values, err
}
