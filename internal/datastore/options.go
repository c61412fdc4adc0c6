package datastore

import (
	"time"

	"github.com/AlanZ-Git/HealthDatabase/internal/logger"
)

// DefaultHistoryLimit is the number of suggestions DistinctValues returns
// when the caller passes a non-positive limit.
const DefaultHistoryLimit = 5

// options holds the settings shared by a Registry and the stores it hands out
type options struct {
	log           logger.Logger
	metrics       *Metrics
	now           func() time.Time
	historyLimit  int
	slowThreshold time.Duration
}

// Option configures a Registry or RecordStore
type Option func(*options)

// WithLogger sets the logger. The default is the datastore module of the
// global logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMetrics enables operation metrics
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock replaces the timestamp source used for created/updated times
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithHistoryLimit sets the default DistinctValues limit
func WithHistoryLimit(limit int) Option {
	return func(o *options) {
		if limit > 0 {
			o.historyLimit = limit
		}
	}
}

// WithSlowThreshold sets the slow statement warning threshold; zero disables it
func WithSlowThreshold(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.slowThreshold = d
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		now:           time.Now,
		historyLimit:  DefaultHistoryLimit,
		slowThreshold: DefaultSlowQueryThreshold,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = GetLogger()
	}
	now := o.now
	o.now = func() time.Time { return now().UTC() }
	return o
}
