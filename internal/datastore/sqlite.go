package datastore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/AlanZ-Git/HealthDatabase/internal/logger"
)

const (
	// storageExt is the file extension of entity storage files
	storageExt = ".sqlite"

	// busyTimeoutMs bounds how long a statement waits on a lock held by
	// another handle before failing with SQLITE_BUSY.
	busyTimeoutMs = 5000
)

// sqliteDSN builds the connection string for an entity file. Engine foreign
// key enforcement stays off; cascades are applied by the store itself.
func sqliteDSN(path string) string {
	return fmt.Sprintf("%s?_busy_timeout=%d&_foreign_keys=off", path, busyTimeoutMs)
}

// openSQLite opens a single-connection handle on one entity file
func openSQLite(path string, log logger.Logger, slowThreshold time.Duration, now func() time.Time) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), &gorm.Config{
		Logger:  newGormLogger(log, slowThreshold),
		NowFunc: now,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	return db, nil
}

// closeSQLite closes the pool behind a handle
func closeSQLite(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// performAutoMigration creates the record and attachment tables
func performAutoMigration(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(&VisitRecord{}, &AttachmentRecord{})
}
