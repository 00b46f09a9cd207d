package database

import (
	"context"
	"fmt"
	"sync/atomic"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDbCounter uint64

// NewTestDatabase opens a private in-memory sqlite database and applies all
// migrations, so handler suites run without a postgres server. Each call
// gets its own database.
func NewTestDatabase() (*gorm.DB, error) {
	id := atomic.AddUint64(&testDbCounter, 1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared&_busy_timeout=5000", id)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	// sqlite locks the whole database on write; one connection keeps
	// concurrent test writers from tripping over SQLITE_BUSY
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := Migrations().Migrate(context.Background(), db); err != nil {
		return nil, err
	}
	return db, nil
}
