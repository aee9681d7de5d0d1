package testutil

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/patternlens-backend/internal/data/db"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

var (
	errMissingDSN    = errors.New("missing TEST_POSTGRES_DSN")
	errMissingVector = errors.New("pgvector extension unavailable")
)

var (
	dbOnce sync.Once
	gdb    *gorm.DB
	dbErr  error

	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB opens and migrates the test database once per process. Tests are skipped when
// TEST_POSTGRES_DSN is unset or the server has no pgvector.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dbOnce.Do(func() {
		dsn := os.Getenv("TEST_POSTGRES_DSN")
		if dsn == "" {
			dbErr = errMissingDSN
			return
		}
		var err error
		gdb, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
		})
		if err != nil {
			dbErr = err
			return
		}
		if err := db.EnableExtensions(gdb); err != nil {
			if strings.Contains(err.Error(), "vector") {
				dbErr = fmt.Errorf("%w: %v", errMissingVector, err)
				return
			}
			dbErr = err
			return
		}
		dbErr = db.AutoMigrateAll(gdb)
	})

	switch {
	case errors.Is(dbErr, errMissingDSN):
		tb.Skip("set TEST_POSTGRES_DSN to run repo integration tests")
	case errors.Is(dbErr, errMissingVector):
		tb.Skipf("report search needs pgvector: %v", dbErr)
	}
	if dbErr != nil {
		tb.Fatalf("failed to init test db: %v", dbErr)
	}
	return gdb
}

// Tx wraps one test in a transaction that is rolled back on cleanup, so report
// and attribute fixtures never leak between tests.
func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
