// Package testdb opens throwaway databases for repository and service tests:
// in-memory SQLite with the production indexes, sqlmock behind the postgres
// dialector, and (with the integration build tag) a PostgreSQL container.
package testdb

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Indexes AutoMigrate cannot express; migrations/ creates the same ones on PostgreSQL
var sqliteIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_tenant_number ON invoices(tenant_id, invoice_number)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_tenant_reference ON payments(tenant_id, payment_reference) WHERE payment_reference IS NOT NULL`,
}

// NewSQLite opens a private in-memory SQLite database with every invoicing table.
// The pool is limited to one connection, so concurrent transactions queue
// behind each other the way row locks serialize them on PostgreSQL.
func NewSQLite(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err, "Failed to open SQLite database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...), "Failed to migrate SQLite schema")
	for _, stmt := range sqliteIndexes {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

// Mock wraps a GORM connection whose SQL is asserted with sqlmock
type Mock struct {
	DB    *gorm.DB
	Mock  sqlmock.Sqlmock
	SqlDB *sql.DB
}

// NewMock opens a GORM connection over sqlmock using the PostgreSQL dialect.
// Unmet expectations fail the test on cleanup.
func NewMock(t *testing.T) *Mock {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create sqlmock")

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       sqlDB,
		DriverName: "postgres",
	}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err, "Failed to open GORM connection")

	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet(), "Unmet database expectations")
		_ = sqlDB.Close()
	})
	return &Mock{DB: db, Mock: mock, SqlDB: sqlDB}
}
