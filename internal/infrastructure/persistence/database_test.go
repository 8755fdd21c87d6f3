package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/invoicing/backend/internal/infrastructure/persistence/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newPingMonitoredDatabase(t *testing.T) (*Database, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	return &Database{DB: db}, mock
}

func TestDatabase_Ping(t *testing.T) {
	t.Run("healthy connection", func(t *testing.T) {
		db, mock := newPingMonitoredDatabase(t)
		mock.ExpectPing()

		assert.NoError(t, db.Ping(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ping failure is wrapped", func(t *testing.T) {
		db, mock := newPingMonitoredDatabase(t)
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		err := db.Ping(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to ping database")
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestDatabase_Stats(t *testing.T) {
	m := testdb.NewMock(t)
	db := &Database{DB: m.DB}

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.OpenConnections, 0)
	assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
}

func TestDatabase_Close(t *testing.T) {
	m := testdb.NewMock(t)
	m.Mock.ExpectClose()

	db := &Database{DB: m.DB}
	assert.NoError(t, db.Close())
}
