// Package migration applies the versioned SQL schema with golang-migrate.
// Migrations are read from the embedded migrations.FS unless a directory is given.
package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/invoicing/backend/migrations"
	"go.uber.org/zap"
)

// Migrator applies schema migrations to a PostgreSQL database
type Migrator struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// Option configures the migration source
type Option func(*options)

type options struct {
	source fs.FS
	table  string
}

// WithDirectory reads migrations from a directory on disk instead of the
// embedded set
func WithDirectory(dir string) Option {
	return func(o *options) {
		o.source = os.DirFS(dir)
	}
}

// WithSource reads migrations from an arbitrary file system
func WithSource(fsys fs.FS) Option {
	return func(o *options) {
		o.source = fsys
	}
}

// WithMigrationsTable overrides the schema_migrations bookkeeping table
func WithMigrationsTable(table string) Option {
	return func(o *options) {
		o.table = table
	}
}

// New creates a Migrator over an open database handle
func New(db *sql.DB, logger *zap.Logger, opts ...Option) (*Migrator, error) {
	o := options{source: migrations.FS}
	for _, opt := range opts {
		opt(&o)
	}

	src, err := iofs.New(o.source, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: o.table})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return &Migrator{migrate: m, logger: logger}, nil
}

// Up runs all pending migrations
func (m *Migrator) Up() error {
	m.logger.Info("Running migrations up")
	if err := m.apply("up", m.migrate.Up); err != nil {
		return err
	}
	return m.logVersion("Migrations completed")
}

// Down rolls back all migrations
func (m *Migrator) Down() error {
	m.logger.Info("Running migrations down")
	return m.apply("down", m.migrate.Down)
}

// Steps applies n migrations (positive = up, negative = down)
func (m *Migrator) Steps(n int) error {
	m.logger.Info("Running migration steps", zap.Int("steps", n))
	if err := m.apply("steps", func() error { return m.migrate.Steps(n) }); err != nil {
		return err
	}
	return m.logVersion("Migration steps completed")
}

// GoTo migrates up or down to a specific version
func (m *Migrator) GoTo(version uint) error {
	m.logger.Info("Migrating to version", zap.Uint("target_version", version))
	return m.apply(fmt.Sprintf("to version %d", version), func() error { return m.migrate.Migrate(version) })
}

// apply runs fn and treats ErrNoChange as success
func (m *Migrator) apply(name string, fn func() error) error {
	err := fn()
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("No migrations to apply", zap.String("direction", name))
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration %s failed: %w", name, err)
	}
	return nil
}

func (m *Migrator) logVersion(msg string) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	m.logger.Info(msg, zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// Version returns the current migration version. A database without any
// applied migration reports version 0.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Force sets the migration version without running migrations.
// It is meant for clearing a dirty state after a failed migration was fixed by hand.
func (m *Migrator) Force(version int) error {
	m.logger.Warn("Forcing migration version", zap.Int("version", version))
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	return nil
}

// Drop drops every object in the database
func (m *Migrator) Drop() error {
	m.logger.Warn("Dropping database - all data will be lost")
	if err := m.migrate.Drop(); err != nil {
		return fmt.Errorf("failed to drop database: %w", err)
	}
	return nil
}

// Close releases the source and database handles
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	return errors.Join(sourceErr, dbErr)
}
