package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nilomr/majorvocal/internal/conf"
	"github.com/nilomr/majorvocal/internal/logger"
)

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// NewSQLiteStore returns an unopened store for settings.Output.SQLite.
func NewSQLiteStore(settings *conf.Settings) *SQLiteStore {
	return &SQLiteStore{DataStore: DataStore{Logger: logger.Global().Module("datastore")}, Settings: settings}
}

func validateSQLiteConfig(settings *conf.Settings) error {
	if settings.Output.SQLite.Path == "" {
		return dbError(fmt.Errorf("sqlite path must be set"), "validate_sqlite_config")
	}
	return nil
}

// Open sets up the SQLite database connection, creating the database
// directory when needed.
func (store *SQLiteStore) Open() error {
	if err := validateSQLiteConfig(store.Settings); err != nil {
		return err
	}

	path := store.Settings.Output.SQLite.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return dbError(fmt.Errorf("failed to create database directory: %w", err), "open_sqlite")
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), store.gormConfig())
	if err != nil {
		return dbError(fmt.Errorf("failed to open SQLite database: %w", err), "open_sqlite")
	}

	store.DB = db
	return performAutoMigration(db, store.logger(), "SQLite", path)
}

// Close closes the SQLite database connection.
func (store *SQLiteStore) Close() error {
	return closeDB(store.DB)
}
