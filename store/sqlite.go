package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/split73/SaaSoft-test/util"
	_ "modernc.org/sqlite"
)

type sqliteStorage struct {
	db     *sql.DB
	closed atomic.Bool
}

func (s *sqliteStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	if s.closed.Load() {
		return "", false, ErrStorageUnavailable
	}

	query := `SELECT value FROM local_storage WHERE key = ?`

	var value string
	err := util.Retry(ctx, defaultRetryConfig, func() error {
		return s.db.QueryRowContext(ctx, query, key).Scan(&value)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read item %q: %w", key, err)
	}

	return value, true, nil
}

func (s *sqliteStorage) SetItem(ctx context.Context, key, value string) error {
	if s.closed.Load() {
		return ErrStorageUnavailable
	}

	query := `INSERT INTO local_storage (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	err := util.Retry(ctx, defaultRetryConfig, func() error {
		_, execErr := s.db.ExecContext(ctx, query, key, value, time.Now().UnixMilli())
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to write item %q: %w", key, err)
	}
	return nil
}

func (s *sqliteStorage) HealthCheck(ctx context.Context) error {
	if s.closed.Load() {
		return ErrStorageUnavailable
	}
	return s.db.PingContext(ctx)
}

// Close implements the Store interface
func (s *sqliteStorage) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// StoreOptions configures store creation
type StoreOptions struct {
	Name     string
	BasePath string
	Config   DatabaseConfig
}

// DefaultStoreOptions returns sensible defaults for store creation
func DefaultStoreOptions(name string) StoreOptions {
	return StoreOptions{
		Name:   name,
		Config: DefaultDatabaseConfig(),
	}
}

// SQLiteStorage is a LocalStorage persisted to a SQLite file
type SQLiteStorage interface {
	LocalStorage
	HealthChecker
	Store
}

func NewSQLiteStorage(opts StoreOptions) (SQLiteStorage, error) {
	db, err := createSQLiteDatabaseWithPath(opts.Name, opts.BasePath, opts.Config)
	if err != nil {
		return nil, fmt.Errorf("could not create sqlite db: %w", err)
	}

	if err := createLocalStorageTable(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create local_storage table: %w", err)
	}

	return &sqliteStorage{db: db}, nil
}

func createLocalStorageTable(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS local_storage (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);`

	_, err := db.Exec(query)
	return err
}

func createSQLiteDatabaseWithPath(name, basePath string, config DatabaseConfig) (*sql.DB, error) {
	var dir string
	if basePath != "" {
		dir = filepath.Join(basePath, ".data")
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("could not get working directory: %w", err)
		}
		dir = filepath.Join(wd, ".data")
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("could not create data dir: %w", err)
	}

	file := filepath.Join(dir, fmt.Sprintf("%s.db", name))

	dsn := fmt.Sprintf("file:%s", file)
	if config.EnableWAL {
		// https://www.sqlite.org/pragma.html#pragma_busy_timeout
		// https://www.sqlite.org/pragma.html#pragma_journal_mode
		// https://www.sqlite.org/pragma.html#pragma_synchronous
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open sqlite db: %w", err)
	}

	// Single connection to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	return db, nil
}

// isSQLiteBusyError checks if an error is a SQLite BUSY error that should be retried
func isSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	errorStr := err.Error()
	return strings.Contains(errorStr, "database is locked") ||
		strings.Contains(errorStr, "SQLITE_BUSY")
}

var defaultRetryConfig = util.RetryConfig{
	MaxRetries:      5,
	BaseDelay:       10 * time.Millisecond,
	MaxDelay:        1 * time.Second,
	ShouldRetryFunc: isSQLiteBusyError,
}
