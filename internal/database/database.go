package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

const busyTimeoutMs = 5000

// DB is the relational store: stays, reservations, per-day occupancy and the geo outbox.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

// NewDB opens (and migrates) the SQLite database at path.
// Every transaction starts with BEGIN IMMEDIATE, so writers are serialized by SQLite itself.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	inMemory := path == ":memory:" || strings.HasPrefix(path, "file::memory:")

	if !inMemory {
		// Создаем директорию для БД, если её нет
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	sqlDB, err := sql.Open("sqlite3", buildDSN(path, inMemory))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if inMemory {
		// each connection to :memory: is a separate database
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	dbLogger := logger.With().Str("component", "database").Logger()
	dbLogger.Info().Str("path", path).Msg("database initialized")

	return &DB{DB: sqlDB, path: path, logger: &dbLogger}, nil
}

func buildDSN(path string, inMemory bool) string {
	params := fmt.Sprintf("_busy_timeout=%d&_txlock=immediate&_foreign_keys=on", busyTimeoutMs)
	if !inMemory {
		params += "&_journal_mode=WAL"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + params
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS stays (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            host_id TEXT NOT NULL,
            name TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            address TEXT NOT NULL,
            guest_number INTEGER NOT NULL CHECK (guest_number > 0),
            latitude REAL NOT NULL,
            longitude REAL NOT NULL,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS stay_images (
            stay_id INTEGER NOT NULL REFERENCES stays(id) ON DELETE CASCADE,
            position INTEGER NOT NULL,
            url TEXT NOT NULL,
            PRIMARY KEY (stay_id, position)
        )`,
		`CREATE TABLE IF NOT EXISTS reservations (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            guest_id TEXT NOT NULL,
            stay_id INTEGER NOT NULL REFERENCES stays(id),
            checkin_date TEXT NOT NULL,
            checkout_date TEXT NOT NULL,
            created_at DATETIME NOT NULL,
            CHECK (checkin_date < checkout_date)
        )`,
		// Одна строка на каждую занятую ночь; первичный ключ запрещает двойную бронь
		`CREATE TABLE IF NOT EXISTS stay_reserved_dates (
            stay_id INTEGER NOT NULL REFERENCES stays(id),
            date TEXT NOT NULL,
            PRIMARY KEY (stay_id, date)
        )`,
		`CREATE TABLE IF NOT EXISTS geo_sync_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            stay_id INTEGER NOT NULL,
            payload TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_stays_host_id ON stays(host_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_guest_id ON reservations(guest_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_stay_checkout ON reservations(stay_id, checkout_date)`,
		`CREATE INDEX IF NOT EXISTS idx_geo_sync_queue_status ON geo_sync_queue(status, next_retry_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// Path returns the path the database was opened with.
func (db *DB) Path() string {
	return db.path
}

// Snapshot writes a consistent copy of the database to dest using VACUUM INTO.
func (db *DB) Snapshot(ctx context.Context, dest string) error {
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return fmt.Errorf("failed to snapshot database: %w", err)
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
