// Package db manages the annotation database: dataset metadata, channel
// declarations, per-frame values with their change log, and viewer sessions.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	// Import modernc.org/sqlite as a blank import to register the driver
	_ "modernc.org/sqlite"
)

// DB wraps the SQL database connection with application-specific methods.
type DB struct {
	*sql.DB
	path string
}

// New creates a new database connection and initializes the schema.
func New(path string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.PingContext(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{
		DB:   sqlDB,
		path: path,
	}

	if err := db.configure(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	if err := db.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if err := db.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return db, nil
}

// dsn applies per-connection pragmas through the driver so that every pooled
// connection gets them, not just the first one.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "synchronous(NORMAL)")
	return "file:" + path + "?" + q.Encode()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// configure sets database-wide pragmas.
func (db *DB) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA cache_size=-64000", // 64MB cache
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(context.Background(), pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}

func (db *DB) createSchema() error {
	if err := db.createDatasetTable(); err != nil {
		return err
	}
	if err := db.createChannelsTable(); err != nil {
		return err
	}
	if err := db.createFrameTables(); err != nil {
		return err
	}
	return db.createSessionsTable()
}

func (db *DB) createDatasetTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS dataset (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		name TEXT NOT NULL DEFAULT '',
		duration INTEGER NOT NULL CHECK (duration > 0),
		frame_rate REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.ExecContext(context.Background(), query)
	return err
}

func (db *DB) createChannelsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS channels (
		id TEXT PRIMARY KEY,
		cardinality TEXT NOT NULL,
		aggregator TEXT NOT NULL,
		description TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.ExecContext(context.Background(), query)
	return err
}

// createFrameTables creates the per-frame value table and the change log
// that triggers keep in sync with every insert, update and delete.
func (db *DB) createFrameTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS frame_values (
		channel_id TEXT NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
		frame INTEGER NOT NULL CHECK (frame >= 0),
		value REAL,
		PRIMARY KEY (channel_id, frame)
	) WITHOUT ROWID;

	CREATE TABLE IF NOT EXISTS frame_changes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		channel_id TEXT NOT NULL,
		frame INTEGER NOT NULL,
		changed_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TRIGGER IF NOT EXISTS trg_frame_values_insert AFTER INSERT ON frame_values
	BEGIN
		INSERT INTO frame_changes (channel_id, frame) VALUES (NEW.channel_id, NEW.frame);
	END;

	CREATE TRIGGER IF NOT EXISTS trg_frame_values_update AFTER UPDATE ON frame_values
	BEGIN
		INSERT INTO frame_changes (channel_id, frame) VALUES (NEW.channel_id, NEW.frame);
		INSERT INTO frame_changes (channel_id, frame)
			SELECT OLD.channel_id, OLD.frame
			WHERE OLD.channel_id != NEW.channel_id OR OLD.frame != NEW.frame;
	END;

	CREATE TRIGGER IF NOT EXISTS trg_frame_values_delete AFTER DELETE ON frame_values
	BEGIN
		INSERT INTO frame_changes (channel_id, frame) VALUES (OLD.channel_id, OLD.frame);
	END;
	`
	_, err := db.ExecContext(context.Background(), query)
	return err
}

func (db *DB) createSessionsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS viewer_sessions (
		name TEXT PRIMARY KEY,
		visible_start REAL NOT NULL,
		visible_end REAL NOT NULL,
		playhead INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.ExecContext(context.Background(), query)
	return err
}

// Close closes the database connection gracefully.
func (db *DB) Close() error {
	// Checkpoint WAL before closing
	_, _ = db.ExecContext(context.Background(), "PRAGMA wal_checkpoint(TRUNCATE)")
	return db.DB.Close()
}

// Vacuum performs database maintenance to reclaim space.
func (db *DB) Vacuum() error {
	_, err := db.ExecContext(context.Background(), "VACUUM")
	return err
}
