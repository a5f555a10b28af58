package db

import (
	"context"
	"fmt"
)

// migrations upgrade databases created by older builds. Entry i moves the
// schema from user_version i to i+1.
var migrations = []string{
	// Selections were added to persisted sessions.
	`ALTER TABLE viewer_sessions ADD COLUMN selection_start INTEGER NOT NULL DEFAULT 0;
	 ALTER TABLE viewer_sessions ADD COLUMN selection_end INTEGER NOT NULL DEFAULT 0;
	 ALTER TABLE viewer_sessions ADD COLUMN has_selection INTEGER NOT NULL DEFAULT 0;`,
	// Categorical label names.
	`ALTER TABLE channels ADD COLUMN labels TEXT;`,
	// Change log lookups by channel when pruning.
	`CREATE INDEX IF NOT EXISTS idx_frame_changes_channel ON frame_changes(channel_id, id);`,
}

// SchemaVersion is the user_version of a fully migrated database.
func SchemaVersion() int {
	return len(migrations)
}

// migrate applies every migration newer than the database's user_version,
// each in its own transaction.
func (db *DB) migrate() error {
	ctx := context.Background()

	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for v := version; v < len(migrations); v++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", v+1, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[v]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to apply migration %d: %w", v+1, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", v+1, err)
		}
	}

	return nil
}
