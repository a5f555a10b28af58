package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/j-veylop/framescope/internal/models"
)

// SaveSession stores the viewport of a named session.
func (db *DB) SaveSession(s *models.ViewerSession) error {
	query := `
		INSERT INTO viewer_sessions (
			name, visible_start, visible_end, playhead,
			selection_start, selection_end, has_selection, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			visible_start = excluded.visible_start,
			visible_end = excluded.visible_end,
			playhead = excluded.playhead,
			selection_start = excluded.selection_start,
			selection_end = excluded.selection_end,
			has_selection = excluded.has_selection,
			updated_at = excluded.updated_at
	`

	updated := s.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err := db.ExecContext(context.Background(), query,
		s.Name,
		s.VisibleStart,
		s.VisibleEnd,
		s.Playhead,
		s.SelectionStart,
		s.SelectionEnd,
		s.HasSelection,
		updated.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", s.Name, err)
	}
	return nil
}

// LoadSession returns the named session, or nil if it was never saved.
func (db *DB) LoadSession(name string) (*models.ViewerSession, error) {
	query := `
		SELECT name, visible_start, visible_end, playhead,
			   selection_start, selection_end, has_selection, updated_at
		FROM viewer_sessions
		WHERE name = ?
	`

	var s models.ViewerSession
	err := db.QueryRowContext(context.Background(), query, name).Scan(
		&s.Name,
		&s.VisibleStart,
		&s.VisibleEnd,
		&s.Playhead,
		&s.SelectionStart,
		&s.SelectionEnd,
		&s.HasSelection,
		&s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", name, err)
	}
	return &s, nil
}
