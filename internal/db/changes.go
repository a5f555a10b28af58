package db

import (
	"context"
	"fmt"

	"github.com/j-veylop/framescope/internal/models"
)

// LatestChangeID returns the id of the newest change log row, or 0.
func (db *DB) LatestChangeID(ctx context.Context) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(id), 0) FROM frame_changes").Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to read latest change id: %w", err)
	}
	return id, nil
}

// ChangesSince returns the frames changed after afterID, coalesced into
// ranges, together with the id of the last row read. At most limit rows are
// consumed per call; callers loop until the returned id stops advancing.
func (db *DB) ChangesSince(ctx context.Context, afterID int64, limit int) ([]models.ChangeRange, int64, error) {
	query := `
		SELECT id, channel_id, frame FROM frame_changes
		WHERE id > ?
		ORDER BY id
		LIMIT ?
	`
	rows, err := db.QueryContext(ctx, query, afterID, limit)
	if err != nil {
		return nil, afterID, fmt.Errorf("failed to query frame changes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	last := afterID
	var changes []models.FrameChange
	for rows.Next() {
		var c models.FrameChange
		if err := rows.Scan(&last, &c.Channel, &c.Frame); err != nil {
			return nil, afterID, fmt.Errorf("failed to scan frame change: %w", err)
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, afterID, fmt.Errorf("failed to read frame changes: %w", err)
	}

	return models.CoalesceChanges(changes), last, nil
}

// PruneChanges deletes change log rows up to and including throughID.
func (db *DB) PruneChanges(ctx context.Context, throughID int64) (int64, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM frame_changes WHERE id <= ?", throughID)
	if err != nil {
		return 0, fmt.Errorf("failed to prune frame changes: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
