package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/j-veylop/framescope/internal/logger"
	"github.com/j-veylop/framescope/internal/models"
)

// SetDataset stores the dataset description, replacing any previous one.
func (db *DB) SetDataset(ds *models.Dataset) error {
	if ds.Duration <= 0 {
		return fmt.Errorf("invalid dataset duration %d", ds.Duration)
	}
	createdAt := ds.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO dataset (id, name, duration, frame_rate, created_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			duration = excluded.duration,
			frame_rate = excluded.frame_rate
	`
	_, err := db.ExecContext(context.Background(), query,
		ds.Name,
		ds.Duration,
		ds.FrameRate,
		createdAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to store dataset: %w", err)
	}
	return nil
}

// GetDataset returns the dataset description, or nil if none was stored.
func (db *DB) GetDataset() (*models.Dataset, error) {
	query := `SELECT name, duration, frame_rate, created_at FROM dataset WHERE id = 1`

	var ds models.Dataset
	err := db.QueryRowContext(context.Background(), query).Scan(
		&ds.Name,
		&ds.Duration,
		&ds.FrameRate,
		&ds.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}
	return &ds, nil
}

// UpsertChannel declares a channel or updates its description and labels.
func (db *DB) UpsertChannel(spec *models.ChannelSpec) error {
	labels, err := encodeLabels(spec.Labels)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO channels (id, cardinality, aggregator, description, labels)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			cardinality = excluded.cardinality,
			aggregator = excluded.aggregator,
			description = excluded.description,
			labels = excluded.labels
	`
	_, err = db.ExecContext(context.Background(), query,
		spec.ID,
		spec.Cardinality,
		spec.Aggregator,
		nullString(spec.Description),
		labels,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert channel %s: %w", spec.ID, err)
	}
	return nil
}

// GetChannels returns all channel declarations in creation order.
func (db *DB) GetChannels() ([]models.ChannelSpec, error) {
	query := `
		SELECT id, cardinality, aggregator, description, labels, created_at
		FROM channels
		ORDER BY created_at, rowid
	`

	rows, err := db.QueryContext(context.Background(), query)
	if err != nil {
		return nil, fmt.Errorf("failed to query channels: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("failed to close rows", "error", err)
		}
	}()

	var specs []models.ChannelSpec
	for rows.Next() {
		var spec models.ChannelSpec
		var desc, labels sql.NullString

		if err := rows.Scan(&spec.ID, &spec.Cardinality, &spec.Aggregator, &desc, &labels, &spec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		spec.Description = desc.String
		if labels.Valid && labels.String != "" {
			if err := json.Unmarshal([]byte(labels.String), &spec.Labels); err != nil {
				return nil, fmt.Errorf("failed to decode labels of %s: %w", spec.ID, err)
			}
		}
		specs = append(specs, spec)
	}

	return specs, rows.Err()
}

// WriteFrames stores values for consecutive frames starting at start. NaN
// values are stored as NULL, meaning "no value". Writes are batched into
// transactions of frameBatchSize rows.
func (db *DB) WriteFrames(ctx context.Context, channelID string, start int, values []float64) error {
	for lo := 0; lo < len(values); lo += frameBatchSize {
		hi := min(lo+frameBatchSize, len(values))
		if err := db.writeFrameBatch(ctx, channelID, start+lo, values[lo:hi]); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) writeFrameBatch(ctx context.Context, channelID string, start int, values []float64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin frame write: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, sqlUpsertFrame)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare frame write: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, v := range values {
		if _, err := stmt.ExecContext(ctx, channelID, start+i, nullFloat(v)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to write frame %d of %s: %w", start+i, channelID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit frame write: %w", err)
	}
	return nil
}

// DeleteFrames removes the values of frames [f0, f1).
func (db *DB) DeleteFrames(ctx context.Context, channelID string, f0, f1 int) error {
	_, err := db.ExecContext(ctx,
		"DELETE FROM frame_values WHERE channel_id = ? AND frame >= ? AND frame < ?",
		channelID, f0, f1,
	)
	if err != nil {
		return fmt.Errorf("failed to delete frames of %s: %w", channelID, err)
	}
	return nil
}

// ReadFrames returns one value per frame in [start, end). Frames without a
// stored value read as NaN.
func (db *DB) ReadFrames(ctx context.Context, channelID string, start, end int) ([]float64, error) {
	out := make([]float64, max(end-start, 0))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(out) == 0 {
		return out, nil
	}

	query := `
		SELECT frame, value FROM frame_values
		WHERE channel_id = ? AND frame >= ? AND frame < ?
	`
	rows, err := db.QueryContext(ctx, query, channelID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to read frames of %s: %w", channelID, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var frame int
		var value sql.NullFloat64
		if err := rows.Scan(&frame, &value); err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		if value.Valid {
			out[frame-start] = value.Float64
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read frames of %s: %w", channelID, err)
	}
	return out, nil
}

// FrameSource reads one channel from the database. It satisfies
// channel.Source and is safe for concurrent use.
type FrameSource struct {
	db      *DB
	channel string
}

// Source returns the frame source of channelID.
func (db *DB) Source(channelID string) *FrameSource {
	return &FrameSource{db: db, channel: channelID}
}

// ReadRange implements channel.Source.
func (s *FrameSource) ReadRange(ctx context.Context, start, end int) ([]float64, error) {
	return s.db.ReadFrames(ctx, s.channel, start, end)
}

func encodeLabels(labels map[int]string) (sql.NullString, error) {
	if len(labels) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(labels)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode labels: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// nullString returns a sql.NullString from a string.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullFloat maps NaN to NULL.
func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
