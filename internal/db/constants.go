package db

const (
	// timestampLayout is how timestamps are written so that SQLite date
	// functions can read them back.
	timestampLayout = "2006-01-02 15:04:05"

	// frameBatchSize bounds the rows written per transaction.
	frameBatchSize = 10000

	// sqlUpsertFrame skips no-op updates so unchanged values do not reach the
	// change log.
	sqlUpsertFrame = `
		INSERT INTO frame_values (channel_id, frame, value) VALUES (?, ?, ?)
		ON CONFLICT (channel_id, frame) DO UPDATE SET value = excluded.value
		WHERE frame_values.value IS NOT excluded.value
	`
)
