package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/craft-brew/queue-ingest/internal/storage"
)

// BatchAdapter implements storage.BatchStore, sharing the main adapter's
// connection.
type BatchAdapter struct {
	db *sql.DB
}

// NewBatchAdapter creates a batch read adapter on the given connection.
func NewBatchAdapter(db *sql.DB) *BatchAdapter {
	return &BatchAdapter{db: db}
}

// GetBatch returns the authoritative batch row for activation.
func (a *BatchAdapter) GetBatch(ctx context.Context, id int64) (*storage.Batch, error) {
	var (
		batch                storage.Batch
		fermStart, fermEnd   sql.NullTime
		agingStart, agingEnd sql.NullTime
	)

	err := a.db.QueryRowContext(ctx, queryGetBatch, id).Scan(
		&batch.ID,
		&batch.Name,
		&batch.Type,
		&fermStart,
		&fermEnd,
		&agingStart,
		&agingEnd,
	)
	if err == sql.ErrNoRows {
		return nil, storage.ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query batch %d: %w", id, err)
	}

	batch.FermentationStart = timePtr(fermStart)
	batch.FermentationEnd = timePtr(fermEnd)
	batch.AgingStart = timePtr(agingStart)
	batch.AgingEnd = timePtr(agingEnd)
	return &batch, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
