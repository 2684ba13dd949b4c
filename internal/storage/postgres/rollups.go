package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/craft-brew/queue-ingest/internal/storage"
)

// RollupAdapter implements storage.RollupStore, sharing the main adapter's
// connection.
type RollupAdapter struct {
	db *sql.DB
}

// NewRollupAdapter creates a daily rollup adapter on the given connection.
func NewRollupAdapter(db *sql.DB) *RollupAdapter {
	return &RollupAdapter{db: db}
}

// UpsertRollup writes the rollup row for its date. Re-running the job for the
// same date replaces the aggregate values, keeping the operation idempotent.
func (a *RollupAdapter) UpsertRollup(ctx context.Context, rollup storage.DailyRollup) error {
	_, err := a.db.ExecContext(ctx, queryUpsertRollup,
		rollup.Date,
		rollup.AvgTemp,
		rollup.MinTemp,
		rollup.MaxTemp,
		rollup.AvgHumidity,
		rollup.MinHumidity,
		rollup.MaxHumidity,
		rollup.AvgPeltierPower,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert rollup for %s: %w", rollup.Date, err)
	}

	slog.Debug("[Postgres] Upserted daily rollup", "date", rollup.Date)
	return nil
}

// LatestRollupDate returns the most recent rollup date, or "" when no rollup
// exists yet.
func (a *RollupAdapter) LatestRollupDate(ctx context.Context) (string, error) {
	var date string
	err := a.db.QueryRowContext(ctx, queryLatestRollupDate).Scan(&date)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query latest rollup date: %w", err)
	}
	return date, nil
}

// ListRollups returns up to limit rollups, newest first.
func (a *RollupAdapter) ListRollups(ctx context.Context, limit int) ([]storage.DailyRollup, error) {
	rows, err := a.db.QueryContext(ctx, queryListRollups, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rollups: %w", err)
	}
	defer rows.Close()

	var rollups []storage.DailyRollup
	for rows.Next() {
		var r storage.DailyRollup
		if err := rows.Scan(
			&r.Date,
			&r.AvgTemp,
			&r.MinTemp,
			&r.MaxTemp,
			&r.AvgHumidity,
			&r.MinHumidity,
			&r.MaxHumidity,
			&r.AvgPeltierPower,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rollup row: %w", err)
		}
		rollups = append(rollups, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rollups: %w", err)
	}
	return rollups, nil
}
