package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/craft-brew/queue-ingest/internal/storage"
	"github.com/shopspring/decimal"
)

// ReadingExists reports whether a reading is already persisted for the
// timestamp. This backs the documented existence check in the telemetry path;
// the recorded_at primary key remains the authoritative dedup guard.
func (a *Adapter) ReadingExists(ctx context.Context, recordedAt time.Time) (bool, error) {
	var exists bool
	if err := a.stmtReadingExists.QueryRowContext(ctx, recordedAt).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check reading existence: %w", err)
	}
	return exists, nil
}

// InsertReading appends one sample to the time series.
// Returns storage.ErrDuplicateReading when the timestamp was already persisted.
func (a *Adapter) InsertReading(ctx context.Context, reading storage.Reading) error {
	result, err := a.stmtInsertReading.ExecContext(ctx,
		reading.RecordedAt,
		reading.Temperature,
		nullFloat(reading.Humidity),
		nullFloat(reading.TargetTemp),
		reading.PeltierPower,
		nullInt(reading.BatchID),
	)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check reading insert: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrDuplicateReading
	}

	slog.Debug("[Postgres] Inserted reading",
		"recorded_at", reading.RecordedAt,
		"temperature", reading.Temperature)
	return nil
}

// AggregateRange computes min/avg/max over readings in [start, end).
// Returns nil when the range holds no readings.
func (a *Adapter) AggregateRange(ctx context.Context, start, end time.Time) (*storage.DayAggregate, error) {
	var (
		avgTemp sql.NullString
		minTemp, maxTemp,
		avgHumidity, minHumidity, maxHumidity,
		avgPower decimal.Decimal
	)

	err := a.db.QueryRowContext(ctx, queryAggregateRange, start, end).Scan(
		&avgTemp,
		&minTemp,
		&maxTemp,
		&avgHumidity,
		&minHumidity,
		&maxHumidity,
		&avgPower,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate readings: %w", err)
	}

	// NULL avg_temp means the range was empty: absence of data is not a zero.
	if !avgTemp.Valid {
		return nil, nil
	}

	avg, err := decimal.NewFromString(avgTemp.String)
	if err != nil {
		return nil, fmt.Errorf("failed to parse avg temperature %q: %w", avgTemp.String, err)
	}

	return &storage.DayAggregate{
		AvgTemp:         avg,
		MinTemp:         minTemp,
		MaxTemp:         maxTemp,
		AvgHumidity:     avgHumidity,
		MinHumidity:     minHumidity,
		MaxHumidity:     maxHumidity,
		AvgPeltierPower: avgPower,
	}, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
