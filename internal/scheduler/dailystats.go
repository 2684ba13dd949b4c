package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/craft-brew/queue-ingest/internal/storage"
)

const (
	dateLayout = "2006-01-02"

	// How far back the startup recovery reaches when no rollup exists yet.
	recoveryFallbackDays = 7
)

// DailyStats generates one durable summary row per calendar day from the raw
// readings table. Day boundaries follow the configured timezone.
type DailyStats struct {
	readings storage.ReadingStore
	rollups  storage.RollupStore
	tz       *time.Location
}

// NewDailyStats creates the rollup generator.
func NewDailyStats(readings storage.ReadingStore, rollups storage.RollupStore, tz *time.Location) *DailyStats {
	return &DailyStats{readings: readings, rollups: rollups, tz: tz}
}

// GenerateRollup aggregates all readings of the calendar day containing date
// and upserts the summary row. Days with no readings are skipped.
func (d *DailyStats) GenerateRollup(ctx context.Context, date time.Time) error {
	day := d.startOfDay(date)
	start, end := day, day.AddDate(0, 0, 1)

	agg, err := d.readings.AggregateRange(ctx, start, end)
	if err != nil {
		return fmt.Errorf("aggregate readings for %s: %w", day.Format(dateLayout), err)
	}
	if agg == nil {
		slog.Info("[DailyStats] No readings for day, skipping rollup", "date", day.Format(dateLayout))
		return nil
	}

	rollup := storage.DailyRollup{
		Date:            day.Format(dateLayout),
		AvgTemp:         agg.AvgTemp.Round(1),
		MinTemp:         agg.MinTemp.Round(1),
		MaxTemp:         agg.MaxTemp.Round(1),
		AvgHumidity:     agg.AvgHumidity.Round(1),
		MinHumidity:     agg.MinHumidity.Round(1),
		MaxHumidity:     agg.MaxHumidity.Round(1),
		AvgPeltierPower: int(agg.AvgPeltierPower.Round(0).IntPart()),
	}
	if err := d.rollups.UpsertRollup(ctx, rollup); err != nil {
		return fmt.Errorf("upsert rollup for %s: %w", rollup.Date, err)
	}
	slog.Info("[DailyStats] Rollup saved", "date", rollup.Date)
	return nil
}

// RecoverMissedStats fills the rollup gap left by downtime: every day after
// the latest stored rollup through yesterday gets generated. With no rollup
// at all, recovery reaches back a bounded number of days.
func (d *DailyStats) RecoverMissedStats(ctx context.Context, now time.Time) error {
	latest, err := d.rollups.LatestRollupDate(ctx)
	if err != nil {
		return fmt.Errorf("load latest rollup date: %w", err)
	}

	today := d.startOfDay(now)
	var last time.Time
	if latest == "" {
		last = today.AddDate(0, 0, -recoveryFallbackDays)
	} else {
		parsed, err := time.ParseInLocation(dateLayout, latest, d.tz)
		if err != nil {
			return fmt.Errorf("parse latest rollup date %q: %w", latest, err)
		}
		last = parsed
	}

	yesterday := today.AddDate(0, 0, -1)
	if !last.Before(yesterday) {
		return nil
	}

	slog.Info("[DailyStats] Recovering missed rollups",
		"from", last.AddDate(0, 0, 1).Format(dateLayout), "through", yesterday.Format(dateLayout))
	for day := last.AddDate(0, 0, 1); !day.After(yesterday); day = day.AddDate(0, 0, 1) {
		if err := d.GenerateRollup(ctx, day); err != nil {
			return err
		}
	}
	return nil
}

func (d *DailyStats) startOfDay(t time.Time) time.Time {
	local := t.In(d.tz)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, d.tz)
}
