// Package ingest holds the MQTT message handlers: the telemetry reconciler
// and the command-acknowledgement handler. Handlers return errors instead of
// panicking; the transport loop logs and discards them so a bad message can
// never take down the subscription.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/craft-brew/queue-ingest/internal/cache"
	"github.com/craft-brew/queue-ingest/internal/protocol"
	"github.com/craft-brew/queue-ingest/internal/storage"
)

// saveThrottleSec bounds time-series writes to at most one per minute
// regardless of how often the device reports.
const saveThrottleSec = 60

// Reconciler consumes telemetry messages: it always refreshes the live status
// cache, and persists a throttled, deduplicated sample to the time series.
type Reconciler struct {
	cache    cache.Store
	readings storage.ReadingStore

	// nowFn supplies the receipt-time fallback for devices without a clock.
	// Overridable in tests.
	nowFn func() time.Time
}

// NewReconciler creates a telemetry reconciler.
func NewReconciler(cacheStore cache.Store, readings storage.ReadingStore) *Reconciler {
	return &Reconciler{
		cache:    cacheStore,
		readings: readings,
		nowFn:    time.Now,
	}
}

// HandleTelemetry processes one status message.
//
// The live status cache is overwritten unconditionally (last-write-wins, no
// ordering check against the previous update). The durable write is throttled
// by the save watermark and deduplicated by recorded_at. A durable-store
// failure after the cache update leaves the time series short one sample; the
// next successful message heals forward.
func (r *Reconciler) HandleTelemetry(ctx context.Context, payload []byte) error {
	var status protocol.StatusPayload
	if err := json.Unmarshal(payload, &status); err != nil {
		return fmt.Errorf("parse telemetry payload: %w", err)
	}

	// Devices without NTP sync report ts=0; substitute receipt time.
	ts := status.Ts
	if ts <= 0 {
		ts = r.nowFn().Unix()
	}

	if err := r.cache.SetStatus(ctx, cache.FridgeStatus{
		Temp:      status.Temp,
		Humidity:  status.Humidity,
		Power:     status.Power,
		Target:    status.Target,
		UpdatedAt: ts,
	}); err != nil {
		return fmt.Errorf("update status cache: %w", err)
	}

	lastSaveAt, err := r.cache.GetLastSaveAt(ctx)
	if err != nil {
		return fmt.Errorf("read save watermark: %w", err)
	}
	if lastSaveAt > 0 && ts-lastSaveAt < saveThrottleSec {
		slog.Debug("[Telemetry] Durable save skipped (throttled)",
			"ts", ts, "last_save_at", lastSaveAt)
		return nil
	}

	if status.Temp == nil {
		return nil
	}

	humidity := 0.0
	if status.Humidity != nil {
		humidity = *status.Humidity
	}
	if err := r.cache.AddReading(ctx, *status.Temp, humidity); err != nil {
		return fmt.Errorf("update rolling average: %w", err)
	}

	batch, err := r.cache.GetActiveBatch(ctx)
	if err != nil {
		return fmt.Errorf("read active batch: %w", err)
	}
	var batchID *int64
	if batch != nil {
		batchID = &batch.ID
	}

	recordedAt := time.Unix(ts, 0).UTC()

	exists, err := r.readings.ReadingExists(ctx, recordedAt)
	if err != nil {
		return fmt.Errorf("check reading existence: %w", err)
	}
	if exists {
		slog.Info("[Telemetry] Reading already persisted", "recorded_at", recordedAt)
		return nil
	}

	err = r.readings.InsertReading(ctx, storage.Reading{
		RecordedAt:   recordedAt,
		Temperature:  *status.Temp,
		Humidity:     status.Humidity,
		TargetTemp:   status.Target,
		PeltierPower: status.Power,
		BatchID:      batchID,
	})
	if errors.Is(err, storage.ErrDuplicateReading) {
		// Concurrent double-delivery lost the insert race; the unique key on
		// recorded_at makes this a no-op rather than a double count.
		slog.Info("[Telemetry] Duplicate reading rejected by store", "recorded_at", recordedAt)
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}

	if err := r.cache.SetLastSaveAt(ctx, ts); err != nil {
		return fmt.Errorf("advance save watermark: %w", err)
	}

	slog.Info("[Telemetry] Reading persisted",
		"recorded_at", recordedAt,
		"temperature", *status.Temp,
		"batch_id", batchID)
	return nil
}
