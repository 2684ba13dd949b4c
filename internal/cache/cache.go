// Package cache defines the volatile-state contract of the ingestion service.
// All mutable runtime state (live status, active batch pointer, rolling
// averages, save watermark, push subscriptions, alert dedup flags) lives here
// so the handlers themselves stay stateless and restartable.
package cache

import (
	"context"
	"time"
)

// FridgeStatus is the single current-value record refreshed on every telemetry
// message. It expires from the cache when the device stops reporting.
type FridgeStatus struct {
	Temp      *float64
	Humidity  *float64
	Power     int
	Target    *float64
	UpdatedAt int64 // epoch seconds
}

// ActiveBatch is the denormalized snapshot of the batch currently in the
// fridge. The durable batches table holds the authoritative row; this copy
// exists for fast dashboard reads and the alert check.
type ActiveBatch struct {
	ID                int64
	Name              string
	Type              string
	FermentationStart *time.Time
	FermentationEnd   *time.Time
	AgingStart        *time.Time
	AgingEnd          *time.Time
}

// Average24h is the rolling mean over the bounded sample window.
// Temp and Humidity are nil when no samples have been recorded.
type Average24h struct {
	Temp     *float64
	Humidity *float64
	Count    int64
}

// PushSubscription is one browser push endpoint registered by the dashboard.
type PushSubscription struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

// Store is the key-value contract consumed by the ingestion pipeline and the
// schedulers. Implementations provide their own concurrency control; the
// rolling-average update and the dedup claim are the only operations that
// require store-side atomicity.
type Store interface {
	// SetStatus overwrites the live status record and refreshes its TTL.
	SetStatus(ctx context.Context, status FridgeStatus) error
	// GetStatus returns the live status, or nil if it expired or was never set.
	GetStatus(ctx context.Context) (*FridgeStatus, error)
	// IsOnline reports whether the status key currently exists.
	IsOnline(ctx context.Context) (bool, error)
	// SetTarget updates only the target field of the live status.
	// A nil temp removes the field.
	SetTarget(ctx context.Context, temp *float64) error
	// GetTarget returns the target field of the live status, nil when unset.
	GetTarget(ctx context.Context) (*float64, error)

	// SetActiveBatch stores the active batch snapshot.
	SetActiveBatch(ctx context.Context, batch ActiveBatch) error
	// GetActiveBatch returns the active batch snapshot, or nil if none is set.
	GetActiveBatch(ctx context.Context) (*ActiveBatch, error)
	// ClearActiveBatch removes the snapshot. The durable batch row persists.
	ClearActiveBatch(ctx context.Context) error

	// AddReading folds one temperature/humidity sample into the rolling
	// 24h accumulator, evicting the oldest sample once the window is full.
	AddReading(ctx context.Context, temp, humidity float64) error
	// GetAverage24h returns the current rolling mean, rounded to one decimal.
	GetAverage24h(ctx context.Context) (Average24h, error)

	// GetLastSaveAt returns the durable-write watermark in epoch seconds,
	// or 0 if no write has happened yet.
	GetLastSaveAt(ctx context.Context) (int64, error)
	// SetLastSaveAt advances the durable-write watermark.
	SetLastSaveAt(ctx context.Context, ts int64) error

	// ClaimAlert atomically claims a dedup key with the given TTL.
	// Returns true only for the single caller that wins the claim.
	ClaimAlert(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// AddPushSubscription registers a push endpoint (keyed by endpoint URL).
	AddPushSubscription(ctx context.Context, sub PushSubscription) error
	// RemovePushSubscription drops a push endpoint.
	RemovePushSubscription(ctx context.Context, endpoint string) error
	// GetPushSubscriptions enumerates all registered push endpoints.
	GetPushSubscriptions(ctx context.Context) ([]PushSubscription, error)

	// Ping verifies connectivity for health checks.
	Ping(ctx context.Context) error
}
