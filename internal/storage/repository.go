// Package storage defines the durable-store contracts of the ingestion
// service: the append-only readings log, the command ledger, daily rollups,
// and batch lookups.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/craft-brew/queue-ingest/internal/protocol"
	"github.com/shopspring/decimal"
)

// ErrDuplicateReading is returned when a reading for the same recorded_at
// already exists. The timestamp is the dedup key for at-least-once delivery.
var ErrDuplicateReading = errors.New("reading already exists")

// ErrBatchNotFound is returned when a batch row does not exist.
var ErrBatchNotFound = errors.New("batch not found")

// Reading is one accepted telemetry sample in the append-only time series.
type Reading struct {
	RecordedAt   time.Time
	Temperature  float64
	Humidity     *float64
	TargetTemp   *float64
	PeltierPower int
	BatchID      *int64
}

// Batch is the authoritative record of one brewing cycle.
type Batch struct {
	ID                int64
	Name              string
	Type              string
	FermentationStart *time.Time
	FermentationEnd   *time.Time
	AgingStart        *time.Time
	AgingEnd          *time.Time
}

// CommandRecord is one row of the command ledger, keyed by the generated
// command ID. Created pending at publish time, driven to a terminal state by
// the acknowledgement path.
type CommandRecord struct {
	ID          string
	Type        protocol.Command
	RequestedAt time.Time
	Completed   bool
	Value       *string
	CompletedAt *time.Time
	Error       *string
}

// AckUpdate carries the acknowledgement fields applied to the ledger.
// The upsert does not require a prior pending row: an ack racing ahead of (or
// arriving without) the publish insert still produces a correct terminal row.
type AckUpdate struct {
	ID      string
	Type    protocol.Command
	Ts      time.Time
	Value   *string
	Success bool
	Error   *string
}

// DayAggregate is the min/avg/max summary computed over one day of readings.
// Values are decimals because temperatures are stored as NUMERIC columns.
type DayAggregate struct {
	AvgTemp         decimal.Decimal
	MinTemp         decimal.Decimal
	MaxTemp         decimal.Decimal
	AvgHumidity     decimal.Decimal
	MinHumidity     decimal.Decimal
	MaxHumidity     decimal.Decimal
	AvgPeltierPower decimal.Decimal
}

// DailyRollup is one durable daily summary row, unique on Date (YYYY-MM-DD).
type DailyRollup struct {
	Date            string
	AvgTemp         decimal.Decimal
	MinTemp         decimal.Decimal
	MaxTemp         decimal.Decimal
	AvgHumidity     decimal.Decimal
	MinHumidity     decimal.Decimal
	MaxHumidity     decimal.Decimal
	AvgPeltierPower int
}

// ReadingStore is the time-series side of the durable store.
type ReadingStore interface {
	// ReadingExists reports whether a reading was already persisted for the
	// given timestamp.
	ReadingExists(ctx context.Context, recordedAt time.Time) (bool, error)

	// InsertReading appends one reading. The store enforces uniqueness on
	// RecordedAt and returns ErrDuplicateReading on conflict, closing the
	// race the existence check alone cannot.
	InsertReading(ctx context.Context, reading Reading) error

	// AggregateRange computes min/avg/max over readings in [start, end).
	// Returns nil when the range holds no readings.
	AggregateRange(ctx context.Context, start, end time.Time) (*DayAggregate, error)
}

// CommandStore is the command-ledger side of the durable store.
type CommandStore interface {
	// RecordPending inserts the pending ledger row after a successful publish.
	RecordPending(ctx context.Context, cmd CommandRecord) error

	// ApplyAck upserts the terminal state keyed by command ID.
	ApplyAck(ctx context.Context, ack AckUpdate) error
}

// RollupStore persists daily summary rows.
type RollupStore interface {
	// UpsertRollup writes the rollup row for its date, replacing aggregate
	// values on re-run.
	UpsertRollup(ctx context.Context, rollup DailyRollup) error

	// LatestRollupDate returns the most recent rollup date, or "" when no
	// rollup exists yet.
	LatestRollupDate(ctx context.Context) (string, error)

	// ListRollups returns up to limit rollups, newest first.
	ListRollups(ctx context.Context, limit int) ([]DailyRollup, error)
}

// BatchStore reads authoritative batch rows.
type BatchStore interface {
	// GetBatch returns the batch row, or ErrBatchNotFound.
	GetBatch(ctx context.Context, id int64) (*Batch, error)
}
