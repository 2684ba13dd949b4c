package ingest

import (
	"context"
	"time"

	"github.com/craft-brew/queue-ingest/internal/cache"
	"github.com/craft-brew/queue-ingest/internal/storage"
)

// fakeCache is an in-memory cache.Store for handler tests.
type fakeCache struct {
	status     *cache.FridgeStatus
	batch      *cache.ActiveBatch
	lastSaveAt int64
	samples    [][2]float64
	claims     map[string]bool
	subs       []cache.PushSubscription

	setStatusErr  error
	addReadingErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{claims: make(map[string]bool)}
}

func (f *fakeCache) SetStatus(_ context.Context, status cache.FridgeStatus) error {
	if f.setStatusErr != nil {
		return f.setStatusErr
	}
	f.status = &status
	return nil
}

func (f *fakeCache) GetStatus(context.Context) (*cache.FridgeStatus, error) {
	return f.status, nil
}

func (f *fakeCache) IsOnline(context.Context) (bool, error) {
	return f.status != nil, nil
}

func (f *fakeCache) SetTarget(_ context.Context, temp *float64) error {
	if f.status != nil {
		f.status.Target = temp
	}
	return nil
}

func (f *fakeCache) GetTarget(context.Context) (*float64, error) {
	if f.status == nil {
		return nil, nil
	}
	return f.status.Target, nil
}

func (f *fakeCache) SetActiveBatch(_ context.Context, batch cache.ActiveBatch) error {
	f.batch = &batch
	return nil
}

func (f *fakeCache) GetActiveBatch(context.Context) (*cache.ActiveBatch, error) {
	return f.batch, nil
}

func (f *fakeCache) ClearActiveBatch(context.Context) error {
	f.batch = nil
	return nil
}

func (f *fakeCache) AddReading(_ context.Context, temp, humidity float64) error {
	if f.addReadingErr != nil {
		return f.addReadingErr
	}
	f.samples = append(f.samples, [2]float64{temp, humidity})
	return nil
}

func (f *fakeCache) GetAverage24h(context.Context) (cache.Average24h, error) {
	return cache.Average24h{Count: int64(len(f.samples))}, nil
}

func (f *fakeCache) GetLastSaveAt(context.Context) (int64, error) {
	return f.lastSaveAt, nil
}

func (f *fakeCache) SetLastSaveAt(_ context.Context, ts int64) error {
	f.lastSaveAt = ts
	return nil
}

func (f *fakeCache) ClaimAlert(_ context.Context, key string, _ time.Duration) (bool, error) {
	if f.claims[key] {
		return false, nil
	}
	f.claims[key] = true
	return true, nil
}

func (f *fakeCache) AddPushSubscription(_ context.Context, sub cache.PushSubscription) error {
	f.subs = append(f.subs, sub)
	return nil
}

func (f *fakeCache) RemovePushSubscription(_ context.Context, endpoint string) error {
	kept := f.subs[:0]
	for _, sub := range f.subs {
		if sub.Endpoint != endpoint {
			kept = append(kept, sub)
		}
	}
	f.subs = kept
	return nil
}

func (f *fakeCache) GetPushSubscriptions(context.Context) ([]cache.PushSubscription, error) {
	return f.subs, nil
}

func (f *fakeCache) Ping(context.Context) error { return nil }

// fakeReadingStore is an in-memory storage.ReadingStore keyed by recorded_at.
type fakeReadingStore struct {
	readings  map[time.Time]storage.Reading
	insertErr error
}

func newFakeReadingStore() *fakeReadingStore {
	return &fakeReadingStore{readings: make(map[time.Time]storage.Reading)}
}

func (f *fakeReadingStore) ReadingExists(_ context.Context, recordedAt time.Time) (bool, error) {
	_, ok := f.readings[recordedAt]
	return ok, nil
}

func (f *fakeReadingStore) InsertReading(_ context.Context, reading storage.Reading) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	if _, ok := f.readings[reading.RecordedAt]; ok {
		return storage.ErrDuplicateReading
	}
	f.readings[reading.RecordedAt] = reading
	return nil
}

func (f *fakeReadingStore) AggregateRange(context.Context, time.Time, time.Time) (*storage.DayAggregate, error) {
	return nil, nil
}

// fakeCommandStore records ledger writes for ack handler tests.
type fakeCommandStore struct {
	pending []storage.CommandRecord
	acks    []storage.AckUpdate
	ackErr  error
}

func (f *fakeCommandStore) RecordPending(_ context.Context, cmd storage.CommandRecord) error {
	f.pending = append(f.pending, cmd)
	return nil
}

func (f *fakeCommandStore) ApplyAck(_ context.Context, ack storage.AckUpdate) error {
	if f.ackErr != nil {
		return f.ackErr
	}
	f.acks = append(f.acks, ack)
	return nil
}
