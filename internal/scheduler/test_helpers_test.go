package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/craft-brew/queue-ingest/internal/cache"
	"github.com/craft-brew/queue-ingest/internal/push"
	"github.com/craft-brew/queue-ingest/internal/storage"
)

// fakeCache is an in-memory cache.Store for scheduler tests. Only the
// batch, claim, and subscription operations carry state; the rest are stubs.
type fakeCache struct {
	mu     sync.Mutex
	batch  *cache.ActiveBatch
	claims map[string]bool
	subs   []cache.PushSubscription

	claimErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{claims: make(map[string]bool)}
}

func (f *fakeCache) SetStatus(context.Context, cache.FridgeStatus) error { return nil }

func (f *fakeCache) GetStatus(context.Context) (*cache.FridgeStatus, error) { return nil, nil }

func (f *fakeCache) IsOnline(context.Context) (bool, error) { return false, nil }

func (f *fakeCache) SetTarget(context.Context, *float64) error { return nil }

func (f *fakeCache) GetTarget(context.Context) (*float64, error) { return nil, nil }

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

func (f *fakeCache) AddReading(context.Context, float64, float64) error { return nil }

func (f *fakeCache) GetAverage24h(context.Context) (cache.Average24h, error) {
	return cache.Average24h{}, nil
}

func (f *fakeCache) GetLastSaveAt(context.Context) (int64, error) { return 0, nil }

func (f *fakeCache) SetLastSaveAt(context.Context, int64) error { return nil }

func (f *fakeCache) ClaimAlert(_ context.Context, key string, _ time.Duration) (bool, error) {
	if f.claimErr != nil {
		return false, f.claimErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
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
	f.mu.Lock()
	defer f.mu.Unlock()
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
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]cache.PushSubscription(nil), f.subs...), nil
}

func (f *fakeCache) Ping(context.Context) error { return nil }

// fakeSender records deliveries and fails per endpoint on demand.
// The mutex matters: delivery fans out on an errgroup.
type fakeSender struct {
	mu    sync.Mutex
	sent  []sentPush
	fails map[string]error
}

type sentPush struct {
	endpoint string
	n        push.Notification
}

func newFakeSender() *fakeSender {
	return &fakeSender{fails: make(map[string]error)}
}

func (f *fakeSender) Send(_ context.Context, sub cache.PushSubscription, n push.Notification) error {
	if err, ok := f.fails[sub.Endpoint]; ok {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentPush{endpoint: sub.Endpoint, n: n})
	return nil
}

// fakeReadingStore serves a canned aggregate per requested range start.
type fakeReadingStore struct {
	aggregates map[time.Time]*storage.DayAggregate
	ranges     [][2]time.Time
}

func newFakeReadingStore() *fakeReadingStore {
	return &fakeReadingStore{aggregates: make(map[time.Time]*storage.DayAggregate)}
}

func (f *fakeReadingStore) ReadingExists(context.Context, time.Time) (bool, error) {
	return false, nil
}

func (f *fakeReadingStore) InsertReading(context.Context, storage.Reading) error { return nil }

func (f *fakeReadingStore) AggregateRange(_ context.Context, start, end time.Time) (*storage.DayAggregate, error) {
	f.ranges = append(f.ranges, [2]time.Time{start, end})
	return f.aggregates[start.UTC()], nil
}

// fakeRollupStore records upserts and serves the latest rollup date.
type fakeRollupStore struct {
	upserts []storage.DailyRollup
	latest  string
}

func (f *fakeRollupStore) UpsertRollup(_ context.Context, rollup storage.DailyRollup) error {
	f.upserts = append(f.upserts, rollup)
	return nil
}

func (f *fakeRollupStore) LatestRollupDate(context.Context) (string, error) {
	return f.latest, nil
}

func (f *fakeRollupStore) ListRollups(context.Context, int) ([]storage.DailyRollup, error) {
	return nil, nil
}
