package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyStatus    = "fridge:status"
	keyBatch     = "fridge:batch"
	keyAvg24h    = "fridge:24h"
	keyAvg24hVal = "fridge:24h:vals"
	keyLastSave  = "fridge:last_save_at"
	keyPushSubs  = "fridge:push:subs"

	statusTTL = 600 * time.Second

	// maxSamples bounds the rolling window at one sample per second for 24h.
	// The real sample rate is far lower, so eviction is rare in practice.
	maxSamples = 60 * 60 * 24
)

// RedisStore implements Store on top of a Redis server.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies connectivity before returning.
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	slog.Info("[Redis] Connected", "addr", opts.Addr)
	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient wraps an existing client. Used by tests.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping verifies connectivity for health checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// SetStatus overwrites the live status hash and refreshes its TTL.
// Nil fields are stored as empty strings so GetStatus can round-trip them.
func (s *RedisStore) SetStatus(ctx context.Context, status FridgeStatus) error {
	fields := map[string]interface{}{
		"temp":       formatFloat(status.Temp),
		"humidity":   formatFloat(status.Humidity),
		"power":      strconv.Itoa(status.Power),
		"target":     formatFloat(status.Target),
		"updated_at": strconv.FormatInt(status.UpdatedAt, 10),
	}

	if err := s.client.HSet(ctx, keyStatus, fields).Err(); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if err := s.client.Expire(ctx, keyStatus, statusTTL).Err(); err != nil {
		return fmt.Errorf("refresh status ttl: %w", err)
	}
	return nil
}

// GetStatus returns the live status, or nil if the key expired.
func (s *RedisStore) GetStatus(ctx context.Context) (*FridgeStatus, error) {
	data, err := s.client.HGetAll(ctx, keyStatus).Result()
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	power, _ := strconv.Atoi(data["power"])
	updatedAt, _ := strconv.ParseInt(data["updated_at"], 10, 64)

	return &FridgeStatus{
		Temp:      parseFloat(data["temp"]),
		Humidity:  parseFloat(data["humidity"]),
		Power:     power,
		Target:    parseFloat(data["target"]),
		UpdatedAt: updatedAt,
	}, nil
}

// IsOnline reports whether the status key exists. TTL expiry of the key is the
// device-offline signal.
func (s *RedisStore) IsOnline(ctx context.Context) (bool, error) {
	n, err := s.client.Exists(ctx, keyStatus).Result()
	if err != nil {
		return false, fmt.Errorf("check status key: %w", err)
	}
	return n == 1, nil
}

// SetTarget updates only the target field of the live status hash.
func (s *RedisStore) SetTarget(ctx context.Context, temp *float64) error {
	if temp == nil {
		if err := s.client.HDel(ctx, keyStatus, "target").Err(); err != nil {
			return fmt.Errorf("clear target: %w", err)
		}
		return nil
	}
	if err := s.client.HSet(ctx, keyStatus, "target", formatFloat(temp)).Err(); err != nil {
		return fmt.Errorf("set target: %w", err)
	}
	return nil
}

// GetTarget returns the target field of the live status, nil when unset.
func (s *RedisStore) GetTarget(ctx context.Context) (*float64, error) {
	raw, err := s.client.HGet(ctx, keyStatus, "target").Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get target: %w", err)
	}
	return parseFloat(raw), nil
}

// SetActiveBatch stores the active batch snapshot hash.
func (s *RedisStore) SetActiveBatch(ctx context.Context, batch ActiveBatch) error {
	fields := map[string]interface{}{
		"id":                 strconv.FormatInt(batch.ID, 10),
		"name":               batch.Name,
		"type":               batch.Type,
		"fermentation_start": formatTime(batch.FermentationStart),
		"fermentation_end":   formatTime(batch.FermentationEnd),
		"aging_start":        formatTime(batch.AgingStart),
		"aging_end":          formatTime(batch.AgingEnd),
	}
	if err := s.client.HSet(ctx, keyBatch, fields).Err(); err != nil {
		return fmt.Errorf("set active batch: %w", err)
	}
	return nil
}

// GetActiveBatch returns the snapshot, or nil when no batch is active.
func (s *RedisStore) GetActiveBatch(ctx context.Context) (*ActiveBatch, error) {
	data, err := s.client.HGetAll(ctx, keyBatch).Result()
	if err != nil {
		return nil, fmt.Errorf("get active batch: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	id, _ := strconv.ParseInt(data["id"], 10, 64)

	return &ActiveBatch{
		ID:                id,
		Name:              data["name"],
		Type:              data["type"],
		FermentationStart: parseTime(data["fermentation_start"]),
		FermentationEnd:   parseTime(data["fermentation_end"]),
		AgingStart:        parseTime(data["aging_start"]),
		AgingEnd:          parseTime(data["aging_end"]),
	}, nil
}

// ClearActiveBatch removes the snapshot only; the durable batch row persists.
func (s *RedisStore) ClearActiveBatch(ctx context.Context) error {
	if err := s.client.Del(ctx, keyBatch).Err(); err != nil {
		return fmt.Errorf("clear active batch: %w", err)
	}
	return nil
}

// AddReading pushes one raw sample and updates the running sums in a single
// MULTI/EXEC group, then evicts the oldest sample if the window overflowed.
// The eviction subtracts the popped sample's contribution in its own MULTI so
// sums and count always move together.
func (s *RedisStore) AddReading(ctx context.Context, temp, humidity float64) error {
	val := fmt.Sprintf("%v:%v", temp, humidity)

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, keyAvg24hVal, val)
	pipe.HIncrByFloat(ctx, keyAvg24h, "temp_sum", temp)
	pipe.HIncrByFloat(ctx, keyAvg24h, "humidity_sum", humidity)
	pipe.HIncrBy(ctx, keyAvg24h, "count", 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add reading: %w", err)
	}

	length, err := s.client.LLen(ctx, keyAvg24hVal).Result()
	if err != nil {
		return fmt.Errorf("sample list length: %w", err)
	}
	if length <= maxSamples {
		return nil
	}

	old, err := s.client.RPop(ctx, keyAvg24hVal).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("evict oldest sample: %w", err)
	}

	oldTemp, oldHumidity, err := parseSample(old)
	if err != nil {
		return fmt.Errorf("evict oldest sample: %w", err)
	}

	pipe = s.client.TxPipeline()
	pipe.HIncrByFloat(ctx, keyAvg24h, "temp_sum", -oldTemp)
	pipe.HIncrByFloat(ctx, keyAvg24h, "humidity_sum", -oldHumidity)
	pipe.HIncrBy(ctx, keyAvg24h, "count", -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("subtract evicted sample: %w", err)
	}
	return nil
}

// GetAverage24h returns the rolling mean rounded to one decimal place.
func (s *RedisStore) GetAverage24h(ctx context.Context) (Average24h, error) {
	data, err := s.client.HGetAll(ctx, keyAvg24h).Result()
	if err != nil {
		return Average24h{}, fmt.Errorf("get 24h average: %w", err)
	}

	count, _ := strconv.ParseInt(data["count"], 10, 64)
	if count == 0 {
		return Average24h{}, nil
	}

	tempSum, _ := strconv.ParseFloat(data["temp_sum"], 64)
	humiditySum, _ := strconv.ParseFloat(data["humidity_sum"], 64)

	temp := roundTenth(tempSum / float64(count))
	humidity := roundTenth(humiditySum / float64(count))

	return Average24h{Temp: &temp, Humidity: &humidity, Count: count}, nil
}

// GetLastSaveAt returns the durable-write watermark, 0 when unset.
func (s *RedisStore) GetLastSaveAt(ctx context.Context) (int64, error) {
	raw, err := s.client.Get(ctx, keyLastSave).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get save watermark: %w", err)
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse save watermark %q: %w", raw, err)
	}
	return ts, nil
}

// SetLastSaveAt advances the durable-write watermark.
func (s *RedisStore) SetLastSaveAt(ctx context.Context, ts int64) error {
	if err := s.client.Set(ctx, keyLastSave, strconv.FormatInt(ts, 10), 0).Err(); err != nil {
		return fmt.Errorf("set save watermark: %w", err)
	}
	return nil
}

// ClaimAlert claims a dedup key via SET NX EX. Exactly one concurrent caller
// observes true per key per TTL window.
func (s *RedisStore) ClaimAlert(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim alert %q: %w", key, err)
	}
	return ok, nil
}

// AddPushSubscription stores the subscription JSON keyed by its endpoint URL,
// so re-subscribing the same browser is an overwrite rather than a duplicate.
func (s *RedisStore) AddPushSubscription(ctx context.Context, sub PushSubscription) error {
	if sub.Endpoint == "" {
		return fmt.Errorf("subscription endpoint is required")
	}
	raw, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal subscription: %w", err)
	}
	if err := s.client.HSet(ctx, keyPushSubs, sub.Endpoint, raw).Err(); err != nil {
		return fmt.Errorf("add push subscription: %w", err)
	}
	return nil
}

// RemovePushSubscription drops the endpoint from the subscription hash.
func (s *RedisStore) RemovePushSubscription(ctx context.Context, endpoint string) error {
	if err := s.client.HDel(ctx, keyPushSubs, endpoint).Err(); err != nil {
		return fmt.Errorf("remove push subscription: %w", err)
	}
	return nil
}

// GetPushSubscriptions enumerates all registered endpoints. Entries that fail
// to decode are skipped with a warning rather than failing the whole read.
func (s *RedisStore) GetPushSubscriptions(ctx context.Context) ([]PushSubscription, error) {
	vals, err := s.client.HVals(ctx, keyPushSubs).Result()
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}

	subs := make([]PushSubscription, 0, len(vals))
	for _, raw := range vals {
		var sub PushSubscription
		if err := json.Unmarshal([]byte(raw), &sub); err != nil {
			slog.Warn("[Redis] Skipping undecodable push subscription", "error", err)
			continue
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parseFloat(raw string) *float64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func parseTime(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}

func parseSample(raw string) (temp, humidity float64, err error) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed sample %q", raw)
	}
	temp, err = strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed sample %q: %w", raw, err)
	}
	humidity, err = strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed sample %q: %w", raw, err)
	}
	return temp, humidity, nil
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
