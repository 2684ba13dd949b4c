package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_AddReading(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStoreWithClient(client)

	mock.ExpectTxPipeline()
	mock.ExpectLPush(keyAvg24hVal, "4.2:61").SetVal(1)
	mock.ExpectHIncrByFloat(keyAvg24h, "temp_sum", 4.2).SetVal(4.2)
	mock.ExpectHIncrByFloat(keyAvg24h, "humidity_sum", 61).SetVal(61)
	mock.ExpectHIncrBy(keyAvg24h, "count", 1).SetVal(1)
	mock.ExpectTxPipelineExec()
	mock.ExpectLLen(keyAvg24hVal).SetVal(1)

	require.NoError(t, store.AddReading(context.Background(), 4.2, 61))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_AddReading_EvictsOldestWhenFull(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStoreWithClient(client)

	mock.ExpectTxPipeline()
	mock.ExpectLPush(keyAvg24hVal, "5:60").SetVal(maxSamples + 1)
	mock.ExpectHIncrByFloat(keyAvg24h, "temp_sum", 5).SetVal(100)
	mock.ExpectHIncrByFloat(keyAvg24h, "humidity_sum", 60).SetVal(1000)
	mock.ExpectHIncrBy(keyAvg24h, "count", 1).SetVal(maxSamples + 1)
	mock.ExpectTxPipelineExec()
	mock.ExpectLLen(keyAvg24hVal).SetVal(maxSamples + 1)
	mock.ExpectRPop(keyAvg24hVal).SetVal("3.5:58")
	mock.ExpectTxPipeline()
	mock.ExpectHIncrByFloat(keyAvg24h, "temp_sum", -3.5).SetVal(96.5)
	mock.ExpectHIncrByFloat(keyAvg24h, "humidity_sum", -58).SetVal(942)
	mock.ExpectHIncrBy(keyAvg24h, "count", -1).SetVal(maxSamples)
	mock.ExpectTxPipelineExec()

	require.NoError(t, store.AddReading(context.Background(), 5, 60))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_GetAverage24h(t *testing.T) {
	tests := []struct {
		name         string
		fields       map[string]string
		wantCount    int64
		wantTemp     float64
		wantHumidity float64
		wantNil      bool
	}{
		{
			name: "rounds to one decimal",
			fields: map[string]string{
				"temp_sum":     "12.76",
				"humidity_sum": "183.2",
				"count":        "3",
			},
			wantCount:    3,
			wantTemp:     4.3,
			wantHumidity: 61.1,
		},
		{
			name:    "empty accumulator yields nil averages",
			fields:  map[string]string{},
			wantNil: true,
		},
		{
			name: "zero count yields nil averages",
			fields: map[string]string{
				"temp_sum":     "0",
				"humidity_sum": "0",
				"count":        "0",
			},
			wantNil: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, mock := redismock.NewClientMock()
			store := NewRedisStoreWithClient(client)
			mock.ExpectHGetAll(keyAvg24h).SetVal(tc.fields)

			avg, err := store.GetAverage24h(context.Background())
			require.NoError(t, err)

			if tc.wantNil {
				require.Nil(t, avg.Temp)
				require.Nil(t, avg.Humidity)
				require.Zero(t, avg.Count)
				return
			}
			require.Equal(t, tc.wantCount, avg.Count)
			require.Equal(t, tc.wantTemp, *avg.Temp)
			require.Equal(t, tc.wantHumidity, *avg.Humidity)
		})
	}
}

func TestRedisStore_GetStatus(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStoreWithClient(client)

	mock.ExpectHGetAll(keyStatus).SetVal(map[string]string{
		"temp":       "4.2",
		"humidity":   "",
		"power":      "30",
		"target":     "4",
		"updated_at": "1756600000",
	})

	status, err := store.GetStatus(context.Background())
	require.NoError(t, err)
	require.NotNil(t, status)
	require.Equal(t, 4.2, *status.Temp)
	require.Nil(t, status.Humidity)
	require.Equal(t, 30, status.Power)
	require.Equal(t, 4.0, *status.Target)
	require.Equal(t, int64(1756600000), status.UpdatedAt)
}

func TestRedisStore_GetStatus_Expired(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStoreWithClient(client)

	mock.ExpectHGetAll(keyStatus).SetVal(map[string]string{})

	status, err := store.GetStatus(context.Background())
	require.NoError(t, err)
	require.Nil(t, status)
}

func TestRedisStore_GetTarget(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStoreWithClient(client)

	mock.ExpectHGet(keyStatus, "target").SetVal("4.5")
	target, err := store.GetTarget(context.Background())
	require.NoError(t, err)
	require.NotNil(t, target)
	require.Equal(t, 4.5, *target)

	mock.ExpectHGet(keyStatus, "target").RedisNil()
	target, err = store.GetTarget(context.Background())
	require.NoError(t, err)
	require.Nil(t, target)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_Watermark(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStoreWithClient(client)

	mock.ExpectGet(keyLastSave).RedisNil()
	ts, err := store.GetLastSaveAt(context.Background())
	require.NoError(t, err)
	require.Zero(t, ts)

	mock.ExpectSet(keyLastSave, "1756600000", time.Duration(0)).SetVal("OK")
	require.NoError(t, store.SetLastSaveAt(context.Background(), 1756600000))

	mock.ExpectGet(keyLastSave).SetVal("1756600000")
	ts, err = store.GetLastSaveAt(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1756600000), ts)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_ClaimAlert(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStoreWithClient(client)

	key := "fridge:alert:7:aging:2026-08-31 10:15"

	mock.ExpectSetNX(key, "1", time.Hour).SetVal(true)
	won, err := store.ClaimAlert(context.Background(), key, time.Hour)
	require.NoError(t, err)
	require.True(t, won)

	mock.ExpectSetNX(key, "1", time.Hour).SetVal(false)
	won, err = store.ClaimAlert(context.Background(), key, time.Hour)
	require.NoError(t, err)
	require.False(t, won)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_PushSubscriptions(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStoreWithClient(client)

	mock.ExpectHVals(keyPushSubs).SetVal([]string{
		`{"endpoint":"https://push.example/a","p256dh":"k1","auth":"a1"}`,
		`not json`,
	})

	subs, err := store.GetPushSubscriptions(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, "https://push.example/a", subs[0].Endpoint)

	mock.ExpectHDel(keyPushSubs, "https://push.example/a").SetVal(1)
	require.NoError(t, store.RemovePushSubscription(context.Background(), "https://push.example/a"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestParseSample(t *testing.T) {
	temp, humidity, err := parseSample("4.2:61.5")
	require.NoError(t, err)
	require.Equal(t, 4.2, temp)
	require.Equal(t, 61.5, humidity)

	_, _, err = parseSample("garbage")
	require.Error(t, err)
}
