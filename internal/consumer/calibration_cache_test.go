package consumer

import (
	"context"
	"testing"
	"time"

	"owl-haccp/internal/config"
	"owl-haccp/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.HACCP.Cache.CalibrationKeyPrefix = "haccp:calibration:"
	cfg.HACCP.Cache.CalibrationTTL = 3600
	cfg.HACCP.Streams.CCPSubmissions = "haccp:ccp:submissions"
	cfg.HACCP.Streams.PestSubmissions = "haccp:pest:submissions"
	cfg.HACCP.Streams.ConsumerGroup = "test-group"
	cfg.HACCP.Streams.ConsumerName = "test-consumer"
	cfg.HACCP.Streams.BatchSize = 10
	cfg.HACCP.Streams.BlockMillis = -1
	cfg.HACCP.Streams.PendingRetryMillis = 20
	cfg.HACCP.Sweep.Interval = 60
	return cfg
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client, *CalibrationCache) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewCalibrationCache(testConfig(), redisClient, zap.NewNop())
	return mr, redisClient, cache
}

func TestCalibrationCache_SetAndGet(t *testing.T) {
	mr, _, cache := setupTestRedis(t)
	ctx := context.Background()
	today := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	status := models.CalibrationStatus{
		EquipmentID:         "THERM-01",
		Status:              models.CalibrationExpiring,
		NextCalibrationDate: time.Date(2024, 3, 27, 0, 0, 0, 0, time.UTC),
		DaysRemaining:       17,
	}
	require.NoError(t, cache.Set(ctx, status, today))

	assert.True(t, mr.Exists("haccp:calibration:THERM-01"))
	assert.Equal(t, time.Hour, mr.TTL("haccp:calibration:THERM-01"))

	got, ok, err := cache.Get(ctx, "THERM-01", today)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.CalibrationExpiring, got.Status)
	assert.Equal(t, 17, got.DaysRemaining)
	assert.True(t, status.NextCalibrationDate.Equal(got.NextCalibrationDate))
}

func TestCalibrationCache_StaleAsOfIsMiss(t *testing.T) {
	_, _, cache := setupTestRedis(t)
	ctx := context.Background()
	yesterday := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)

	require.NoError(t, cache.Set(ctx, models.CalibrationStatus{EquipmentID: "SCALE-1", Status: models.CalibrationValid}, yesterday))

	got, ok, err := cache.Get(ctx, "SCALE-1", yesterday.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestCalibrationCache_MissAndMalformed(t *testing.T) {
	mr, _, cache := setupTestRedis(t)
	ctx := context.Background()
	today := time.Now()

	_, ok, err := cache.Get(ctx, "missing", today)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mr.Set("haccp:calibration:broken", "{not json"))
	_, ok, err = cache.Get(ctx, "broken", today)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCalibrationCache_Invalidate(t *testing.T) {
	mr, _, cache := setupTestRedis(t)
	ctx := context.Background()
	today := time.Now()

	require.NoError(t, cache.Set(ctx, models.CalibrationStatus{EquipmentID: "X"}, today))
	require.NoError(t, cache.Invalidate(ctx, "X", time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)))
	assert.False(t, mr.Exists("haccp:calibration:X"))

	next, err := mr.Get("haccp:calibration:X:next")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-10", next)
}

func TestCalibrationCache_SupersededEntryIsMiss(t *testing.T) {
	_, _, cache := setupTestRedis(t)
	ctx := context.Background()
	today := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	// 续期先记录新的下次校准日期，随后旧状态才被写回
	require.NoError(t, cache.Invalidate(ctx, "THERM-01", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, cache.Set(ctx, models.CalibrationStatus{
		EquipmentID:         "THERM-01",
		Status:              models.CalibrationExpired,
		NextCalibrationDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		DaysRemaining:       -43,
	}, today))

	got, ok, err := cache.Get(ctx, "THERM-01", today)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)

	fresh := models.CalibrationStatus{
		EquipmentID:         "THERM-01",
		Status:              models.CalibrationValid,
		NextCalibrationDate: time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		DaysRemaining:       365,
	}
	require.NoError(t, cache.Set(ctx, fresh, today))
	got, ok, err = cache.Get(ctx, "THERM-01", today)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.CalibrationValid, got.Status)
}

func TestCalibrationCache_RedisDown(t *testing.T) {
	mr, _, cache := setupTestRedis(t)
	mr.Close()

	_, _, err := cache.Get(context.Background(), "X", time.Now())
	assert.Error(t, err)
}
