package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"owl-haccp/internal/config"
	"owl-haccp/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// CalibrationCache 校准状态 Redis 缓存
// 缓存值带 as_of 日期；读取时日期不是今天则视为未命中，由调用方重新计算
// 另有一个不过期的 next 键记录当前有效的下次校准日期（由校准写入方维护）；
// 缓存值的下次校准日期与 next 键不一致时同样视为未命中，避免并发巡检写回旧状态
type CalibrationCache struct {
	redisClient *redis.Client
	keyPrefix   string
	ttl         time.Duration
	logger      *zap.Logger
}

// NewCalibrationCache 创建校准状态缓存
func NewCalibrationCache(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) *CalibrationCache {
	return &CalibrationCache{
		redisClient: redisClient,
		keyPrefix:   cfg.HACCP.Cache.CalibrationKeyPrefix,
		ttl:         time.Duration(cfg.HACCP.Cache.CalibrationTTL) * time.Second,
		logger:      logger,
	}
}

type cachedCalibration struct {
	models.CalibrationStatus
	AsOf string `json:"as_of"`
}

const asOfLayout = "2006-01-02"

func (c *CalibrationCache) key(equipmentID string) string {
	return c.keyPrefix + equipmentID
}

func (c *CalibrationCache) nextKey(equipmentID string) string {
	return c.keyPrefix + equipmentID + ":next"
}

// Get 读取缓存；未命中、已过期（as_of 不是 today）或下次校准日期已变更时返回 nil, false
func (c *CalibrationCache) Get(ctx context.Context, equipmentID string, today time.Time) (*models.CalibrationStatus, bool, error) {
	vals, err := c.redisClient.MGet(ctx, c.key(equipmentID), c.nextKey(equipmentID)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get calibration cache: %w", err)
	}

	val, ok := vals[0].(string)
	if !ok {
		return nil, false, nil
	}
	current, ok := vals[1].(string)
	if !ok {
		return nil, false, nil
	}

	var cached cachedCalibration
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.logger.Warn("Discarding malformed calibration cache entry",
			zap.String("equipment_id", equipmentID),
			zap.Error(err),
		)
		return nil, false, nil
	}

	if cached.AsOf != models.DateOf(today).Format(asOfLayout) {
		return nil, false, nil
	}
	if nextDateKey(cached.NextCalibrationDate) != current {
		c.logger.Debug("Discarding superseded calibration cache entry",
			zap.String("equipment_id", equipmentID),
			zap.String("cached_next", nextDateKey(cached.NextCalibrationDate)),
			zap.String("current_next", current),
		)
		return nil, false, nil
	}

	status := cached.CalibrationStatus
	return &status, true, nil
}

// Set 写入缓存（as_of 为计算所用的 today）
func (c *CalibrationCache) Set(ctx context.Context, status models.CalibrationStatus, today time.Time) error {
	jsonData, err := json.Marshal(cachedCalibration{
		CalibrationStatus: status,
		AsOf:              models.DateOf(today).Format(asOfLayout),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal calibration status: %w", err)
	}

	// next 键已存在时不覆盖：它只由 Invalidate 更新
	pipe := c.redisClient.TxPipeline()
	pipe.Set(ctx, c.key(status.EquipmentID), jsonData, c.ttl)
	pipe.SetNX(ctx, c.nextKey(status.EquipmentID), nextDateKey(status.NextCalibrationDate), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set calibration cache: %w", err)
	}

	c.logger.Debug("Updated calibration cache",
		zap.String("equipment_id", status.EquipmentID),
		zap.String("status", string(status.Status)),
	)
	return nil
}

// Invalidate 校准记录保存后调用：记录新的下次校准日期并删除缓存值
func (c *CalibrationCache) Invalidate(ctx context.Context, equipmentID string, next time.Time) error {
	pipe := c.redisClient.TxPipeline()
	pipe.Set(ctx, c.nextKey(equipmentID), nextDateKey(next), 0)
	pipe.Del(ctx, c.key(equipmentID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to invalidate calibration cache: %w", err)
	}
	return nil
}

func nextDateKey(next time.Time) string {
	return models.DateOf(next).Format(asOfLayout)
}
