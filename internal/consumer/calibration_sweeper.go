package consumer

import (
	"context"
	"fmt"
	"time"

	"owl-haccp/internal/config"
	"owl-haccp/internal/evaluator"
	"owl-haccp/internal/models"

	"go.uber.org/zap"
)

// CalibrationSweepStore 巡检所需的校准记录存储
type CalibrationSweepStore interface {
	ListCalibrationRecords(ctx context.Context) ([]models.CalibrationRecord, error)
	UpdateCalibrationStatus(ctx context.Context, equipmentID string, status models.CalibrationState) error
}

// SweepSummary 一次巡检的统计结果
type SweepSummary struct {
	Total    int
	Valid    int
	Expiring int
	Expired  int
	Failed   int
}

// CalibrationSweeper 校准到期巡检（轮询模式）
type CalibrationSweeper struct {
	store    CalibrationSweepStore
	cache    *CalibrationCache
	interval time.Duration
	location *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

// NewCalibrationSweeper 创建校准巡检器
func NewCalibrationSweeper(cfg *config.Config, store CalibrationSweepStore, cache *CalibrationCache, logger *zap.Logger) *CalibrationSweeper {
	return &CalibrationSweeper{
		store:    store,
		cache:    cache,
		interval: time.Duration(cfg.HACCP.Sweep.Interval) * time.Second,
		location: cfg.Location(),
		now:      time.Now,
		logger:   logger,
	}
}

// Start 启动巡检（立即执行一次，然后按间隔执行）
func (s *CalibrationSweeper) Start(ctx context.Context) error {
	s.logger.Info("Calibration sweeper started",
		zap.Duration("interval", s.interval),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Calibration sweeper stopped")
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *CalibrationSweeper) sweep(ctx context.Context) {
	today := models.DateOf(s.now().In(s.location))
	summary, err := s.SweepOnce(ctx, today)
	if err != nil {
		s.logger.Error("Calibration sweep failed", zap.Error(err))
		return
	}
	s.logger.Info("Calibration sweep completed",
		zap.Int("total", summary.Total),
		zap.Int("valid", summary.Valid),
		zap.Int("expiring", summary.Expiring),
		zap.Int("expired", summary.Expired),
		zap.Int("failed", summary.Failed),
	)
}

// SweepOnce 对全部设备重新计算校准状态，刷新缓存和索引列
func (s *CalibrationSweeper) SweepOnce(ctx context.Context, today time.Time) (SweepSummary, error) {
	records, err := s.store.ListCalibrationRecords(ctx)
	if err != nil {
		return SweepSummary{}, fmt.Errorf("failed to list calibration records: %w", err)
	}

	summary := SweepSummary{Total: len(records)}
	for _, record := range records {
		status, err := evaluator.StatusOf(record, today)
		if err != nil {
			summary.Failed++
			s.logger.Error("Failed to compute calibration status",
				zap.String("equipment_id", record.EquipmentID),
				zap.Error(err),
			)
			continue
		}

		switch status.Status {
		case models.CalibrationExpired:
			summary.Expired++
			s.logger.Warn("Equipment calibration expired",
				zap.String("equipment_id", record.EquipmentID),
				zap.String("equipment_name", record.EquipmentName),
				zap.Int("days_remaining", status.DaysRemaining),
			)
		case models.CalibrationExpiring:
			summary.Expiring++
			s.logger.Warn("Equipment calibration expiring",
				zap.String("equipment_id", record.EquipmentID),
				zap.String("equipment_name", record.EquipmentName),
				zap.Int("days_remaining", status.DaysRemaining),
			)
		default:
			summary.Valid++
		}

		if err := s.store.UpdateCalibrationStatus(ctx, record.EquipmentID, status.Status); err != nil {
			s.logger.Error("Failed to update calibration status",
				zap.String("equipment_id", record.EquipmentID),
				zap.Error(err),
			)
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, status, today); err != nil {
				s.logger.Warn("Failed to refresh calibration cache",
					zap.String("equipment_id", record.EquipmentID),
					zap.Error(err),
				)
			}
		}
	}

	return summary, nil
}
