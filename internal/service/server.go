package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"owl-haccp/common/database"
	"owl-haccp/common/mqtt"
	rediscommon "owl-haccp/common/redis"
	"owl-haccp/internal/config"
	"owl-haccp/internal/consumer"
	"owl-haccp/internal/notifier"
	"owl-haccp/internal/repository"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// HACCPService HACCP 合规服务（整合各层）
type HACCPService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqtt.Client
	logger      *zap.Logger

	// 各层组件
	compliance         *ComplianceService
	submissionConsumer *consumer.SubmissionConsumer
	calibrationSweeper *consumer.CalibrationSweeper
}

// NewHACCPService 创建 HACCP 合规服务
func NewHACCPService(cfg *config.Config, logger *zap.Logger) (*HACCPService, error) {
	ctx := context.Background()

	// 1. 连接数据库
	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	// 2. 连接 Redis
	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(ctx, redisClient); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. MQTT（仅在启用 mqtt 出口时连接）
	var mqttClient *mqtt.Client
	if hasTarget(cfg, "mqtt") {
		mqttClient, err = mqtt.NewClient(&cfg.MQTT)
		if err != nil {
			db.Close()
			redisClient.Close()
			return nil, err
		}
	}

	// 4. 创建 Repository 层
	ccpDefRepo := repository.NewCCPDefinitionRepository(db, logger)
	ccpRecordRepo := repository.NewCCPRecordRepository(db, logger)
	pestCatalogRepo := repository.NewPestCatalogRepository(db, logger)
	pestCheckRepo := repository.NewPestCheckRepository(db, logger)
	calibrationRepo := repository.NewCalibrationRepository(db, logger)

	// 5. 偏差出口
	var publisher notifier.Publisher
	if mqttClient != nil {
		publisher = mqttClient
	}
	deviationNotifier := BuildNotifier(cfg, redisClient, publisher, logger)

	// 6. 创建 Consumer 层缓存
	calibrationCache := consumer.NewCalibrationCache(cfg, redisClient, logger)

	// 7. 合规服务
	summerStart, summerEnd := cfg.SummerMonths()
	compliance := NewComplianceService(
		ccpDefRepo,
		pestCatalogRepo,
		ccpRecordRepo,
		pestCheckRepo,
		calibrationRepo,
		calibrationCache,
		deviationNotifier,
		Options{
			Workers:     cfg.HACCP.Evaluation.Workers,
			SummerStart: summerStart,
			SummerEnd:   summerEnd,
			Location:    cfg.Location(),
		},
		logger,
	)

	// 8. 后台消费者
	submissionConsumer := consumer.NewSubmissionConsumer(cfg, redisClient, compliance, logger)
	calibrationSweeper := consumer.NewCalibrationSweeper(cfg, calibrationRepo, calibrationCache, logger)

	return &HACCPService{
		config:             cfg,
		db:                 db,
		redisClient:        redisClient,
		mqttClient:         mqttClient,
		logger:             logger,
		compliance:         compliance,
		submissionConsumer: submissionConsumer,
		calibrationSweeper: calibrationSweeper,
	}, nil
}

// Compliance 返回合规服务（供其他入口调用）
func (s *HACCPService) Compliance() *ComplianceService {
	return s.compliance
}

// Start 启动服务（阻塞直到 ctx 取消或任一后台任务出错）
func (s *HACCPService) Start(ctx context.Context) error {
	s.logger.Info("Starting HACCP compliance service",
		zap.Strings("notifier_targets", s.config.HACCP.Notifier.Targets),
		zap.String("timezone", s.config.HACCP.Timezone),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := s.submissionConsumer.Start(ctx); err != nil {
			errChan <- fmt.Errorf("submission consumer: %w", err)
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		if err := s.calibrationSweeper.Start(ctx); err != nil {
			errChan <- fmt.Errorf("calibration sweeper: %w", err)
			cancel()
		}
	}()

	wg.Wait()
	close(errChan)

	return <-errChan
}

// Stop 停止服务
func (s *HACCPService) Stop() error {
	s.logger.Info("Stopping HACCP compliance service")

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	// 关闭数据库连接
	if err := database.Close(s.db); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	// 关闭 Redis 连接
	if err := rediscommon.Close(s.redisClient); err != nil {
		s.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}

	return nil
}

// BuildNotifier 按配置组装偏差出口；未配置时返回 NopNotifier
func BuildNotifier(cfg *config.Config, redisClient *redis.Client, publisher notifier.Publisher, logger *zap.Logger) notifier.DeviationNotifier {
	var targets []notifier.Target
	for _, name := range cfg.HACCP.Notifier.Targets {
		switch name {
		case "stream":
			targets = append(targets, notifier.Target{
				Name:     name,
				Notifier: notifier.NewStreamNotifier(redisClient, cfg.HACCP.Streams.DeviationEvents, logger),
			})
		case "mqtt":
			if publisher == nil {
				logger.Warn("MQTT notifier enabled without a connected client, skipping")
				continue
			}
			targets = append(targets, notifier.Target{
				Name:     name,
				Notifier: notifier.NewMQTTNotifier(publisher, cfg.HACCP.Notifier.TopicPrefix, cfg.MQTT.QoS, logger),
			})
		case "http":
			targets = append(targets, notifier.Target{
				Name: name,
				Notifier: notifier.NewHTTPNotifier(
					cfg.HACCP.Notifier.HTTPBaseURL,
					cfg.HACCP.Notifier.HTTPToken,
					time.Duration(cfg.HACCP.Notifier.HTTPTimeout)*time.Second,
					logger,
				),
			})
		default:
			logger.Warn("Unknown notifier target, skipping", zap.String("target", name))
		}
	}

	switch len(targets) {
	case 0:
		return notifier.NopNotifier{}
	case 1:
		return targets[0].Notifier
	default:
		return notifier.NewMultiNotifier(logger, targets...)
	}
}

func hasTarget(cfg *config.Config, name string) bool {
	for _, t := range cfg.HACCP.Notifier.Targets {
		if t == name {
			return true
		}
	}
	return false
}
