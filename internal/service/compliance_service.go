package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"owl-haccp/internal/catalog"
	"owl-haccp/internal/evaluator"
	"owl-haccp/internal/models"
	"owl-haccp/internal/notifier"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options 合规服务参数
type Options struct {
	Workers     int
	SummerStart time.Month
	SummerEnd   time.Month
	Location    *time.Location
	Clock       Clock
}

// ComplianceService 合规判定编排：读取快照 → 评估 → 保存 → 交接偏差
type ComplianceService struct {
	ccpCatalog   CCPCatalog
	pestCatalog  PestCatalog
	ccpRecords   CCPRecordStore
	pestChecks   PestCheckStore
	calibrations CalibrationStore
	cache        CalibrationStatusCache
	notifier     notifier.DeviationNotifier
	opts         Options
	logger       *zap.Logger
}

// NewComplianceService 创建合规服务
func NewComplianceService(
	ccpCatalog CCPCatalog,
	pestCatalog PestCatalog,
	ccpRecords CCPRecordStore,
	pestChecks PestCheckStore,
	calibrations CalibrationStore,
	cache CalibrationStatusCache,
	deviationNotifier notifier.DeviationNotifier,
	opts Options,
	logger *zap.Logger,
) *ComplianceService {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.SummerStart == 0 || opts.SummerEnd == 0 {
		opts.SummerStart, opts.SummerEnd = time.May, time.October
	}
	if deviationNotifier == nil {
		deviationNotifier = notifier.NopNotifier{}
	}
	return &ComplianceService{
		ccpCatalog:   ccpCatalog,
		pestCatalog:  pestCatalog,
		ccpRecords:   ccpRecords,
		pestChecks:   pestChecks,
		calibrations: calibrations,
		cache:        cache,
		notifier:     deviationNotifier,
		opts:         opts,
		logger:       logger,
	}
}

func (s *ComplianceService) today() time.Time {
	return models.DateOf(s.opts.Clock().In(s.opts.Location))
}

// ============================================
// CCP 监控记录
// ============================================

// RecordCCP 评估并保存一条 CCP 监控记录
// 限值只读取一次；不合格时恰好交接一个偏差事件。交接失败返回已保存的记录和 *NotificationError
func (s *ComplianceService) RecordCCP(ctx context.Context, ccpID string, input models.CCPRecordInput) (*models.CCPRecord, error) {
	def, err := s.ccpCatalog.GetCCPDefinition(ctx, ccpID)
	if err != nil {
		return nil, &CatalogError{Catalog: "ccp definition " + ccpID, Err: err}
	}
	if !def.IsActive() && !input.Historical {
		return nil, fmt.Errorf("%w: %s", models.ErrCCPInactive, ccpID)
	}

	limits := append([]models.CriticalLimit(nil), def.Limits...)

	record, err := evaluator.EvaluateCCPRecord(input, limits)
	if err != nil {
		return nil, err
	}

	now := s.opts.Clock()
	record.ID = uuid.New().String()
	record.CCPID = def.ID
	record.CreatedAt = now
	if record.RecordDate.IsZero() {
		record.RecordDate = s.today()
	}

	if err := s.ccpRecords.CreateCCPRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save ccp record: %w", err)
	}

	s.logger.Info("CCP record evaluated",
		zap.String("record_id", record.ID),
		zap.String("ccp_id", record.CCPID),
		zap.String("ccp_number", def.CCPNumber),
		zap.Bool("overall_within_limit", record.OverallWithinLimit),
		zap.Int("measurement_count", len(record.Measurements)),
	)

	if record.OverallWithinLimit {
		return record, nil
	}

	event := notifier.NewCCPDeviationEvent(record, evaluator.Violations(record, limits), now)
	ref, err := s.notifier.OnDeviation(ctx, event)
	// 多出口部分失败时同时返回引用 ID 和错误：引用照常保存，错误向上报告
	if ref != "" {
		record.DeviationRefID = &ref
		if setErr := s.ccpRecords.SetCCPDeviationRef(ctx, record.ID, ref); setErr != nil {
			s.logger.Error("Failed to save deviation reference",
				zap.String("record_id", record.ID),
				zap.String("deviation_ref_id", ref),
				zap.Error(setErr),
			)
		}
	}
	if err != nil {
		s.logger.Error("Failed to hand off ccp deviation",
			zap.String("record_id", record.ID),
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
		return record, &NotificationError{SourceID: record.ID, EventID: event.EventID, Err: err}
	}

	return record, nil
}

// BatchResult 批量评估中单条提交的结果（与输入顺序一致）
type BatchResult struct {
	Index  int
	CCPID  string
	Record *models.CCPRecord
	Err    error
}

// EvaluateBatch 并发评估多条 CCP 提交（工作池大小为 Options.Workers）
func (s *ComplianceService) EvaluateBatch(ctx context.Context, submissions []models.CCPSubmission) []BatchResult {
	results := make([]BatchResult, len(submissions))
	jobs := make(chan int)

	var wg sync.WaitGroup
	workers := s.opts.Workers
	if workers > len(submissions) {
		workers = len(submissions)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				sub := submissions[i]
				result := BatchResult{Index: i, CCPID: sub.CCPID}
				if err := ctx.Err(); err != nil {
					result.Err = err
				} else {
					result.Record, result.Err = s.RecordCCP(ctx, sub.CCPID, sub.Record)
				}
				results[i] = result
			}
		}()
	}

	for i := range submissions {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// VerifyCCPRecord 审核签字
func (s *ComplianceService) VerifyCCPRecord(ctx context.Context, recordID, verifier string) error {
	if strings.TrimSpace(verifier) == "" {
		return fmt.Errorf("verifier is required")
	}
	if err := s.ccpRecords.VerifyCCPRecord(ctx, recordID, verifier, s.opts.Clock()); err != nil {
		return err
	}
	s.logger.Info("CCP record verified",
		zap.String("record_id", recordID),
		zap.String("verified_by", verifier),
	)
	return nil
}

// ============================================
// 防虫检查
// ============================================

// RecordPestCheck 评估并保存一次防虫检查
// Season 为空时按检查日期推算；整体状态非 NORMAL 时交接一个偏差事件
func (s *ComplianceService) RecordPestCheck(ctx context.Context, input models.PestCheckInput) (*models.PestControlCheck, error) {
	if input.CheckDate.IsZero() {
		input.CheckDate = s.today()
	}
	if input.Season == "" {
		input.Season = evaluator.SeasonOf(input.CheckDate, s.opts.SummerStart, s.opts.SummerEnd)
	}

	standards, err := s.pestCatalog.GetPestStandards(ctx, input.Season)
	if err != nil {
		return nil, &CatalogError{Catalog: "pest standards " + string(input.Season), Err: err}
	}
	matrix, err := evaluator.NewPestThresholdMatrix(standards)
	if err != nil {
		return nil, err
	}
	locations, err := s.pestCatalog.GetTrapLocations(ctx)
	if err != nil {
		return nil, &CatalogError{Catalog: "trap locations", Err: err}
	}

	check, err := evaluator.EvaluatePestCheck(input, evaluator.NewTrapSnapshot(locations), matrix)
	if err != nil {
		return nil, err
	}

	if unconfigured := evaluator.UnconfiguredTraps(check); len(unconfigured) > 0 {
		s.logger.Warn("No pest standard configured for traps",
			zap.String("season", string(check.Season)),
			zap.Strings("trap_location_ids", unconfigured),
		)
	}

	now := s.opts.Clock()
	check.ID = uuid.New().String()
	check.CreatedAt = now

	if err := s.pestChecks.CreatePestCheck(ctx, check); err != nil {
		return nil, fmt.Errorf("failed to save pest check: %w", err)
	}

	s.logger.Info("Pest check evaluated",
		zap.String("check_id", check.ID),
		zap.String("season", string(check.Season)),
		zap.String("overall_status", string(check.OverallStatus)),
		zap.Int("trap_count", len(check.TrapChecks)),
	)

	if check.OverallStatus == models.PestStatusNormal {
		return check, nil
	}

	event := notifier.NewPestDeviationEvent(check, evaluator.TrapViolations(check), now)
	ref, err := s.notifier.OnDeviation(ctx, event)
	// 多出口部分失败时同时返回引用 ID 和错误：引用照常保存，错误向上报告
	if ref != "" {
		check.DeviationRefID = &ref
		if setErr := s.pestChecks.SetPestDeviationRef(ctx, check.ID, ref); setErr != nil {
			s.logger.Error("Failed to save deviation reference",
				zap.String("check_id", check.ID),
				zap.String("deviation_ref_id", ref),
				zap.Error(setErr),
			)
		}
	}
	if err != nil {
		s.logger.Error("Failed to hand off pest deviation",
			zap.String("check_id", check.ID),
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
		return check, &NotificationError{SourceID: check.ID, EventID: event.EventID, Err: err}
	}

	return check, nil
}

// VerifyPestCheck 审核签字
func (s *ComplianceService) VerifyPestCheck(ctx context.Context, checkID, verifier string) error {
	if strings.TrimSpace(verifier) == "" {
		return fmt.Errorf("verifier is required")
	}
	if err := s.pestChecks.VerifyPestCheck(ctx, checkID, verifier, s.opts.Clock()); err != nil {
		return err
	}
	s.logger.Info("Pest check verified",
		zap.String("check_id", checkID),
		zap.String("verified_by", verifier),
	)
	return nil
}

// ImportPestStandards 从 Excel 导入防虫标准，整体替换文件中出现的季节
func (s *ComplianceService) ImportPestStandards(ctx context.Context, r io.Reader) (int, error) {
	standards, err := catalog.ImportPestStandards(r)
	if err != nil {
		return 0, err
	}
	if err := s.pestCatalog.ReplacePestStandards(ctx, standards); err != nil {
		return 0, err
	}
	return len(standards), nil
}

// ExportPestStandards 导出全部季节的防虫标准为 Excel
func (s *ComplianceService) ExportPestStandards(ctx context.Context) (io.Reader, error) {
	var all []models.PestStandard
	for _, season := range []models.Season{models.SeasonWinter, models.SeasonSummer} {
		standards, err := s.pestCatalog.GetPestStandards(ctx, season)
		if err != nil {
			return nil, &CatalogError{Catalog: "pest standards " + string(season), Err: err}
		}
		all = append(all, standards...)
	}
	data, err := catalog.ExportPestStandards(all)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// ============================================
// 设备校准
// ============================================

// CalibrationStatus 查询设备校准状态（优先读当天缓存，否则重新计算）
func (s *ComplianceService) CalibrationStatus(ctx context.Context, equipmentID string) (models.CalibrationStatus, error) {
	today := s.today()

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, equipmentID, today)
		if err != nil {
			s.logger.Warn("Calibration cache unavailable",
				zap.String("equipment_id", equipmentID),
				zap.Error(err),
			)
		} else if ok {
			return *cached, nil
		}
	}

	record, err := s.calibrations.GetCalibrationRecord(ctx, equipmentID)
	if err != nil {
		return models.CalibrationStatus{}, err
	}

	status, err := evaluator.StatusOf(*record, today)
	if err != nil {
		return models.CalibrationStatus{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, status, today); err != nil {
			s.logger.Warn("Failed to cache calibration status",
				zap.String("equipment_id", equipmentID),
				zap.Error(err),
			)
		}
	}

	return status, nil
}

// RegisterEquipment 登记新设备的首次校准
func (s *ComplianceService) RegisterEquipment(ctx context.Context, equipmentID, name string, last time.Time, freq models.Frequency) (*models.CalibrationRecord, error) {
	if strings.TrimSpace(equipmentID) == "" {
		return nil, fmt.Errorf("equipment_id is required")
	}
	record, err := evaluator.NewCalibrationRecord(equipmentID, last, freq)
	if err != nil {
		return nil, err
	}
	record.EquipmentName = name
	return s.saveCalibration(ctx, record)
}

// RenewCalibration 记录一次新的校准（newFreq 为 nil 时沿用原周期）
func (s *ComplianceService) RenewCalibration(ctx context.Context, equipmentID string, date time.Time, newFreq *models.Frequency, result string) (*models.CalibrationRecord, error) {
	record, err := s.calibrations.GetCalibrationRecord(ctx, equipmentID)
	if err != nil {
		return nil, err
	}

	renewed, err := evaluator.Renew(*record, date, newFreq, result)
	if err != nil {
		return nil, err
	}
	return s.saveCalibration(ctx, renewed)
}

func (s *ComplianceService) saveCalibration(ctx context.Context, record models.CalibrationRecord) (*models.CalibrationRecord, error) {
	record.UpdatedAt = s.opts.Clock()

	status, err := evaluator.StatusOf(record, s.today())
	if err != nil {
		return nil, err
	}
	if err := s.calibrations.SaveCalibrationRecord(ctx, &record, status.Status); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, record.EquipmentID, record.NextCalibrationDate); err != nil {
			s.logger.Warn("Failed to invalidate calibration cache",
				zap.String("equipment_id", record.EquipmentID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("Calibration recorded",
		zap.String("equipment_id", record.EquipmentID),
		zap.String("frequency", string(record.Frequency)),
		zap.Time("next_calibration_date", record.NextCalibrationDate),
		zap.String("status", string(status.Status)),
	)
	return &record, nil
}

// IsNotificationError 判断错误是否仅为偏差交接失败（记录已保存）
func IsNotificationError(err error) bool {
	var ne *NotificationError
	return errors.As(err, &ne)
}
