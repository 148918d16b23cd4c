package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"owl-haccp/internal/models"

	"go.uber.org/zap"
)

// CCPRecordRepository CCP 监控记录仓库（只追加；审核后不可修改）
type CCPRecordRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCCPRecordRepository 创建 CCP 监控记录仓库
func NewCCPRecordRepository(db *sql.DB, logger *zap.Logger) *CCPRecordRepository {
	return &CCPRecordRepository{
		db:     db,
		logger: logger,
	}
}

// CreateCCPRecord 写入一条新的 CCP 监控记录（判定结果随记录一起保存）
func (r *CCPRecordRepository) CreateCCPRecord(ctx context.Context, record *models.CCPRecord) error {
	measurements, err := marshalJSONB(record.Measurements)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO ccp_records (
			record_id,
			ccp_id,
			record_date,
			record_time,
			lot_number,
			batch_number,
			measurements,
			overall_within_limit,
			deviation_action,
			status,
			recorded_by,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.db.ExecContext(ctx, query,
		record.ID,
		record.CCPID,
		record.RecordDate,
		record.RecordTime,
		record.LotNumber,
		record.BatchNumber,
		measurements,
		record.OverallWithinLimit,
		nullString(record.DeviationAction),
		string(record.Status),
		record.RecordedBy,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create ccp record: %w", err)
	}

	r.logger.Debug("CCP record created",
		zap.String("record_id", record.ID),
		zap.String("ccp_id", record.CCPID),
		zap.Bool("overall_within_limit", record.OverallWithinLimit),
	)

	return nil
}

// GetCCPRecord 读取 CCP 监控记录
func (r *CCPRecordRepository) GetCCPRecord(ctx context.Context, recordID string) (*models.CCPRecord, error) {
	query := `
		SELECT
			record_id,
			ccp_id,
			record_date,
			record_time,
			lot_number,
			batch_number,
			measurements,
			overall_within_limit,
			deviation_action,
			deviation_ref_id,
			status,
			recorded_by,
			verified_by,
			verified_at,
			created_at
		FROM ccp_records
		WHERE record_id = $1
	`

	var record models.CCPRecord
	var measurements []byte
	var action, ref, verifiedBy sql.NullString
	var verifiedAt sql.NullTime
	var status string

	err := r.db.QueryRowContext(ctx, query, recordID).Scan(
		&record.ID,
		&record.CCPID,
		&record.RecordDate,
		&record.RecordTime,
		&record.LotNumber,
		&record.BatchNumber,
		&measurements,
		&record.OverallWithinLimit,
		&action,
		&ref,
		&status,
		&record.RecordedBy,
		&verifiedBy,
		&verifiedAt,
		&record.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("ccp record %s: %w", recordID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get ccp record: %w", err)
	}

	if err := json.Unmarshal(measurements, &record.Measurements); err != nil {
		return nil, fmt.Errorf("failed to unmarshal measurements: %w", err)
	}
	record.DeviationAction = stringPtr(action)
	record.DeviationRefID = stringPtr(ref)
	record.Status = models.RecordStatus(status)
	record.VerifiedBy = stringPtr(verifiedBy)
	record.VerifiedAt = timePtr(verifiedAt)

	return &record, nil
}

// SetCCPDeviationRef 记录外部纠正措施系统返回的引用 ID（仅 DRAFT）
func (r *CCPRecordRepository) SetCCPDeviationRef(ctx context.Context, recordID, referenceID string) error {
	return updateDraft(ctx, r.db, "ccp_records", "record_id", recordID, "deviation_ref_id = $2", referenceID)
}

// VerifyCCPRecord 审核签字（DRAFT → VERIFIED，只允许一次）
func (r *CCPRecordRepository) VerifyCCPRecord(ctx context.Context, recordID, verifier string, at time.Time) error {
	return updateDraft(ctx, r.db, "ccp_records", "record_id", recordID,
		"status = 'VERIFIED', verified_by = $2, verified_at = $3", verifier, at)
}
