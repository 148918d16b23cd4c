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

// PestCheckRepository 防虫检查记录仓库
// trap_checks 以 JSONB 保存检查时的区域/类别快照
type PestCheckRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPestCheckRepository 创建防虫检查仓库
func NewPestCheckRepository(db *sql.DB, logger *zap.Logger) *PestCheckRepository {
	return &PestCheckRepository{
		db:     db,
		logger: logger,
	}
}

// CreatePestCheck 写入防虫检查记录
func (r *PestCheckRepository) CreatePestCheck(ctx context.Context, check *models.PestControlCheck) error {
	trapChecks, err := marshalJSONB(check.TrapChecks)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO pest_control_checks (
			check_id,
			check_date,
			season,
			trap_checks,
			overall_status,
			status,
			checked_by,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		check.ID,
		check.CheckDate,
		string(check.Season),
		trapChecks,
		string(check.OverallStatus),
		string(check.Status),
		check.CheckedBy,
		check.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create pest check: %w", err)
	}

	r.logger.Debug("Pest check created",
		zap.String("check_id", check.ID),
		zap.String("overall_status", string(check.OverallStatus)),
		zap.Int("trap_count", len(check.TrapChecks)),
	)

	return nil
}

// GetPestCheck 读取防虫检查记录
func (r *PestCheckRepository) GetPestCheck(ctx context.Context, checkID string) (*models.PestControlCheck, error) {
	query := `
		SELECT
			check_id,
			check_date,
			season,
			trap_checks,
			overall_status,
			deviation_ref_id,
			status,
			checked_by,
			verified_by,
			verified_at,
			created_at
		FROM pest_control_checks
		WHERE check_id = $1
	`

	var check models.PestControlCheck
	var season, overall, status string
	var trapChecks []byte
	var ref, verifiedBy sql.NullString
	var verifiedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, checkID).Scan(
		&check.ID,
		&check.CheckDate,
		&season,
		&trapChecks,
		&overall,
		&ref,
		&status,
		&check.CheckedBy,
		&verifiedBy,
		&verifiedAt,
		&check.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("pest check %s: %w", checkID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get pest check: %w", err)
	}

	if err := json.Unmarshal(trapChecks, &check.TrapChecks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trap checks: %w", err)
	}
	check.Season = models.Season(season)
	check.OverallStatus = models.PestStatus(overall)
	check.DeviationRefID = stringPtr(ref)
	check.Status = models.RecordStatus(status)
	check.VerifiedBy = stringPtr(verifiedBy)
	check.VerifiedAt = timePtr(verifiedAt)

	return &check, nil
}

// SetPestDeviationRef 记录外部纠正措施引用 ID（仅 DRAFT）
func (r *PestCheckRepository) SetPestDeviationRef(ctx context.Context, checkID, referenceID string) error {
	return updateDraft(ctx, r.db, "pest_control_checks", "check_id", checkID, "deviation_ref_id = $2", referenceID)
}

// VerifyPestCheck 审核签字（DRAFT → VERIFIED，只允许一次）
func (r *PestCheckRepository) VerifyPestCheck(ctx context.Context, checkID, verifier string, at time.Time) error {
	return updateDraft(ctx, r.db, "pest_control_checks", "check_id", checkID,
		"status = 'VERIFIED', verified_by = $2, verified_at = $3", verifier, at)
}
