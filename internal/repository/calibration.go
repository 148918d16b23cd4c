package repository

import (
	"context"
	"database/sql"
	"fmt"

	"owl-haccp/internal/models"

	"go.uber.org/zap"
)

// CalibrationRepository 设备校准记录仓库
// next_calibration_date 与 status_cache 仅用于索引查询，合规判定时总是重新计算
type CalibrationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCalibrationRepository 创建校准记录仓库
func NewCalibrationRepository(db *sql.DB, logger *zap.Logger) *CalibrationRepository {
	return &CalibrationRepository{
		db:     db,
		logger: logger,
	}
}

const calibrationColumns = `
	equipment_id,
	equipment_name,
	last_calibration_date,
	frequency,
	next_calibration_date,
	calibration_result,
	updated_at
`

// GetCalibrationRecord 读取设备校准记录
func (r *CalibrationRepository) GetCalibrationRecord(ctx context.Context, equipmentID string) (*models.CalibrationRecord, error) {
	query := `SELECT ` + calibrationColumns + ` FROM calibration_records WHERE equipment_id = $1`

	record, err := scanCalibration(r.db.QueryRowContext(ctx, query, equipmentID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("calibration record %s: %w", equipmentID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get calibration record: %w", err)
	}
	return record, nil
}

// ListCalibrationRecords 列出全部设备校准记录
func (r *CalibrationRepository) ListCalibrationRecords(ctx context.Context) ([]models.CalibrationRecord, error) {
	query := `SELECT ` + calibrationColumns + ` FROM calibration_records ORDER BY next_calibration_date`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list calibration records: %w", err)
	}
	defer rows.Close()

	var records []models.CalibrationRecord
	for rows.Next() {
		record, err := scanCalibration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan calibration record: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate calibration records: %w", err)
	}

	return records, nil
}

// SaveCalibrationRecord 保存校准记录（UPSERT），同时刷新索引用的 status_cache
func (r *CalibrationRepository) SaveCalibrationRecord(ctx context.Context, record *models.CalibrationRecord, status models.CalibrationState) error {
	query := `
		INSERT INTO calibration_records (
			equipment_id,
			equipment_name,
			last_calibration_date,
			frequency,
			next_calibration_date,
			calibration_result,
			status_cache,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (equipment_id) DO UPDATE SET
			last_calibration_date = EXCLUDED.last_calibration_date,
			frequency = EXCLUDED.frequency,
			next_calibration_date = EXCLUDED.next_calibration_date,
			calibration_result = EXCLUDED.calibration_result,
			status_cache = EXCLUDED.status_cache,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		record.EquipmentID,
		record.EquipmentName,
		record.LastCalibrationDate,
		string(record.Frequency),
		record.NextCalibrationDate,
		record.Result,
		string(status),
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save calibration record: %w", err)
	}

	return nil
}

func scanCalibration(row rowScanner) (*models.CalibrationRecord, error) {
	var record models.CalibrationRecord
	var frequency string
	var result sql.NullString

	if err := row.Scan(
		&record.EquipmentID,
		&record.EquipmentName,
		&record.LastCalibrationDate,
		&frequency,
		&record.NextCalibrationDate,
		&result,
		&record.UpdatedAt,
	); err != nil {
		return nil, err
	}
	record.Frequency = models.Frequency(frequency)
	record.Result = result.String

	return &record, nil
}

// UpdateCalibrationStatus 刷新索引用的 status_cache（巡检时调用）
func (r *CalibrationRepository) UpdateCalibrationStatus(ctx context.Context, equipmentID string, status models.CalibrationState) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE calibration_records SET status_cache = $2 WHERE equipment_id = $1 AND status_cache IS DISTINCT FROM $2`,
		equipmentID, string(status),
	)
	if err != nil {
		return fmt.Errorf("failed to update calibration status: %w", err)
	}
	return nil
}
