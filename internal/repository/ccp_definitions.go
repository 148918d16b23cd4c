package repository

import (
	"context"
	"database/sql"
	"fmt"

	"owl-haccp/internal/catalog"
	"owl-haccp/internal/models"

	"go.uber.org/zap"
)

// CCPDefinitionRepository CCP 定义仓库（只读，表由管理端维护）
// 表 ccp_definitions 同时保留旧版 critical_limit(JSONB 对象) 和新版 critical_limits(JSONB 数组) 两列
type CCPDefinitionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCCPDefinitionRepository 创建 CCP 定义仓库
func NewCCPDefinitionRepository(db *sql.DB, logger *zap.Logger) *CCPDefinitionRepository {
	return &CCPDefinitionRepository{
		db:     db,
		logger: logger,
	}
}

const ccpDefinitionColumns = `
	ccp_id,
	ccp_number,
	process,
	critical_limit,
	critical_limits,
	status,
	updated_at
`

// GetCCPDefinition 按 ID 读取 CCP 定义（包括已合并的定义，供历史记录使用）
func (r *CCPDefinitionRepository) GetCCPDefinition(ctx context.Context, ccpID string) (*models.CCPDefinition, error) {
	if ccpID == "" {
		return nil, fmt.Errorf("ccp_id is required")
	}

	query := `SELECT ` + ccpDefinitionColumns + ` FROM ccp_definitions WHERE ccp_id = $1`

	def, err := r.scanDefinition(r.db.QueryRowContext(ctx, query, ccpID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("ccp definition %s: %w", ccpID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get ccp definition: %w", err)
	}

	return def, nil
}

// ListActiveCCPDefinitions 列出可用于新记录的 CCP 定义（排除 MERGED）
func (r *CCPDefinitionRepository) ListActiveCCPDefinitions(ctx context.Context) ([]models.CCPDefinition, error) {
	query := `SELECT ` + ccpDefinitionColumns + ` FROM ccp_definitions WHERE status = $1 ORDER BY ccp_number`

	rows, err := r.db.QueryContext(ctx, query, string(models.CCPStatusActive))
	if err != nil {
		return nil, fmt.Errorf("failed to list ccp definitions: %w", err)
	}
	defer rows.Close()

	var defs []models.CCPDefinition
	for rows.Next() {
		def, err := r.scanDefinition(rows)
		if err != nil {
			// 单条配置损坏不影响其他 CCP
			r.logger.Warn("Skipping malformed ccp definition", zap.Error(err))
			continue
		}
		defs = append(defs, *def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ccp definitions: %w", err)
	}

	return defs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *CCPDefinitionRepository) scanDefinition(row rowScanner) (*models.CCPDefinition, error) {
	var def models.CCPDefinition
	var status string
	var single, multi []byte

	if err := row.Scan(
		&def.ID,
		&def.CCPNumber,
		&def.Process,
		&single,
		&multi,
		&status,
		&def.UpdatedAt,
	); err != nil {
		return nil, err
	}

	limits, err := catalog.NormalizeLimits(single, multi)
	if err != nil {
		return nil, fmt.Errorf("ccp %s: %w", def.ID, err)
	}
	def.Limits = limits
	def.Status = models.CCPStatus(status)

	return &def, nil
}
