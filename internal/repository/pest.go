package repository

import (
	"context"
	"database/sql"
	"fmt"

	"owl-haccp/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PestCatalogRepository 防虫标准与捕虫器位置仓库
type PestCatalogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPestCatalogRepository 创建防虫目录仓库
func NewPestCatalogRepository(db *sql.DB, logger *zap.Logger) *PestCatalogRepository {
	return &PestCatalogRepository{
		db:     db,
		logger: logger,
	}
}

// GetPestStandards 读取某季节的全部防虫标准
func (r *PestCatalogRepository) GetPestStandards(ctx context.Context, season models.Season) ([]models.PestStandard, error) {
	query := `
		SELECT season, zone_grade, hazard_category, level, upper_limit, lower_limit
		FROM pest_standards
		WHERE season = $1
		ORDER BY zone_grade, hazard_category, level
	`

	rows, err := r.db.QueryContext(ctx, query, string(season))
	if err != nil {
		return nil, fmt.Errorf("failed to query pest standards: %w", err)
	}
	defer rows.Close()

	var standards []models.PestStandard
	for rows.Next() {
		var s models.PestStandard
		var seasonStr, grade, category string
		var lower sql.NullInt64
		if err := rows.Scan(&seasonStr, &grade, &category, &s.Level, &s.UpperLimit, &lower); err != nil {
			return nil, fmt.Errorf("failed to scan pest standard: %w", err)
		}
		s.Season = models.Season(seasonStr)
		s.ZoneGrade = models.ZoneGrade(grade)
		s.HazardCategory = models.HazardCategory(category)
		s.LowerLimit = int(lower.Int64)
		standards = append(standards, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pest standards: %w", err)
	}

	return standards, nil
}

// GetTrapLocations 读取启用的捕虫器位置（区域等级通过 pest_zones 解析）
func (r *PestCatalogRepository) GetTrapLocations(ctx context.Context) ([]models.TrapLocation, error) {
	query := `
		SELECT
			t.trap_location_id,
			t.zone_id,
			z.grade,
			t.hazard_category,
			t.trap_type
		FROM trap_locations t
		JOIN pest_zones z ON z.zone_id = t.zone_id
		WHERE t.is_active = TRUE
		ORDER BY t.trap_location_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query trap locations: %w", err)
	}
	defer rows.Close()

	var locations []models.TrapLocation
	for rows.Next() {
		var loc models.TrapLocation
		var grade, category string
		if err := rows.Scan(&loc.ID, &loc.ZoneID, &grade, &category, &loc.TrapType); err != nil {
			return nil, fmt.Errorf("failed to scan trap location: %w", err)
		}
		loc.ZoneGrade = models.ZoneGrade(grade)
		loc.HazardCategory = models.HazardCategory(category)
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trap locations: %w", err)
	}

	return locations, nil
}

// ReplacePestStandards 在一个事务中替换导入文件涉及的季节的全部标准
func (r *PestCatalogRepository) ReplacePestStandards(ctx context.Context, standards []models.PestStandard) error {
	seasonSet := make(map[models.Season]struct{})
	for _, s := range standards {
		seasonSet[s.Season] = struct{}{}
	}
	seasons := make([]string, 0, len(seasonSet))
	for s := range seasonSet {
		seasons = append(seasons, string(s))
	}
	if len(seasons) == 0 {
		return fmt.Errorf("no pest standards to import")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pest_standards WHERE season = ANY($1)`, pq.Array(seasons)); err != nil {
		return fmt.Errorf("failed to delete pest standards: %w", err)
	}

	insert := `
		INSERT INTO pest_standards (season, zone_grade, hazard_category, level, upper_limit, lower_limit)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, s := range standards {
		if _, err := tx.ExecContext(ctx, insert,
			string(s.Season), string(s.ZoneGrade), string(s.HazardCategory), s.Level, s.UpperLimit, s.LowerLimit,
		); err != nil {
			return fmt.Errorf("failed to insert pest standard: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit pest standards: %w", err)
	}

	r.logger.Info("Pest standards replaced",
		zap.Strings("seasons", seasons),
		zap.Int("count", len(standards)),
	)
	return nil
}
