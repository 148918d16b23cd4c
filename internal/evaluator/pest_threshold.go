package evaluator

import (
	"fmt"

	"owl-haccp/internal/models"
)

type standardKey struct {
	season   models.Season
	grade    models.ZoneGrade
	category models.HazardCategory
	level    int
}

// PestThresholdMatrix 防虫标准快照（构建后只读，可并发使用）
type PestThresholdMatrix struct {
	standards map[standardKey]models.PestStandard
}

// NewPestThresholdMatrix 由标准列表构建快照
// 同一组合下同时存在 1/2 级标准时，要求 level2.UpperLimit >= level1.UpperLimit
func NewPestThresholdMatrix(standards []models.PestStandard) (*PestThresholdMatrix, error) {
	m := &PestThresholdMatrix{standards: make(map[standardKey]models.PestStandard, len(standards))}

	for _, s := range standards {
		if s.Level != 1 && s.Level != 2 {
			return nil, fmt.Errorf("%w: level must be 1 or 2, got %d (%s/%s/%s)",
				ErrInconsistentStandards, s.Level, s.Season, s.ZoneGrade, s.HazardCategory)
		}
		if s.UpperLimit < 0 {
			return nil, fmt.Errorf("%w: negative upper limit %d (%s/%s/%s level %d)",
				ErrInconsistentStandards, s.UpperLimit, s.Season, s.ZoneGrade, s.HazardCategory, s.Level)
		}
		key := standardKey{s.Season, s.ZoneGrade, s.HazardCategory, s.Level}
		if _, dup := m.standards[key]; dup {
			return nil, fmt.Errorf("%w: duplicate standard %s/%s/%s level %d",
				ErrInconsistentStandards, s.Season, s.ZoneGrade, s.HazardCategory, s.Level)
		}
		m.standards[key] = s
	}

	for key, l1 := range m.standards {
		if key.level != 1 {
			continue
		}
		key.level = 2
		if l2, ok := m.standards[key]; ok && l2.UpperLimit < l1.UpperLimit {
			return nil, fmt.Errorf("%w: %s/%s/%s level2 upper %d < level1 upper %d",
				ErrInconsistentStandards, key.season, key.grade, key.category, l2.UpperLimit, l1.UpperLimit)
		}
	}

	return m, nil
}

// Lookup 查找指定组合和级别的标准
func (m *PestThresholdMatrix) Lookup(season models.Season, grade models.ZoneGrade, category models.HazardCategory, level int) (models.PestStandard, bool) {
	s, ok := m.standards[standardKey{season, grade, category, level}]
	return s, ok
}

// Len 快照中的标准数量
func (m *PestThresholdMatrix) Len() int {
	return len(m.standards)
}

// EvaluateCatchCount 判定捕获数量的级别
// 先比较 2 级再比较 1 级，等于上限即视为超标；没有任何标准时返回 0 级并标记 Unconfigured
func (m *PestThresholdMatrix) EvaluateCatchCount(count int, grade models.ZoneGrade, category models.HazardCategory, season models.Season) models.TrapEvaluation {
	l2, hasL2 := m.Lookup(season, grade, category, 2)
	if hasL2 && count >= l2.UpperLimit {
		return models.TrapEvaluation{Level: 2, Status: StatusForLevel(2)}
	}

	l1, hasL1 := m.Lookup(season, grade, category, 1)
	if hasL1 && count >= l1.UpperLimit {
		return models.TrapEvaluation{Level: 1, Status: StatusForLevel(1)}
	}

	return models.TrapEvaluation{
		Level:        0,
		Status:       StatusForLevel(0),
		Unconfigured: !hasL1 && !hasL2,
	}
}

// ValidateCatchCount 捕获数量必须填写且不能为负数
func ValidateCatchCount(in models.TrapCheckInput) (int, error) {
	if in.TrapLocationID == "" {
		return 0, &InvalidMeasurementError{Field: "trap_location_id", Reason: "trap location is required"}
	}
	if in.CatchCount == nil {
		return 0, &InvalidMeasurementError{Field: in.TrapLocationID, Reason: "catch count is missing"}
	}
	if *in.CatchCount < 0 {
		return 0, &InvalidMeasurementError{Field: in.TrapLocationID, Reason: "catch count is negative"}
	}
	return *in.CatchCount, nil
}

// StatusForLevel 级别到状态的映射
func StatusForLevel(level int) models.PestStatus {
	switch {
	case level >= 2:
		return models.PestStatusLevel2
	case level == 1:
		return models.PestStatusLevel1
	default:
		return models.PestStatusNormal
	}
}
