package evaluator

import (
	"time"

	"owl-haccp/internal/models"
)

// TrapSnapshot 检查开始时读取的捕虫器配置快照（trap_location_id → 位置）
type TrapSnapshot map[string]models.TrapLocation

// NewTrapSnapshot 由位置列表构建快照
func NewTrapSnapshot(locations []models.TrapLocation) TrapSnapshot {
	snapshot := make(TrapSnapshot, len(locations))
	for _, loc := range locations {
		snapshot[loc.ID] = loc
	}
	return snapshot
}

// CalculateOverallStatus 汇总整体状态：任一 2 级 → LEVEL2，否则任一 1 级 → LEVEL1，否则 NORMAL
// 只使用已存储的判定结果，不重新读取区域配置；结果与顺序无关
func CalculateOverallStatus(trapChecks []models.TrapCheck) models.PestStatus {
	worst := 0
	for _, tc := range trapChecks {
		if tc.Evaluation.Level > worst {
			worst = tc.Evaluation.Level
		}
	}
	return StatusForLevel(worst)
}

// EvaluatePestCheck 对一次防虫检查的所有捕虫器计数进行判定
// 区域等级和虫害类别从快照复制到每条 TrapCheck 中
func EvaluatePestCheck(input models.PestCheckInput, traps TrapSnapshot, matrix *PestThresholdMatrix) (*models.PestControlCheck, error) {
	if len(input.TrapChecks) == 0 {
		return nil, &EmptyMeasurementSetError{Source: "pest_check"}
	}

	seen := make(map[string]struct{}, len(input.TrapChecks))
	checks := make([]models.TrapCheck, 0, len(input.TrapChecks))

	for _, in := range input.TrapChecks {
		count, err := ValidateCatchCount(in)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[in.TrapLocationID]; dup {
			return nil, &InvalidMeasurementError{Field: in.TrapLocationID, Reason: "trap checked more than once"}
		}
		seen[in.TrapLocationID] = struct{}{}

		loc, ok := traps[in.TrapLocationID]
		if !ok {
			return nil, &UnknownTrapError{TrapLocationID: in.TrapLocationID}
		}

		checks = append(checks, models.TrapCheck{
			TrapLocationID: loc.ID,
			ZoneGrade:      loc.ZoneGrade,
			HazardCategory: loc.HazardCategory,
			CatchCount:     count,
			Evaluation:     matrix.EvaluateCatchCount(count, loc.ZoneGrade, loc.HazardCategory, input.Season),
		})
	}

	return &models.PestControlCheck{
		CheckDate:     models.DateOf(input.CheckDate),
		Season:        input.Season,
		TrapChecks:    checks,
		OverallStatus: CalculateOverallStatus(checks),
		Status:        models.RecordStatusDraft,
		CheckedBy:     input.CheckedBy,
	}, nil
}

// UnconfiguredTraps 返回没有配置任何标准的捕虫器
func UnconfiguredTraps(check *models.PestControlCheck) []string {
	var ids []string
	for _, tc := range check.TrapChecks {
		if tc.Evaluation.Unconfigured {
			ids = append(ids, tc.TrapLocationID)
		}
	}
	return ids
}

// TrapViolations 返回超标（1 级及以上）的捕虫器明细
func TrapViolations(check *models.PestControlCheck) []models.TrapViolation {
	var violations []models.TrapViolation
	for _, tc := range check.TrapChecks {
		if tc.Evaluation.Level == 0 {
			continue
		}
		violations = append(violations, models.TrapViolation{
			TrapLocationID: tc.TrapLocationID,
			ZoneGrade:      tc.ZoneGrade,
			HazardCategory: tc.HazardCategory,
			CatchCount:     tc.CatchCount,
			Level:          tc.Evaluation.Level,
		})
	}
	return violations
}

// SeasonOf 按月份推算季节：summerStart..summerEnd（含）为夏季，其余为冬季
func SeasonOf(date time.Time, summerStart, summerEnd time.Month) models.Season {
	m := date.Month()
	if summerStart <= summerEnd {
		if m >= summerStart && m <= summerEnd {
			return models.SeasonSummer
		}
		return models.SeasonWinter
	}
	// 跨年区间（如南半球 11 月到 3 月）
	if m >= summerStart || m <= summerEnd {
		return models.SeasonSummer
	}
	return models.SeasonWinter
}
