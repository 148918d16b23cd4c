package notifier

import (
	"fmt"
	"strings"
	"time"

	"owl-haccp/internal/models"

	"github.com/google/uuid"
)

// NewCCPDeviationEvent 构建 CCP 超限事件（一条记录只生成一个事件）
func NewCCPDeviationEvent(record *models.CCPRecord, violations []models.ParameterViolation, now time.Time) models.DeviationEvent {
	event := models.DeviationEvent{
		EventID:    uuid.New().String(),
		SourceType: models.DeviationSourceCCP,
		Kind:       models.DeviationCCPLimitExceeded,
		SourceID:   record.ID,
		Violations: violations,
		Timestamp:  now.UTC(),
	}

	if len(violations) > 0 {
		first := violations[0]
		code := first.ParameterCode
		value := first.MeasuredValue
		limit := first.Limit
		event.ParameterCode = &code
		event.MeasuredValue = &value
		event.Limit = &limit
	}

	codes := make([]string, 0, len(violations))
	for _, v := range violations {
		codes = append(codes, fmt.Sprintf("%s=%g", v.ParameterCode, v.MeasuredValue))
	}
	event.Details = fmt.Sprintf("ccp %s lot %s: %s", record.CCPID, record.LotNumber, strings.Join(codes, ", "))
	if record.DeviationAction != nil {
		event.Details += "; action: " + *record.DeviationAction
	}

	return event
}

// NewPestDeviationEvent 构建防虫超标事件（Level 为整体状态对应的级别）
func NewPestDeviationEvent(check *models.PestControlCheck, violations []models.TrapViolation, now time.Time) models.DeviationEvent {
	level := 0
	for _, v := range violations {
		if v.Level > level {
			level = v.Level
		}
	}

	traps := make([]string, 0, len(violations))
	for _, v := range violations {
		traps = append(traps, fmt.Sprintf("%s(L%d,%d)", v.TrapLocationID, v.Level, v.CatchCount))
	}

	return models.DeviationEvent{
		EventID:    uuid.New().String(),
		SourceType: models.DeviationSourcePest,
		Kind:       models.DeviationPestLevelExceeded,
		SourceID:   check.ID,
		Level:      &level,
		Traps:      violations,
		Details: fmt.Sprintf("pest check %s (%s) %s: %s",
			check.CheckDate.Format("2006-01-02"), check.Season, check.OverallStatus, strings.Join(traps, ", ")),
		Timestamp: now.UTC(),
	}
}
