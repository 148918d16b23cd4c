package models

import "time"

// DeviationSourceType 偏差来源
type DeviationSourceType string

const (
	DeviationSourceCCP  DeviationSourceType = "CCP"
	DeviationSourcePest DeviationSourceType = "PEST"
)

// DeviationKind 偏差类型
type DeviationKind string

const (
	DeviationCCPLimitExceeded  DeviationKind = "CCP_LIMIT_EXCEEDED"
	DeviationPestLevelExceeded DeviationKind = "PEST_LEVEL_EXCEEDED"
)

// ParameterViolation 单项超限明细
type ParameterViolation struct {
	ParameterCode string        `json:"parameter_code"`
	MeasuredValue float64       `json:"measured_value"`
	Limit         CriticalLimit `json:"limit"`
}

// TrapViolation 单个捕虫器超标明细
type TrapViolation struct {
	TrapLocationID string         `json:"trap_location_id"`
	ZoneGrade      ZoneGrade      `json:"zone_grade"`
	HazardCategory HazardCategory `json:"hazard_category"`
	CatchCount     int            `json:"catch_count"`
	Level          int            `json:"level"`
}

// DeviationEvent 交给外部纠正措施系统的偏差事件
// 单参数字段取第一项违规，完整明细见 Violations / Traps
type DeviationEvent struct {
	EventID       string               `json:"event_id"`
	SourceType    DeviationSourceType  `json:"source_type"`
	Kind          DeviationKind        `json:"kind"`
	SourceID      string               `json:"source_id"`
	ParameterCode *string              `json:"parameter_code,omitempty"`
	MeasuredValue *float64             `json:"measured_value,omitempty"`
	Limit         *CriticalLimit       `json:"limit,omitempty"`
	Level         *int                 `json:"level,omitempty"`
	Violations    []ParameterViolation `json:"violations,omitempty"`
	Traps         []TrapViolation      `json:"traps,omitempty"`
	Details       string               `json:"details,omitempty"`
	Timestamp     time.Time            `json:"timestamp"`
}
