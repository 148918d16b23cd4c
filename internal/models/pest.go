package models

import "time"

// Season 季节（防虫标准按季节区分）
type Season string

const (
	SeasonWinter Season = "WINTER"
	SeasonSummer Season = "SUMMER"
)

// ZoneGrade 区域等级
type ZoneGrade string

const (
	ZoneGradeClean   ZoneGrade = "CLEAN"   // 清洁区（低容忍）
	ZoneGradeGeneral ZoneGrade = "GENERAL" // 一般区
)

// HazardCategory 虫害类别
type HazardCategory string

const (
	HazardAirborne HazardCategory = "AIRBORNE" // 飞虫
	HazardCrawling HazardCategory = "CRAWLING" // 爬虫
	HazardRodent   HazardCategory = "RODENT"   // 鼠类
)

// PestStatus 捕获判定状态（单个捕虫器和整体检查共用）
type PestStatus string

const (
	PestStatusNormal PestStatus = "NORMAL"
	PestStatusLevel1 PestStatus = "LEVEL1"
	PestStatusLevel2 PestStatus = "LEVEL2"
)

// PestZone 防虫区域
type PestZone struct {
	ID    string    `json:"zone_id"`
	Name  string    `json:"zone_name"`
	Grade ZoneGrade `json:"grade"`
}

// TrapLocation 捕虫器位置（ZoneGrade 为读取时解析出的区域等级）
type TrapLocation struct {
	ID             string         `json:"trap_location_id"`
	ZoneID         string         `json:"zone_id"`
	ZoneGrade      ZoneGrade      `json:"zone_grade"`
	HazardCategory HazardCategory `json:"hazard_category"`
	TrapType       string         `json:"trap_type"`
}

// PestStandard 防虫标准（键：season, zone_grade, hazard_category, level）
type PestStandard struct {
	Season         Season         `json:"season"`
	ZoneGrade      ZoneGrade      `json:"zone_grade"`
	HazardCategory HazardCategory `json:"hazard_category"`
	Level          int            `json:"level"` // 1 或 2
	UpperLimit     int            `json:"upper_limit"`
	LowerLimit     int            `json:"lower_limit"`
}

// TrapEvaluation 单个捕虫器判定结果
type TrapEvaluation struct {
	Level  int        `json:"level"` // 0, 1, 2
	Status PestStatus `json:"status"`
	// Unconfigured 没有任何标准可用于该组合，Level 0 并不代表已验证正常
	Unconfigured bool `json:"unconfigured,omitempty"`
}

// TrapCheck 捕虫器检查快照
// ZoneGrade/HazardCategory 在检查时复制，之后修改区域配置不影响历史判定
type TrapCheck struct {
	TrapLocationID string         `json:"trap_location_id"`
	ZoneGrade      ZoneGrade      `json:"zone_grade"`
	HazardCategory HazardCategory `json:"hazard_category"`
	CatchCount     int            `json:"catch_count"`
	Evaluation     TrapEvaluation `json:"evaluation"`
}

// TrapCheckInput 提交的捕虫器计数（CatchCount 为 nil 表示未填写）
type TrapCheckInput struct {
	TrapLocationID string `json:"trap_location_id"`
	CatchCount     *int   `json:"catch_count"`
}

// PestCheckInput 防虫检查提交内容（Season 为空时按检查日期推算）
type PestCheckInput struct {
	CheckDate  time.Time        `json:"check_date"`
	Season     Season           `json:"season,omitempty"`
	TrapChecks []TrapCheckInput `json:"trap_checks"`
	CheckedBy  string           `json:"checked_by,omitempty"`
}

// PestControlCheck 防虫检查记录（对应 pest_control_checks 表）
type PestControlCheck struct {
	ID             string       `json:"check_id"`
	CheckDate      time.Time    `json:"check_date"`
	Season         Season       `json:"season"`
	TrapChecks     []TrapCheck  `json:"trap_checks"`
	OverallStatus  PestStatus   `json:"overall_status"`
	DeviationRefID *string      `json:"deviation_ref_id,omitempty"`
	Status         RecordStatus `json:"status"`
	CheckedBy      string       `json:"checked_by,omitempty"`
	VerifiedBy     *string      `json:"verified_by,omitempty"`
	VerifiedAt     *time.Time   `json:"verified_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}
