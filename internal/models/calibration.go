package models

import "time"

// Frequency 校准周期
type Frequency string

const (
	FrequencyYearly    Frequency = "YEARLY"
	FrequencyQuarterly Frequency = "QUARTERLY"
	FrequencyMonthly   Frequency = "MONTHLY"
	FrequencyWeekly    Frequency = "WEEKLY"
)

// CalibrationState 校准有效状态（由两个日期计算得出，不独立存储）
type CalibrationState string

const (
	CalibrationValid    CalibrationState = "VALID"
	CalibrationExpiring CalibrationState = "EXPIRING"
	CalibrationExpired  CalibrationState = "EXPIRED"
)

// CalibrationRecord 设备校准记录（对应 calibration_records 表）
type CalibrationRecord struct {
	EquipmentID         string    `json:"equipment_id"`
	EquipmentName       string    `json:"equipment_name"`
	LastCalibrationDate time.Time `json:"last_calibration_date"`
	Frequency           Frequency `json:"frequency"`
	NextCalibrationDate time.Time `json:"next_calibration_date"`
	Result              string    `json:"calibration_result,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// CalibrationStatus 校准状态查询结果
type CalibrationStatus struct {
	EquipmentID         string           `json:"equipment_id"`
	Status              CalibrationState `json:"status"`
	NextCalibrationDate time.Time        `json:"next_calibration_date"`
	DaysRemaining       int              `json:"days_remaining"`
}
