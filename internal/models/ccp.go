package models

import "time"

// CCPStatus CCP 定义状态
type CCPStatus string

const (
	CCPStatusActive CCPStatus = "ACTIVE"
	CCPStatusMerged CCPStatus = "MERGED" // 已合并：不参与新记录选择，但历史记录仍可引用
)

// RecordStatus 监控记录状态（DRAFT → VERIFIED，仅一次）
type RecordStatus string

const (
	RecordStatusDraft    RecordStatus = "DRAFT"
	RecordStatusVerified RecordStatus = "VERIFIED"
)

// CriticalLimit 关键限值（Min/Max 至少一个存在，闭区间）
type CriticalLimit struct {
	ParameterCode string   `json:"parameter_code"`
	ParameterName string   `json:"parameter_name"`
	Min           *float64 `json:"min,omitempty"`
	Max           *float64 `json:"max,omitempty"`
	Unit          string   `json:"unit"`
}

// CCPDefinition CCP 定义（对应 ccp_definitions 表，由外部目录维护，本服务只读）
type CCPDefinition struct {
	ID        string          `json:"ccp_id"`
	CCPNumber string          `json:"ccp_number"`
	Process   string          `json:"process"`
	Limits    []CriticalLimit `json:"critical_limits"`
	Status    CCPStatus       `json:"status"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// IsActive 是否可用于新的监控记录
func (d *CCPDefinition) IsActive() bool {
	return d.Status == CCPStatusActive
}

// MeasurementInput 提交的单项测量值
// Value 为 nil 表示未填写，与读数 0 严格区分
type MeasurementInput struct {
	ParameterCode string   `json:"parameter_code"`
	Value         *float64 `json:"value"`
	Unit          string   `json:"unit"`
}

// MeasurementValue 测量值及其判定结果（WithinLimit 总是计算得出）
type MeasurementValue struct {
	ParameterCode string  `json:"parameter_code"`
	Value         float64 `json:"value"`
	Unit          string  `json:"unit"`
	WithinLimit   bool    `json:"within_limit"`
}

// CCPRecordInput CCP 监控记录提交内容
type CCPRecordInput struct {
	RecordDate      time.Time          `json:"record_date"`
	RecordTime      string             `json:"record_time"` // HH:MM
	LotNumber       string             `json:"lot_number"`
	BatchNumber     string             `json:"batch_number"`
	Measurements    []MeasurementInput `json:"measurements"`
	DeviationAction string             `json:"deviation_action,omitempty"`
	RecordedBy      string             `json:"recorded_by,omitempty"`
	// Historical 补录历史记录时允许引用已合并（MERGED）的 CCP
	Historical bool `json:"historical,omitempty"`
}

// CCPRecord CCP 监控记录（对应 ccp_records 表，只追加）
type CCPRecord struct {
	ID                 string             `json:"record_id"`
	CCPID              string             `json:"ccp_id"`
	RecordDate         time.Time          `json:"record_date"`
	RecordTime         string             `json:"record_time"`
	LotNumber          string             `json:"lot_number"`
	BatchNumber        string             `json:"batch_number"`
	Measurements       []MeasurementValue `json:"measurements"`
	OverallWithinLimit bool               `json:"overall_within_limit"`
	DeviationAction    *string            `json:"deviation_action,omitempty"`
	DeviationRefID     *string            `json:"deviation_ref_id,omitempty"`
	Status             RecordStatus       `json:"status"`
	RecordedBy         string             `json:"recorded_by,omitempty"`
	VerifiedBy         *string            `json:"verified_by,omitempty"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
}

// CCPSubmission 通过 Redis Stream 提交的 CCP 监控记录
type CCPSubmission struct {
	CCPID  string         `json:"ccp_id"`
	Record CCPRecordInput `json:"record"`
}
