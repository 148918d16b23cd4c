package evaluator

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyMeasurementSet 没有任何测量值的记录不能视为合规
	ErrEmptyMeasurementSet = errors.New("measurement set is empty")
	// ErrMissingDeviationAction 不合格记录必须填写纠偏措施
	ErrMissingDeviationAction = errors.New("deviation action is required for a non-conforming record")
	// ErrInvalidLimit 关键限值配置不合法（目录数据问题）
	ErrInvalidLimit = errors.New("invalid critical limit")
	// ErrInconsistentStandards 防虫标准配置不一致
	ErrInconsistentStandards = errors.New("inconsistent pest standards")
	// ErrUnknownFrequency 未知校准周期
	ErrUnknownFrequency = errors.New("unknown calibration frequency")
	// ErrRenewalBeforeLast 新校准日期早于上次校准日期
	ErrRenewalBeforeLast = errors.New("renewal date is before last calibration date")
)

// UnknownParameterError 测量参数不在 CCP 的限值集合中
type UnknownParameterError struct {
	ParameterCode string
}

func (e *UnknownParameterError) Error() string {
	return fmt.Sprintf("unknown parameter code: %q", e.ParameterCode)
}

// InvalidMeasurementError 测量值缺失或不是有效数字
type InvalidMeasurementError struct {
	Field  string // parameter_code 或 trap_location_id
	Reason string
}

func (e *InvalidMeasurementError) Error() string {
	return fmt.Sprintf("invalid measurement %q: %s", e.Field, e.Reason)
}

// EmptyMeasurementSetError 提交的记录没有任何测量项
type EmptyMeasurementSetError struct {
	Source string // ccp_record 或 pest_check
}

func (e *EmptyMeasurementSetError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, ErrEmptyMeasurementSet)
}

func (e *EmptyMeasurementSetError) Is(target error) bool {
	return target == ErrEmptyMeasurementSet
}

// MissingDeviationActionError 不合格记录未填写纠偏措施
type MissingDeviationActionError struct {
	FailedParameters []string
}

func (e *MissingDeviationActionError) Error() string {
	return fmt.Sprintf("%v (failed parameters: %v)", ErrMissingDeviationAction, e.FailedParameters)
}

func (e *MissingDeviationActionError) Is(target error) bool {
	return target == ErrMissingDeviationAction
}

// UnknownTrapError 捕虫器不在当前配置快照中
type UnknownTrapError struct {
	TrapLocationID string
}

func (e *UnknownTrapError) Error() string {
	return fmt.Sprintf("unknown trap location: %q", e.TrapLocationID)
}

// IsValidationError 判断是否为提交内容校验失败（重试无意义）
func IsValidationError(err error) bool {
	var unknownParam *UnknownParameterError
	var invalid *InvalidMeasurementError
	var unknownTrap *UnknownTrapError
	return errors.As(err, &unknownParam) ||
		errors.As(err, &invalid) ||
		errors.As(err, &unknownTrap) ||
		errors.Is(err, ErrEmptyMeasurementSet) ||
		errors.Is(err, ErrMissingDeviationAction) ||
		errors.Is(err, ErrUnknownFrequency) ||
		errors.Is(err, ErrRenewalBeforeLast)
}
