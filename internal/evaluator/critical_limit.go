package evaluator

import (
	"fmt"
	"math"

	"owl-haccp/internal/models"
)

// EvaluateLimit 判断测量值是否在关键限值内（闭区间，未设置的边界不限制）
func EvaluateLimit(value float64, limit models.CriticalLimit) bool {
	if limit.Min != nil && value < *limit.Min {
		return false
	}
	if limit.Max != nil && value > *limit.Max {
		return false
	}
	return true
}

// ValidateLimit 校验限值配置：至少一个边界，且 Min <= Max
func ValidateLimit(limit models.CriticalLimit) error {
	if limit.ParameterCode == "" {
		return fmt.Errorf("%w: parameter_code is required", ErrInvalidLimit)
	}
	if limit.Min == nil && limit.Max == nil {
		return fmt.Errorf("%w: %s has neither min nor max", ErrInvalidLimit, limit.ParameterCode)
	}
	if (limit.Min != nil && !isFinite(*limit.Min)) || (limit.Max != nil && !isFinite(*limit.Max)) {
		return fmt.Errorf("%w: %s has a non-finite bound", ErrInvalidLimit, limit.ParameterCode)
	}
	if limit.Min != nil && limit.Max != nil && *limit.Min > *limit.Max {
		return fmt.Errorf("%w: %s min %g > max %g", ErrInvalidLimit, limit.ParameterCode, *limit.Min, *limit.Max)
	}
	return nil
}

// ValidateMeasurement 在判定前拒绝缺失或非数字的测量值
func ValidateMeasurement(m models.MeasurementInput) (float64, error) {
	if m.ParameterCode == "" {
		return 0, &InvalidMeasurementError{Field: "parameter_code", Reason: "parameter code is required"}
	}
	if m.Value == nil {
		return 0, &InvalidMeasurementError{Field: m.ParameterCode, Reason: "value is missing"}
	}
	if !isFinite(*m.Value) {
		return 0, &InvalidMeasurementError{Field: m.ParameterCode, Reason: "value is not a finite number"}
	}
	return *m.Value, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
