package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"

	"owl-haccp/internal/evaluator"
	"owl-haccp/internal/models"
)

// NormalizeLimits 统一旧版单限值（critical_limit 对象）和多限值（critical_limits 数组）两种格式
// 两者都存在时以 critical_limits 为准，critical_limit 中未出现的参数追加在后面
// 返回前逐项校验，评估器只接收统一的 []CriticalLimit
func NormalizeLimits(single, multi json.RawMessage) ([]models.CriticalLimit, error) {
	var limits []models.CriticalLimit

	if !isEmptyJSON(multi) {
		if err := json.Unmarshal(multi, &limits); err != nil {
			return nil, fmt.Errorf("failed to parse critical_limits: %w", err)
		}
	}

	if !isEmptyJSON(single) {
		var legacy models.CriticalLimit
		if err := json.Unmarshal(single, &legacy); err != nil {
			return nil, fmt.Errorf("failed to parse critical_limit: %w", err)
		}
		if !containsCode(limits, legacy.ParameterCode) {
			limits = append(limits, legacy)
		}
	}

	if len(limits) == 0 {
		return nil, fmt.Errorf("%w: no critical limits configured", evaluator.ErrInvalidLimit)
	}

	for _, l := range limits {
		if err := evaluator.ValidateLimit(l); err != nil {
			return nil, err
		}
	}

	return limits, nil
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 ||
		bytes.Equal(trimmed, []byte("null")) ||
		bytes.Equal(trimmed, []byte("{}")) ||
		bytes.Equal(trimmed, []byte("[]"))
}

func containsCode(limits []models.CriticalLimit, code string) bool {
	for _, l := range limits {
		if l.ParameterCode == code {
			return true
		}
	}
	return false
}
