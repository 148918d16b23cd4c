package evaluator

import (
	"fmt"
	"strings"

	"owl-haccp/internal/models"
)

// EvaluateCCPRecord 对一条 CCP 监控记录的全部测量值逐项判定并汇总
// limits 为评估开始时读取的 CCP 限值快照；返回的记录尚未分配 ID
func EvaluateCCPRecord(input models.CCPRecordInput, limits []models.CriticalLimit) (*models.CCPRecord, error) {
	if len(input.Measurements) == 0 {
		return nil, &EmptyMeasurementSetError{Source: "ccp_record"}
	}

	index, err := indexLimits(limits)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(input.Measurements))
	values := make([]models.MeasurementValue, 0, len(input.Measurements))
	overall := true

	for _, m := range input.Measurements {
		value, err := ValidateMeasurement(m)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[m.ParameterCode]; dup {
			return nil, &InvalidMeasurementError{Field: m.ParameterCode, Reason: "parameter measured more than once"}
		}
		seen[m.ParameterCode] = struct{}{}

		limit, ok := index[m.ParameterCode]
		if !ok {
			return nil, &UnknownParameterError{ParameterCode: m.ParameterCode}
		}

		unit := m.Unit
		if unit == "" {
			unit = limit.Unit
		}

		within := EvaluateLimit(value, limit)
		overall = overall && within
		values = append(values, models.MeasurementValue{
			ParameterCode: m.ParameterCode,
			Value:         value,
			Unit:          unit,
			WithinLimit:   within,
		})
	}

	record := &models.CCPRecord{
		RecordDate:         models.DateOf(input.RecordDate),
		RecordTime:         input.RecordTime,
		LotNumber:          input.LotNumber,
		BatchNumber:        input.BatchNumber,
		Measurements:       values,
		OverallWithinLimit: overall,
		Status:             models.RecordStatusDraft,
		RecordedBy:         input.RecordedBy,
	}

	if action := strings.TrimSpace(input.DeviationAction); action != "" {
		record.DeviationAction = &action
	} else if !overall {
		return nil, &MissingDeviationActionError{FailedParameters: failedCodes(values)}
	}

	return record, nil
}

// Violations 返回记录中超限的测量项及对应限值
func Violations(record *models.CCPRecord, limits []models.CriticalLimit) []models.ParameterViolation {
	byCode := make(map[string]models.CriticalLimit, len(limits))
	for _, l := range limits {
		byCode[l.ParameterCode] = l
	}

	var violations []models.ParameterViolation
	for _, m := range record.Measurements {
		if m.WithinLimit {
			continue
		}
		violations = append(violations, models.ParameterViolation{
			ParameterCode: m.ParameterCode,
			MeasuredValue: m.Value,
			Limit:         byCode[m.ParameterCode],
		})
	}
	return violations
}

func indexLimits(limits []models.CriticalLimit) (map[string]models.CriticalLimit, error) {
	index := make(map[string]models.CriticalLimit, len(limits))
	for _, l := range limits {
		if err := ValidateLimit(l); err != nil {
			return nil, err
		}
		if _, dup := index[l.ParameterCode]; dup {
			return nil, fmt.Errorf("%w: duplicate parameter code %s", ErrInvalidLimit, l.ParameterCode)
		}
		index[l.ParameterCode] = l
	}
	return index, nil
}

func failedCodes(values []models.MeasurementValue) []string {
	var codes []string
	for _, v := range values {
		if !v.WithinLimit {
			codes = append(codes, v.ParameterCode)
		}
	}
	return codes
}
