package evaluator

import (
	"fmt"
	"time"

	"owl-haccp/internal/models"
)

// ExpiringWindowDays 到期前多少天内视为即将到期
const ExpiringWindowDays = 30

// ComputeNextDue 按日历计算下次校准日期
// 月份相加时按月末截断：1 月 31 日 + 1 个月 = 2 月 28/29 日
func ComputeNextDue(last time.Time, freq models.Frequency) (time.Time, error) {
	last = models.DateOf(last)
	switch freq {
	case models.FrequencyYearly:
		return addMonths(last, 12), nil
	case models.FrequencyQuarterly:
		return addMonths(last, 3), nil
	case models.FrequencyMonthly:
		return addMonths(last, 1), nil
	case models.FrequencyWeekly:
		return last.AddDate(0, 0, 7), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownFrequency, freq)
	}
}

// Classify 判定校准状态：nextDue 早于 today 为过期，0..30 天内为即将到期，其余有效
func Classify(today, nextDue time.Time) models.CalibrationState {
	days := models.DaysBetween(today, nextDue)
	switch {
	case days < 0:
		return models.CalibrationExpired
	case days <= ExpiringWindowDays:
		return models.CalibrationExpiring
	default:
		return models.CalibrationValid
	}
}

// StatusOf 计算设备在 today 的校准状态（每次调用都重新计算）
func StatusOf(record models.CalibrationRecord, today time.Time) (models.CalibrationStatus, error) {
	nextDue, err := ComputeNextDue(record.LastCalibrationDate, record.Frequency)
	if err != nil {
		return models.CalibrationStatus{}, err
	}
	return models.CalibrationStatus{
		EquipmentID:         record.EquipmentID,
		Status:              Classify(today, nextDue),
		NextCalibrationDate: nextDue,
		DaysRemaining:       models.DaysBetween(today, nextDue),
	}, nil
}

// NewCalibrationRecord 创建校准记录并计算下次校准日期
func NewCalibrationRecord(equipmentID string, last time.Time, freq models.Frequency) (models.CalibrationRecord, error) {
	nextDue, err := ComputeNextDue(last, freq)
	if err != nil {
		return models.CalibrationRecord{}, err
	}
	return models.CalibrationRecord{
		EquipmentID:         equipmentID,
		LastCalibrationDate: models.DateOf(last),
		Frequency:           freq,
		NextCalibrationDate: nextDue,
	}, nil
}

// Renew 记录一次新的校准：替换上次校准日期，可选更新周期，并重新计算下次校准日期
func Renew(record models.CalibrationRecord, newDate time.Time, newFreq *models.Frequency, result string) (models.CalibrationRecord, error) {
	newDate = models.DateOf(newDate)
	if !record.LastCalibrationDate.IsZero() && newDate.Before(models.DateOf(record.LastCalibrationDate)) {
		return record, fmt.Errorf("%w: %s < %s", ErrRenewalBeforeLast,
			newDate.Format("2006-01-02"), record.LastCalibrationDate.Format("2006-01-02"))
	}

	freq := record.Frequency
	if newFreq != nil {
		freq = *newFreq
	}

	nextDue, err := ComputeNextDue(newDate, freq)
	if err != nil {
		return record, err
	}

	renewed := record
	renewed.LastCalibrationDate = newDate
	renewed.Frequency = freq
	renewed.NextCalibrationDate = nextDue
	renewed.Result = result
	return renewed, nil
}

func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, t.Location())
}
