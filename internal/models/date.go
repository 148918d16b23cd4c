package models

import "time"

// DateOf 取日历日期（按 t 自身时区的年月日），返回该日期的 UTC 零点
// 所有合规判定都以日历日期为单位，避免时区和夏令时导致的天数偏差
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween 返回 from 到 to 之间相差的整日数（to 早于 from 时为负数）
func DaysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)).Hours() / 24)
}
