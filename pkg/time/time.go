package time

import (
	"fmt"
	"time"
)

const (
	TimeFormatCommonStyleDay = "2006-01-02"
	TimeFormatCommonStyleMin = "2006-01-02 15:04"
	TimeFormatCommonStyleSec = "2006-01-02 15:04:05"
)

// StartOfDay 当天零点，保留原时区
func StartOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// DaysBetween 按自然日计算 now 与 t 相差的天数，t 在 now 之后返回 0
func DaysBetween(t, now time.Time) int {
	t = t.In(now.Location())
	diff := StartOfDay(now).Sub(StartOfDay(t))
	if diff <= 0 {
		return 0
	}
	// 夏令时切换当天不足 24 小时，四舍五入
	return int((diff + 12*time.Hour) / (24 * time.Hour))
}

// RelativeDayLabel today / yesterday / N days ago
func RelativeDayLabel(t, now time.Time) string {
	switch days := DaysBetween(t, now); days {
	case 0:
		return "today"
	case 1:
		return "yesterday"
	default:
		return fmt.Sprintf("%d days ago", days)
	}
}

// DaysAgo now 往前推 days 天，days <= 0 返回 nil 表示不限制
func DaysAgo(now time.Time, days int) *time.Time {
	if days <= 0 {
		return nil
	}
	since := now.AddDate(0, 0, -days)
	return &since
}
