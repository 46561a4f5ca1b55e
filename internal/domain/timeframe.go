package domain

import (
	"fmt"
	"time"
)

// TimeIntervalToDuration은 캔들 간격을 time.Duration으로 변환합니다
func TimeIntervalToDuration(interval TimeInterval) (time.Duration, error) {
	switch interval {
	case Interval1m:
		return time.Minute, nil
	case Interval3m:
		return 3 * time.Minute, nil
	case Interval5m:
		return 5 * time.Minute, nil
	case Interval15m:
		return 15 * time.Minute, nil
	case Interval30m:
		return 30 * time.Minute, nil
	case Interval1h:
		return time.Hour, nil
	case Interval2h:
		return 2 * time.Hour, nil
	case Interval4h:
		return 4 * time.Hour, nil
	case Interval6h:
		return 6 * time.Hour, nil
	case Interval8h:
		return 8 * time.Hour, nil
	case Interval12h:
		return 12 * time.Hour, nil
	case Interval1d, "":
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("지원하지 않는 캔들 간격: %s", interval)
	}
}

// DaysBetween은 두 시점 사이의 일수를 반환합니다 (음수는 0)
func DaysBetween(start, end time.Time) float64 {
	if !end.After(start) {
		return 0
	}
	return end.Sub(start).Hours() / 24
}

// MinuteOfDay는 자정 이후 경과 분을 반환합니다
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
