package indicator

import (
	"fmt"
	"math"

	"github.com/assist-by/phoenix-backtest/internal/domain"
)

// ValidationError는 입력값 검증 에러를 정의합니다
type ValidationError struct {
	Field string
	Err   error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("유효하지 않은 %s: %v", e.Field, e.Err)
}

// Closes는 캔들 목록에서 종가 배열을 만듭니다
func Closes(candles domain.CandleList) []float64 {
	return candles.Closes()
}

// Last는 시리즈의 마지막 값을, 비어 있으면 NaN을 반환합니다
func Last(series []float64) float64 {
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

// Prev는 마지막에서 n번째 이전 값을 반환합니다 (n=1이면 직전 값)
func Prev(series []float64, n int) float64 {
	idx := len(series) - 1 - n
	if idx < 0 || idx >= len(series) {
		return math.NaN()
	}
	return series[idx]
}

// Ready는 값이 계산된 구간(NaN이 아님)인지 확인합니다
func Ready(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func validatePeriod(period, length, need int) error {
	if period <= 0 {
		return &ValidationError{Field: "period", Err: fmt.Errorf("period must be > 0")}
	}
	if length == 0 {
		return &ValidationError{Field: "prices", Err: fmt.Errorf("가격 데이터가 비어있습니다")}
	}
	if length < need {
		return &ValidationError{
			Field: "prices",
			Err:   fmt.Errorf("가격 데이터가 부족합니다. 필요: %d, 현재: %d", need, length),
		}
	}
	return nil
}
