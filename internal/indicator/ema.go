package indicator

import (
	"math"
)

// EMA는 지수이동평균을 계산합니다.
// 첫 값을 시작값으로 사용하며 (adjust=False 방식), 앞 period개 구간은 NaN 입니다.
func EMA(values []float64, period int) ([]float64, error) {
	if err := validatePeriod(period, len(values), period); err != nil {
		return nil, err
	}

	alpha := 2.0 / float64(period+1)
	out := make([]float64, len(values))

	ema := values[0]
	out[0] = ema
	for i := 1; i < len(values); i++ {
		ema = alpha*values[i] + (1-alpha)*ema
		out[i] = ema
	}

	for i := 0; i < period && i < len(out); i++ {
		out[i] = math.NaN()
	}
	return out, nil
}
