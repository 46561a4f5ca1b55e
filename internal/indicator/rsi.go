package indicator

import (
	"math"
)

// RSI는 Wilder 방식의 Relative Strength Index를 계산합니다.
// 앞 period개 구간은 NaN 입니다.
func RSI(closes []float64, period int) ([]float64, error) {
	if err := validatePeriod(period, len(closes), period+1); err != nil {
		return nil, err
	}

	out := make([]float64, len(closes))
	for i := 0; i < period; i++ {
		out[i] = math.NaN()
	}

	// 1. 첫 period개 변동의 단순 평균
	sumGain, sumLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		gain, loss := splitDelta(closes[i] - closes[i-1])
		sumGain += gain
		sumLoss += loss
	}
	avgGain, avgLoss := sumGain/float64(period), sumLoss/float64(period)
	out[period] = toRSI(avgGain, avgLoss)

	// 2. 이후 구간 Wilder 평활
	p := float64(period)
	for i := period + 1; i < len(closes); i++ {
		gain, loss := splitDelta(closes[i] - closes[i-1])
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out[i] = toRSI(avgGain, avgLoss)
	}
	return out, nil
}

func splitDelta(delta float64) (gain, loss float64) {
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}

func toRSI(avgGain, avgLoss float64) float64 {
	switch {
	case avgGain == 0 && avgLoss == 0:
		return 50 // 완전 횡보
	case avgLoss == 0:
		return 100
	default:
		rs := avgGain / avgLoss
		return 100 - 100/(1+rs)
	}
}
