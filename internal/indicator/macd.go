package indicator

import (
	"fmt"
	"math"
)

// MACDPoint는 한 시점의 MACD 값입니다
type MACDPoint struct {
	MACD      float64 // MACD 라인
	Signal    float64 // 시그널 라인
	Histogram float64 // 히스토그램
}

// Ready는 세 값이 모두 계산되었는지 확인합니다
func (p MACDPoint) Ready() bool {
	return Ready(p.MACD, p.Signal, p.Histogram)
}

// MACD는 Moving Average Convergence Divergence를 계산합니다.
// 값이 없는 초기 구간은 NaN으로 채워집니다.
func MACD(closes []float64, shortPeriod, longPeriod, signalPeriod int) ([]MACDPoint, error) {
	if shortPeriod <= 0 || longPeriod <= shortPeriod || signalPeriod <= 0 {
		return nil, &ValidationError{
			Field: "period",
			Err:   fmt.Errorf("잘못된 기간 설정 (%d, %d, %d)", shortPeriod, longPeriod, signalPeriod),
		}
	}
	if err := validatePeriod(longPeriod, len(closes), longPeriod+signalPeriod); err != nil {
		return nil, err
	}

	shortEMA, err := EMA(closes, shortPeriod)
	if err != nil {
		return nil, fmt.Errorf("단기 EMA 계산 실패: %w", err)
	}
	longEMA, err := EMA(closes, longPeriod)
	if err != nil {
		return nil, fmt.Errorf("장기 EMA 계산 실패: %w", err)
	}

	// MACD 라인은 장기 EMA가 준비된 이후부터 존재
	start := longPeriod
	line := make([]float64, len(closes)-start)
	for i := range line {
		line[i] = shortEMA[start+i] - longEMA[start+i]
	}

	signal, err := EMA(line, signalPeriod)
	if err != nil {
		return nil, fmt.Errorf("시그널 라인 계산 실패: %w", err)
	}

	out := make([]MACDPoint, len(closes))
	nan := math.NaN()
	for i := range out {
		out[i] = MACDPoint{MACD: nan, Signal: nan, Histogram: nan}
	}
	for i := range line {
		if math.IsNaN(signal[i]) {
			continue
		}
		out[start+i] = MACDPoint{MACD: line[i], Signal: signal[i], Histogram: line[i] - signal[i]}
	}
	return out, nil
}

// Cross는 직전과 현재 MACD/시그널 관계로 교차를 판단합니다.
// 반환값: 1 (상향돌파), -1 (하향돌파), 0 (크로스 없음)
func Cross(prev, curr MACDPoint) int {
	if !prev.Ready() || !curr.Ready() {
		return 0
	}
	if prev.MACD <= prev.Signal && curr.MACD > curr.Signal {
		return 1
	}
	if prev.MACD >= prev.Signal && curr.MACD < curr.Signal {
		return -1
	}
	return 0
}
