package position

import (
	"math"
)

// 손절가를 쓸 수 없을 때 사용하는 기본 손절 거리 (가격 대비 비율)
const defaultStopPct = 0.02

// SizingConfig는 포지션 사이즈 계산을 위한 설정을 정의합니다
type SizingConfig struct {
	Capital         float64 // 현재 가용 자본
	RiskPerTrade    float64 // 거래당 위험 비율 (0~1)
	MaxPositionSize float64 // 자본 대비 최대 포지션 비율 (0~1)
	DefaultStopPct  float64 // 손절가가 없을 때 사용할 손절 거리 비율 (기본값: 0.02 = 2%)
}

// PositionSizeResult는 포지션 계산 결과를 담는 구조체입니다
type PositionSizeResult struct {
	Quantity      int64   // 정수 수량 (0이면 진입하지 않음)
	PositionValue float64 // 수량 × 기준가
	RiskAmount    float64 // 자본 × 거래당 위험 비율
	StopDistance  float64 // 실제로 사용된 손절 거리
	RiskLimited   bool    // 위험 한도로 수량이 정해졌는지 (false면 최대 포지션 한도)
}

// CalculatePositionSize는 위험 예산과 최대 포지션 한도 중 작은 쪽으로 수량을 계산합니다.
// 수량이 0인 결과는 에러가 아니라 "진입하지 않음"을 뜻합니다.
func CalculatePositionSize(price, stopLoss float64, config SizingConfig) (PositionSizeResult, error) {
	if !finitePositive(price) {
		return PositionSizeResult{}, NewSizingError("size", ErrInvalidPrice)
	}
	if math.IsNaN(config.Capital) || math.IsInf(config.Capital, 0) {
		return PositionSizeResult{}, NewSizingError("size", ErrInvalidCapital)
	}
	if config.Capital <= 0 || config.RiskPerTrade <= 0 || config.MaxPositionSize <= 0 {
		return PositionSizeResult{}, nil
	}

	// 1. 위험 금액
	riskAmount := config.Capital * config.RiskPerTrade

	// 2. 손절 거리 (손절가가 없거나 쓸 수 없으면 기본 비율 사용)
	stopDistance := math.Abs(price - stopLoss)
	if stopLoss <= 0 || !finitePositive(stopDistance) {
		pct := config.DefaultStopPct
		if pct <= 0 {
			pct = defaultStopPct
		}
		stopDistance = price * pct
	}

	// 3. 위험 기준 수량과 최대 포지션 기준 수량 중 작은 값
	rawSize := riskAmount / stopDistance
	capSize := (config.Capital * config.MaxPositionSize) / price

	size := math.Min(rawSize, capSize)
	if !finitePositive(size) {
		return PositionSizeResult{}, nil
	}

	quantity := int64(math.Floor(size))
	return PositionSizeResult{
		Quantity:      quantity,
		PositionValue: float64(quantity) * price,
		RiskAmount:    riskAmount,
		StopDistance:  stopDistance,
		RiskLimited:   rawSize <= capSize,
	}, nil
}

func finitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
