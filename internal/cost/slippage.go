package cost

import (
	"math"

	"github.com/montanaflynn/stats"

	"github.com/assist-by/phoenix-backtest/internal/domain"
)

const (
	minVolatilityFactor = 0.5
	maxVolatilityFactor = 3.0
)

// slippageRate는 체결 한 건에 적용할 유효 슬리피지 비율을 계산합니다.
// 기본 슬리피지 × 시간대 배수 × 변동성 배수 + 시장 충격 + 스프레드/2
func (m *Model) slippageRate(ctx Context) (float64, Diagnostics) {
	diag := Diagnostics{TimeOfDayFactor: 1, VolatilityFactor: 1, CommissionTier: -1}

	base := m.settings.Slippage
	impact := 0.0

	if m.settings.realisticSlippage() {
		rc := m.settings.Realistic
		diag.TimeOfDayFactor = TimeOfDayFactor(*rc, ctx)
		diag.VolatilityFactor = VolatilityFactor(*rc, ctx.History)
		impact = MarketImpact(*rc, ctx.Quantity)
	}

	rate := base*diag.TimeOfDayFactor*diag.VolatilityFactor + impact + m.settings.Spread/2
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
		rate = 0
	}

	diag.MarketImpact = impact
	diag.EffectiveSlippage = rate
	return rate, diag
}

// TimeOfDayFactor는 세션형 시장에서 장 시작/마감 구간의 슬리피지 배수를 반환합니다
func TimeOfDayFactor(rc RealisticConfig, ctx Context) float64 {
	if rc.Market != MarketA || rc.OpenCloseWindowMinutes <= 0 {
		return 1
	}

	t := ctx.Time
	if t.IsZero() {
		t = ctx.Candle.OpenTime
	}
	minute := domain.MinuteOfDay(t)
	window := rc.OpenCloseWindowMinutes

	switch {
	case minute >= rc.SessionOpenMinute && minute < rc.SessionOpenMinute+window:
		return positiveOr(rc.MarketOpenSlippageMultiplier, 1)
	case minute > rc.SessionCloseMinute-window && minute <= rc.SessionCloseMinute:
		return positiveOr(rc.MarketCloseSlippageMultiplier, 1)
	default:
		return 1
	}
}

// VolatilityFactor는 최근 변동성과 전체 기간 변동성의 비율로 슬리피지 배수를 계산합니다.
// 이력이 부족하면 1을 반환하며 결과는 [0.5, 3] 범위로 제한됩니다.
func VolatilityFactor(rc RealisticConfig, history domain.CandleList) float64 {
	window := rc.VolatilityWindow
	if window < 2 || len(history) < window+2 {
		return 1
	}

	returns := closeReturns(history)
	recent, err := stats.StandardDeviationSample(returns[len(returns)-window:])
	if err != nil || recent <= 0 {
		return 1
	}
	baseline, err := stats.StandardDeviationSample(returns)
	if err != nil || baseline <= 0 {
		return 1
	}

	weight := positiveOr(rc.VolatilitySlippageMultiplier, 1)
	factor := 1 + weight*(recent/baseline-1)
	if math.IsNaN(factor) || math.IsInf(factor, 0) {
		return 1
	}
	return math.Max(minVolatilityFactor, math.Min(maxVolatilityFactor, factor))
}

// MarketImpact는 주문 수량이 평균 일 거래량에서 차지하는 비율에 비례하는 시장 충격입니다
func MarketImpact(rc RealisticConfig, quantity int64) float64 {
	if rc.AverageDailyVolume <= 0 || quantity <= 0 {
		return 0
	}
	return rc.MarketImpactCoefficient * float64(quantity) / rc.AverageDailyVolume
}

// FillCapacity는 부분 체결 모드에서 한 봉에 체결 가능한 최대 수량입니다.
// 부분 체결이 꺼져 있거나 용량 계산이 불가능하면 ok=false 입니다.
func FillCapacity(rc *RealisticConfig) (int64, bool) {
	if rc == nil || !rc.PartialFillEnabled || rc.AverageDailyVolume <= 0 || rc.OrderBookDepth <= 0 {
		return 0, false
	}
	capacity := int64(math.Floor(rc.AverageDailyVolume * rc.OrderBookDepth))
	if capacity < 1 {
		capacity = 1
	}
	return capacity, true
}

func closeReturns(history domain.CandleList) []float64 {
	returns := make([]float64, 0, len(history)-1)
	for i := 1; i < len(history); i++ {
		prev := history[i-1].Close
		if prev <= 0 {
			continue
		}
		returns = append(returns, (history[i].Close-prev)/prev)
	}
	return returns
}

func positiveOr(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}
