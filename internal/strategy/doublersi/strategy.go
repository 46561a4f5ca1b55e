package doublersi

import (
	"context"
	"fmt"
	"math"

	"github.com/assist-by/phoenix-backtest/internal/domain"
	"github.com/assist-by/phoenix-backtest/internal/indicator"
	"github.com/assist-by/phoenix-backtest/internal/strategy"
)

// Name은 레지스트리에 등록되는 전략 이름입니다
const Name = "DoubleRSI"

// DoubleRSIStrategy는 장기 RSI로 추세를, 단기 RSI 밴드 돌파로 진입 시점을 잡는 전략입니다
type DoubleRSIStrategy struct {
	strategy.BaseStrategy

	trendPeriod     int     // 추세 RSI 기간
	entryPeriod     int     // 진입 RSI 기간
	trendUpperBand  float64 // 추세 RSI 상단 밴드 (기본 60)
	trendLowerBand  float64 // 추세 RSI 하단 밴드 (기본 40)
	entryUpperBand  float64 // 진입 RSI 상단 밴드 (기본 60)
	entryLowerBand  float64 // 진입 RSI 하단 밴드 (기본 40)
	tpRatio         float64 // 손익비 (TP/SL 비율)
	lookbackPeriod  int     // 고점/저점 탐색 기간
	shortingEnabled bool
}

// NewStrategy는 새로운 더블 RSI 전략 인스턴스를 생성합니다
func NewStrategy(config map[string]interface{}) (strategy.Strategy, error) {
	s := &DoubleRSIStrategy{
		BaseStrategy: strategy.BaseStrategy{
			Name:        Name,
			Description: "장기 RSI 추세 필터와 단기 RSI 밴드 돌파를 조합한 트렌드 추종 전략",
			Config:      config,
		},
		trendPeriod:     strategy.IntParam(config, "trendRSIPeriod", 28),
		entryPeriod:     strategy.IntParam(config, "entryRSIPeriod", 7),
		trendUpperBand:  strategy.FloatParam(config, "trendRSIUpperBand", 60),
		trendLowerBand:  strategy.FloatParam(config, "trendRSILowerBand", 40),
		entryUpperBand:  strategy.FloatParam(config, "entryRSIUpperBand", 60),
		entryLowerBand:  strategy.FloatParam(config, "entryRSILowerBand", 40),
		tpRatio:         strategy.FloatParam(config, "tpRatio", 1.5),
		lookbackPeriod:  strategy.IntParam(config, "lookbackPeriod", 5),
		shortingEnabled: strategy.BoolParam(config, "allowShort", false),
	}
	if s.trendPeriod <= 0 || s.entryPeriod <= 0 || s.lookbackPeriod <= 0 {
		return nil, fmt.Errorf("잘못된 RSI 설정: trend=%d, entry=%d, lookback=%d", s.trendPeriod, s.entryPeriod, s.lookbackPeriod)
	}
	return s, nil
}

// Decide는 추세 RSI가 밴드 밖에 있고 진입 RSI가 반대 밴드를 되돌려 돌파할 때 진입합니다.
// 손절가는 직전 lookbackPeriod개 봉의 저점(숏은 고점)입니다.
func (s *DoubleRSIStrategy) Decide(ctx context.Context, history domain.CandleList, state domain.PositionState) (domain.Decision, error) {
	need := s.trendPeriod + 2
	if s.entryPeriod+2 > need {
		need = s.entryPeriod + 2
	}
	if state.Open || len(history) < need || len(history) <= s.lookbackPeriod {
		return domain.Hold(), nil
	}

	closes := history.Closes()
	trendRSI, err := indicator.RSI(closes, s.trendPeriod)
	if err != nil {
		return domain.Hold(), fmt.Errorf("추세 RSI 계산 실패: %w", err)
	}
	entryRSI, err := indicator.RSI(closes, s.entryPeriod)
	if err != nil {
		return domain.Hold(), fmt.Errorf("진입 RSI 계산 실패: %w", err)
	}

	trend := indicator.Last(trendRSI)
	curr, prev := indicator.Last(entryRSI), indicator.Prev(entryRSI, 1)
	if !indicator.Ready(trend, curr, prev) {
		return domain.Hold(), nil
	}

	price := closes[len(closes)-1]
	recent := history[len(history)-1-s.lookbackPeriod : len(history)-1]

	// 롱: 추세 RSI > 상단, 진입 RSI가 하단 밴드를 상향 돌파
	if trend > s.trendUpperBand && prev < s.entryLowerBand && curr >= s.entryLowerBand {
		low := math.MaxFloat64
		for _, c := range recent {
			low = math.Min(low, c.Low)
		}
		if low >= price {
			return domain.Hold(), nil
		}
		return domain.Decision{
			Action:     domain.ActionBuy,
			StopLoss:   low,
			TakeProfit: price + (price-low)*s.tpRatio,
			Reason:     fmt.Sprintf("추세 RSI %.1f, 진입 RSI %.1f→%.1f", trend, prev, curr),
		}, nil
	}

	// 숏: 추세 RSI < 하단, 진입 RSI가 상단 밴드를 하향 돌파
	if s.shortingEnabled && trend < s.trendLowerBand && prev > s.entryUpperBand && curr <= s.entryUpperBand {
		high := 0.0
		for _, c := range recent {
			high = math.Max(high, c.High)
		}
		if high <= price {
			return domain.Hold(), nil
		}
		return domain.Decision{
			Action:     domain.ActionSell,
			StopLoss:   high,
			TakeProfit: price - (high-price)*s.tpRatio,
			Reason:     fmt.Sprintf("추세 RSI %.1f, 진입 RSI %.1f→%.1f", trend, prev, curr),
		}, nil
	}

	return domain.Hold(), nil
}

// RegisterStrategy는 이 전략을 레지스트리에 등록합니다
func RegisterStrategy(registry *strategy.Registry) {
	registry.Register(Name, NewStrategy)
}
