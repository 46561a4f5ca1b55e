package macdsarema

import (
	"context"
	"fmt"

	"github.com/assist-by/phoenix-backtest/internal/domain"
	"github.com/assist-by/phoenix-backtest/internal/indicator"
	"github.com/assist-by/phoenix-backtest/internal/strategy"
)

// Name은 레지스트리에 등록되는 전략 이름입니다
const Name = "MACD+SAR+EMA"

// MACDSAREMAStrategy는 MACD + SAR + EMA 전략을 구현합니다
type MACDSAREMAStrategy struct {
	strategy.BaseStrategy

	emaLength    int     // 추세 필터 EMA 기간
	macdShort    int     // MACD 단기 기간
	macdLong     int     // MACD 장기 기간
	macdSignal   int     // MACD 시그널 기간
	sarStart     float64 // SAR 초기 가속도
	sarMax       float64 // SAR 최대 가속도
	minHistogram float64 // MACD 히스토그램 최소값
	rewardRatio  float64 // 손절 거리 대비 익절 거리 (기본 1:1)
}

// NewStrategy는 새로운 MACD+SAR+EMA 전략 인스턴스를 생성합니다
func NewStrategy(config map[string]interface{}) (strategy.Strategy, error) {
	s := &MACDSAREMAStrategy{
		BaseStrategy: strategy.BaseStrategy{
			Name:        Name,
			Description: "MACD, Parabolic SAR, 200 EMA를 조합한 트렌드 팔로잉 전략",
			Config:      config,
		},
		emaLength:    strategy.IntParam(config, "emaLength", 200),
		macdShort:    strategy.IntParam(config, "macdShort", 12),
		macdLong:     strategy.IntParam(config, "macdLong", 26),
		macdSignal:   strategy.IntParam(config, "macdSignal", 9),
		sarStart:     strategy.FloatParam(config, "sarStart", 0.02),
		sarMax:       strategy.FloatParam(config, "sarMax", 0.2),
		minHistogram: strategy.FloatParam(config, "minHistogram", 0.00005),
		rewardRatio:  strategy.FloatParam(config, "rewardRatio", 1),
	}
	if s.emaLength <= 0 || s.macdShort <= 0 || s.macdLong <= s.macdShort || s.macdSignal <= 0 {
		return nil, fmt.Errorf("잘못된 기간 설정: ema=%d, macd=(%d,%d,%d)", s.emaLength, s.macdShort, s.macdLong, s.macdSignal)
	}
	return s, nil
}

// warmup은 모든 지표가 계산되기 위한 최소 캔들 수입니다
func (s *MACDSAREMAStrategy) warmup() int {
	need := s.macdLong + s.macdSignal + 1
	if s.emaLength+1 > need {
		need = s.emaLength + 1
	}
	return need
}

// Decide는 EMA 추세, MACD 교차, SAR 위치가 모두 맞을 때 진입합니다.
// 손절가는 SAR, 익절가는 손절 거리 × rewardRatio 입니다.
func (s *MACDSAREMAStrategy) Decide(ctx context.Context, history domain.CandleList, state domain.PositionState) (domain.Decision, error) {
	if state.Open || len(history) < s.warmup() {
		return domain.Hold(), nil
	}

	closes := history.Closes()
	ema, err := indicator.EMA(closes, s.emaLength)
	if err != nil {
		return domain.Hold(), fmt.Errorf("calculating EMA: %w", err)
	}
	macd, err := indicator.MACD(closes, s.macdShort, s.macdLong, s.macdSignal)
	if err != nil {
		return domain.Hold(), fmt.Errorf("calculating MACD: %w", err)
	}
	sar, err := indicator.ParabolicSAR(history, s.sarStart, s.sarMax)
	if err != nil {
		return domain.Hold(), fmt.Errorf("calculating SAR: %w", err)
	}

	last := history[len(history)-1]
	price := last.Close
	currentEMA := indicator.Last(ema)
	curr, prev := macd[len(macd)-1], macd[len(macd)-2]
	currentSAR := sar[len(sar)-1].SAR
	if !indicator.Ready(currentEMA, currentSAR) || !curr.Ready() {
		return domain.Hold(), nil
	}

	cross := indicator.Cross(prev, curr)

	// Long: EMA 위, MACD 상향 돌파, 히스토그램 최소값 이상, SAR이 저가 아래
	if price > currentEMA && cross == 1 && curr.Histogram >= s.minHistogram && currentSAR < last.Low {
		return domain.Decision{
			Action:     domain.ActionBuy,
			StopLoss:   currentSAR,
			TakeProfit: price + (price-currentSAR)*s.rewardRatio,
			Reason:     "MACD 상향 돌파 + SAR 하단 + EMA 상단",
		}, nil
	}

	// Short: EMA 아래, MACD 하향 돌파, 음수 히스토그램, SAR이 고가 위
	if price < currentEMA && cross == -1 && -curr.Histogram >= s.minHistogram && currentSAR > last.High {
		return domain.Decision{
			Action:     domain.ActionSell,
			StopLoss:   currentSAR,
			TakeProfit: price - (currentSAR-price)*s.rewardRatio,
			Reason:     "MACD 하향 돌파 + SAR 상단 + EMA 하단",
		}, nil
	}

	return domain.Hold(), nil
}

// RegisterStrategy는 이 전략을 레지스트리에 등록합니다
func RegisterStrategy(registry *strategy.Registry) {
	registry.Register(Name, NewStrategy)
}
