package emacross

import (
	"context"
	"fmt"

	"github.com/assist-by/phoenix-backtest/internal/domain"
	"github.com/assist-by/phoenix-backtest/internal/indicator"
	"github.com/assist-by/phoenix-backtest/internal/strategy"
)

// Name은 레지스트리에 등록되는 전략 이름입니다
const Name = "emacross"

// EMACrossStrategy는 단기/장기 EMA 교차 전략을 구현합니다
type EMACrossStrategy struct {
	strategy.BaseStrategy

	fastPeriod    int     // 단기 EMA 기간
	slowPeriod    int     // 장기 EMA 기간
	stopLossPct   float64 // 손절 비율
	takeProfitPct float64 // 익절 비율 (0이면 익절가 없음)
	allowShort    bool    // 하향 교차 시 숏 진입 여부
}

// NewStrategy는 새로운 EMA 교차 전략 인스턴스를 생성합니다
func NewStrategy(config map[string]interface{}) (strategy.Strategy, error) {
	fast := strategy.IntParam(config, "fastPeriod", 12)
	slow := strategy.IntParam(config, "slowPeriod", 26)
	if fast <= 0 || slow <= fast {
		return nil, fmt.Errorf("잘못된 EMA 기간: fast=%d, slow=%d", fast, slow)
	}

	return &EMACrossStrategy{
		BaseStrategy: strategy.BaseStrategy{
			Name:        Name,
			Description: "단기 EMA가 장기 EMA를 돌파할 때 진입하는 추세 추종 전략",
			Config:      config,
		},
		fastPeriod:    fast,
		slowPeriod:    slow,
		stopLossPct:   strategy.FloatParam(config, "stopLossPct", 0.02),
		takeProfitPct: strategy.FloatParam(config, "takeProfitPct", 0.04),
		allowShort:    strategy.BoolParam(config, "allowShort", false),
	}, nil
}

// Decide는 직전 봉과 현재 봉의 EMA 관계로 교차를 판단합니다
func (s *EMACrossStrategy) Decide(ctx context.Context, history domain.CandleList, state domain.PositionState) (domain.Decision, error) {
	if len(history) <= s.slowPeriod+1 {
		return domain.Hold(), nil
	}

	closes := history.Closes()
	fast, err := indicator.EMA(closes, s.fastPeriod)
	if err != nil {
		return domain.Hold(), fmt.Errorf("단기 EMA 계산 실패: %w", err)
	}
	slow, err := indicator.EMA(closes, s.slowPeriod)
	if err != nil {
		return domain.Hold(), fmt.Errorf("장기 EMA 계산 실패: %w", err)
	}

	prevFast, prevSlow := indicator.Prev(fast, 1), indicator.Prev(slow, 1)
	currFast, currSlow := indicator.Last(fast), indicator.Last(slow)
	if !indicator.Ready(prevFast, prevSlow, currFast, currSlow) {
		return domain.Hold(), nil
	}

	crossUp := prevFast <= prevSlow && currFast > currSlow
	crossDown := prevFast >= prevSlow && currFast < currSlow
	price := closes[len(closes)-1]

	switch {
	case crossUp && !state.Open:
		return s.entry(domain.ActionBuy, price, "EMA 상향 돌파"), nil
	case crossUp && state.Side == domain.ShortPosition:
		return domain.Decision{Action: domain.ActionClose, Reason: "EMA 상향 돌파"}, nil
	case crossDown && state.Open && state.Side == domain.LongPosition:
		return domain.Decision{Action: domain.ActionClose, Reason: "EMA 하향 돌파"}, nil
	case crossDown && !state.Open && s.allowShort:
		return s.entry(domain.ActionSell, price, "EMA 하향 돌파"), nil
	}
	return domain.Hold(), nil
}

func (s *EMACrossStrategy) entry(action domain.Action, price float64, reason string) domain.Decision {
	sign := 1.0
	if action == domain.ActionSell {
		sign = -1.0
	}
	d := domain.Decision{
		Action:   action,
		StopLoss: price * (1 - sign*s.stopLossPct),
		Reason:   reason,
	}
	if s.takeProfitPct > 0 {
		d.TakeProfit = price * (1 + sign*s.takeProfitPct)
	}
	return d
}

// RegisterStrategy는 이 전략을 레지스트리에 등록합니다
func RegisterStrategy(registry *strategy.Registry) {
	registry.Register(Name, NewStrategy)
}
