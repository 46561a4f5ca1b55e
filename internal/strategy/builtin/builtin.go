// Package builtin은 기본 제공 전략을 모아 레지스트리에 등록합니다.
package builtin

import (
	"context"

	"github.com/assist-by/phoenix-backtest/internal/domain"
	"github.com/assist-by/phoenix-backtest/internal/strategy"
	"github.com/assist-by/phoenix-backtest/internal/strategy/doublersi"
	"github.com/assist-by/phoenix-backtest/internal/strategy/emacross"
	"github.com/assist-by/phoenix-backtest/internal/strategy/macdsarema"
)

const (
	HoldName       = "hold"
	BuyAndHoldName = "buyandhold"
)

// HoldStrategy는 아무 거래도 하지 않는 기준선 전략입니다
type HoldStrategy struct {
	strategy.BaseStrategy
}

// NewHold는 HOLD만 반환하는 전략을 생성합니다
func NewHold(config map[string]interface{}) (strategy.Strategy, error) {
	return &HoldStrategy{BaseStrategy: strategy.BaseStrategy{
		Name:        HoldName,
		Description: "항상 관망",
		Config:      config,
	}}, nil
}

// Decide는 항상 HOLD를 반환합니다
func (s *HoldStrategy) Decide(ctx context.Context, history domain.CandleList, state domain.PositionState) (domain.Decision, error) {
	return domain.Hold(), nil
}

// BuyAndHoldStrategy는 entryBar 이후 포지션이 없으면 매수하고 보유합니다
type BuyAndHoldStrategy struct {
	strategy.BaseStrategy
	entryBar    int
	stopLossPct float64
}

// NewBuyAndHold는 매수 후 보유 전략을 생성합니다
func NewBuyAndHold(config map[string]interface{}) (strategy.Strategy, error) {
	return &BuyAndHoldStrategy{
		BaseStrategy: strategy.BaseStrategy{
			Name:        BuyAndHoldName,
			Description: "첫 진입 이후 데이터 끝까지 보유",
			Config:      config,
		},
		entryBar:    strategy.IntParam(config, "entryBar", 0),
		stopLossPct: strategy.FloatParam(config, "stopLossPct", 0),
	}, nil
}

// Decide는 포지션이 없고 entryBar에 도달했으면 BUY를 반환합니다
func (s *BuyAndHoldStrategy) Decide(ctx context.Context, history domain.CandleList, state domain.PositionState) (domain.Decision, error) {
	if state.Open || len(history)-1 < s.entryBar {
		return domain.Hold(), nil
	}
	d := domain.Decision{Action: domain.ActionBuy, Reason: "buy and hold"}
	if s.stopLossPct > 0 {
		d.StopLoss = history[len(history)-1].Close * (1 - s.stopLossPct)
	}
	return d, nil
}

// RegisterDefaults는 기본 제공 전략을 모두 등록합니다
func RegisterDefaults(registry *strategy.Registry) {
	registry.Register(HoldName, NewHold)
	registry.Register(BuyAndHoldName, NewBuyAndHold)
	emacross.RegisterStrategy(registry)
	doublersi.RegisterStrategy(registry)
	macdsarema.RegisterStrategy(registry)
}

// NewRegistry는 기본 전략이 등록된 레지스트리를 생성합니다
func NewRegistry() *strategy.Registry {
	registry := strategy.NewRegistry()
	RegisterDefaults(registry)
	return registry
}
