package position

import (
	"github.com/assist-by/phoenix-backtest/internal/domain"
)

// SideFromAction은 진입 결정에 해당하는 포지션 사이드를 반환합니다
func SideFromAction(action domain.Action) (domain.PositionSide, bool) {
	switch action {
	case domain.ActionBuy:
		return domain.LongPosition, true
	case domain.ActionSell:
		return domain.ShortPosition, true
	default:
		return "", false
	}
}

// OrderSideForEntry는 포지션 진입을 위한 주문 사이드를 반환합니다
func OrderSideForEntry(positionSide domain.PositionSide) domain.OrderSide {
	if positionSide == domain.LongPosition {
		return domain.Buy
	}
	return domain.Sell
}

// OrderSideForExit는 포지션 청산을 위한 주문 사이드를 반환합니다
func OrderSideForExit(positionSide domain.PositionSide) domain.OrderSide {
	if positionSide == domain.LongPosition {
		return domain.Sell
	}
	return domain.Buy
}

// UnrealizedPnL은 현재가 기준 미실현 손익(수수료 제외)을 계산합니다
func UnrealizedPnL(side domain.PositionSide, entryPrice, markPrice float64, quantity int64) float64 {
	return side.Sign() * (markPrice - entryPrice) * float64(quantity)
}
