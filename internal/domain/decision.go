package domain

import (
	"math"
	"time"
)

// Decision은 전략이 한 봉에 대해 내린 매매 결정입니다
type Decision struct {
	Action     Action  `json:"action"`
	Quantity   int64   `json:"quantity,omitempty"`   // 0이면 포지션 사이저가 수량 결정
	StopLoss   float64 `json:"stopLoss,omitempty"`   // 0이면 손절가 없음
	TakeProfit float64 `json:"takeProfit,omitempty"` // 0이면 익절가 없음
	Reason     string  `json:"reason,omitempty"`
}

// Hold는 아무것도 하지 않는 결정을 반환합니다
func Hold() Decision {
	return Decision{Action: ActionHold}
}

// Sanitize는 비정상적인 값(NaN, Inf, 음수)을 가진 결정을 HOLD로 바꿉니다.
// 두 번째 반환값이 false면 원래 결정을 사용할 수 없었다는 뜻입니다.
func (d Decision) Sanitize() (Decision, bool) {
	switch d.Action {
	case ActionBuy, ActionSell, ActionHold, ActionClose:
	default:
		return Hold(), false
	}

	if !finiteNonNegative(d.StopLoss) || !finiteNonNegative(d.TakeProfit) || d.Quantity < 0 {
		return Hold(), false
	}
	return d, true
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// PositionState는 전략에 전달되는 현재 포지션의 읽기 전용 스냅샷입니다
type PositionState struct {
	Open          bool         `json:"open"`
	Side          PositionSide `json:"side,omitempty"`
	Quantity      int64        `json:"quantity,omitempty"`
	EntryPrice    float64      `json:"entryPrice,omitempty"`
	EntryTime     time.Time    `json:"entryTime,omitempty"`
	StopLoss      float64      `json:"stopLoss,omitempty"`
	TakeProfit    float64      `json:"takeProfit,omitempty"`
	UnrealizedPnL float64      `json:"unrealizedPnl"`
	BarsHeld      int          `json:"barsHeld"`
	Capital       float64      `json:"capital"`
}
