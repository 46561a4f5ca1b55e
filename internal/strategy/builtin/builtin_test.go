package builtin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/phoenix-backtest/internal/domain"
)

func flatCandles(n int) domain.CandleList {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make(domain.CandleList, n)
	for i := range candles {
		candles[i] = domain.Candle{OpenTime: base.AddDate(0, 0, i), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000}
	}
	return candles
}

func TestRegisterDefaults(t *testing.T) {
	registry := NewRegistry()

	assert.Equal(t, []string{"DoubleRSI", "MACD+SAR+EMA", "buyandhold", "emacross", "hold"}, registry.ListStrategies())

	for _, name := range registry.ListStrategies() {
		s, err := registry.Create(name, nil)
		require.NoError(t, err, name)
		assert.Equal(t, name, s.GetName())
		assert.NotEmpty(t, s.GetDescription())
	}

	_, err := registry.Create("unknown", nil)
	assert.Error(t, err)
}

func TestHold(t *testing.T) {
	s, err := NewHold(nil)
	require.NoError(t, err)

	d, err := s.Decide(context.Background(), flatCandles(3), domain.PositionState{})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionHold, d.Action)
}

func TestBuyAndHold(t *testing.T) {
	s, err := NewBuyAndHold(map[string]interface{}{"entryBar": 2, "stopLossPct": 0.1})
	require.NoError(t, err)
	ctx := context.Background()
	candles := flatCandles(5)

	d, err := s.Decide(ctx, candles.History(1), domain.PositionState{})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionHold, d.Action, "entryBar 이전에는 관망")

	d, err = s.Decide(ctx, candles.History(2), domain.PositionState{})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionBuy, d.Action)
	assert.InDelta(t, 90, d.StopLoss, 1e-9)

	d, err = s.Decide(ctx, candles.History(3), domain.PositionState{Open: true, Side: domain.LongPosition})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionHold, d.Action, "보유 중에는 추가 매수 없음")
}
