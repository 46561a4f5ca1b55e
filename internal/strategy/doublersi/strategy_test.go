package doublersi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/phoenix-backtest/internal/domain"
)

func makeCandles(closes []float64) domain.CandleList {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make(domain.CandleList, len(closes))
	for i, c := range closes {
		candles[i] = domain.Candle{OpenTime: base.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return candles
}

// 40봉 상승 → 4봉 눌림 → 1봉 반등
func pullbackCloses() []float64 {
	var closes []float64
	for i := 0; i < 40; i++ {
		closes = append(closes, 100+float64(i)*2)
	}
	last := closes[len(closes)-1]
	for i := 1; i <= 4; i++ {
		closes = append(closes, last-float64(i)*6)
	}
	return append(closes, closes[len(closes)-1]+8)
}

func TestNewStrategy_Invalid(t *testing.T) {
	_, err := NewStrategy(map[string]interface{}{"trendRSIPeriod": 0})
	assert.Error(t, err)

	_, err = NewStrategy(map[string]interface{}{"lookbackPeriod": -1})
	assert.Error(t, err)
}

func TestDecide_LongPullbackEntry(t *testing.T) {
	s, err := NewStrategy(nil)
	require.NoError(t, err)

	candles := makeCandles(pullbackCloses())
	d, err := s.Decide(context.Background(), candles, domain.PositionState{})
	require.NoError(t, err)

	require.Equal(t, domain.ActionBuy, d.Action)
	// 직전 5봉 최저가 = 154 - 1
	assert.InDelta(t, 153, d.StopLoss, 1e-9)
	assert.InDelta(t, 162+9*1.5, d.TakeProfit, 1e-9)

	// 눌림 직전 봉에서는 아직 돌파가 아니다
	d, err = s.Decide(context.Background(), candles[:len(candles)-1], domain.PositionState{})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionHold, d.Action)
}

func TestDecide_HoldsWhenOpenOrWarmingUp(t *testing.T) {
	s, err := NewStrategy(nil)
	require.NoError(t, err)
	candles := makeCandles(pullbackCloses())

	d, err := s.Decide(context.Background(), candles, domain.PositionState{Open: true, Side: domain.LongPosition})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionHold, d.Action)

	d, err = s.Decide(context.Background(), candles[:10], domain.PositionState{})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionHold, d.Action)
}
