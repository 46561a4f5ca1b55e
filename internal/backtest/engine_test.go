package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/phoenix-backtest/internal/cost"
	"github.com/assist-by/phoenix-backtest/internal/domain"
	"github.com/assist-by/phoenix-backtest/internal/strategy"
	"github.com/assist-by/phoenix-backtest/internal/strategy/emacross"
)

// scriptedStrategy는 봉 번호별로 미리 정한 결정을 반환합니다
type scriptedStrategy struct {
	strategy.BaseStrategy
	decisions map[int]domain.Decision
	onDecide  func(i int, history domain.CandleList, state domain.PositionState)
}

func newScripted(decisions map[int]domain.Decision) *scriptedStrategy {
	return &scriptedStrategy{
		BaseStrategy: strategy.BaseStrategy{Name: "scripted", Description: "test"},
		decisions:    decisions,
	}
}

func (s *scriptedStrategy) Decide(ctx context.Context, history domain.CandleList, state domain.PositionState) (domain.Decision, error) {
	i := len(history) - 1
	if s.onDecide != nil {
		s.onDecide(i, history, state)
	}
	if d, ok := s.decisions[i]; ok {
		return d, nil
	}
	return domain.Hold(), nil
}

type failingStrategy struct {
	strategy.BaseStrategy
}

func (s *failingStrategy) Decide(ctx context.Context, history domain.CandleList, state domain.PositionState) (domain.Decision, error) {
	return domain.Hold(), errors.New("boom")
}

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func makeCandles(closes []float64) domain.CandleList {
	candles := make(domain.CandleList, len(closes))
	for i, c := range closes {
		candles[i] = domain.Candle{
			OpenTime:  testStart.AddDate(0, 0, i),
			CloseTime: testStart.AddDate(0, 0, i+1).Add(-time.Millisecond),
			Open:      c,
			High:      c + 0.5,
			Low:       c - 0.5,
			Close:     c,
			Volume:    1000,
		}
	}
	return candles
}

func flatCloses(n int, price float64) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = price
	}
	return closes
}

func sineCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/6) + float64(i)*0.05
	}
	return closes
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Symbol = "TEST"
	cfg.Interval = "1d"
	cfg.Slippage = 0
	return cfg
}

func runEngine(t *testing.T, cfg Config, strat strategy.Strategy, candles domain.CandleList, opts ...Option) *Result {
	t.Helper()
	engine, err := NewEngine(cfg, strat, candles, opts...)
	require.NoError(t, err)
	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func TestRun_FlatHoldProducesNoTrades(t *testing.T) {
	cfg := testConfig()
	cfg.Commission = 0

	result := runEngine(t, cfg, newScripted(nil), makeCandles(flatCloses(100, 100)))

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Empty(t, result.Trades)
	require.Len(t, result.EquityCurve, 100)
	for _, v := range result.EquityCurve {
		assert.Equal(t, cfg.InitialCapital, v)
	}
	assert.Zero(t, result.Metrics.MaxDrawdown)
	assert.Zero(t, result.Metrics.TotalReturn)
	assert.Equal(t, 100, result.BarsProcessed)
}

func TestRun_RiskSizedEntryLiquidatedAtEnd(t *testing.T) {
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 100 + 10*float64(i)/49
	}
	strat := newScripted(map[int]domain.Decision{
		0: {Action: domain.ActionBuy, StopLoss: 95},
	})

	result := runEngine(t, testConfig(), strat, makeCandles(closes))

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, int64(40), trade.Quantity)
	assert.Equal(t, domain.LongPosition, trade.Side)
	assert.Equal(t, ExitEndOfData, trade.ExitReason)
	assert.InDelta(t, 100, trade.EntryPrice, 1e-9)
	assert.InDelta(t, 110, *trade.ExitPrice, 1e-9)
	assert.InDelta(t, 8.4, trade.Fees, 1e-9)
	assert.InDelta(t, 400-8.4, *trade.PnL, 1e-6)
	assert.Greater(t, *trade.PnL, 0.0)
	assert.Equal(t, 0, trade.EntryBar)
	assert.Equal(t, 49, trade.ExitBar)
	assert.NotEmpty(t, trade.ID)

	assert.InDelta(t, 10000+400-8.4, result.EquityCurve[49], 1e-6)
	assert.InDelta(t, 3.916, result.Metrics.TotalReturn, 1e-6)
	assert.Equal(t, 1, result.Metrics.WinningTrades)
}

func TestRun_NoLookAhead(t *testing.T) {
	candles := makeCandles(sineCloses(80))
	strat := newScripted(nil)
	calls := 0
	strat.onDecide = func(i int, history domain.CandleList, state domain.PositionState) {
		calls++
		assert.Len(t, history, i+1)
		assert.Equal(t, len(history), cap(history), "history 뒤쪽 용량이 노출되면 안 됩니다")
		assert.Equal(t, candles[i].OpenTime, history[len(history)-1].OpenTime)
	}

	runEngine(t, testConfig(), strat, candles)
	assert.Equal(t, 80, calls)
}

func TestRun_Idempotent(t *testing.T) {
	candles := makeCandles(sineCloses(200))
	cfg := testConfig()
	cfg.Slippage = 0.0005
	cfg.AllowShort = true
	rc := cost.DefaultRealisticConfig()
	rc.Market = cost.MarketB
	rc.SlippageEnabled = true
	cfg.Realistic = &rc

	run := func() []byte {
		strat, err := emacross.NewStrategy(map[string]interface{}{"fastPeriod": 5, "slowPeriod": 20, "allowShort": true})
		require.NoError(t, err)
		result := runEngine(t, cfg, strat, candles)
		require.NotEmpty(t, result.Trades)
		data, err := json.Marshal(result)
		require.NoError(t, err)
		return data
	}

	assert.JSONEq(t, string(run()), string(run()))
}

func TestRun_TradeInvariants(t *testing.T) {
	candles := makeCandles(sineCloses(300))
	cfg := testConfig()
	cfg.Slippage = 0.001
	cfg.AllowShort = true
	cfg.MaxHoldingBars = 15

	strat, err := emacross.NewStrategy(map[string]interface{}{"fastPeriod": 5, "slowPeriod": 20, "allowShort": true})
	require.NoError(t, err)
	result := runEngine(t, cfg, strat, candles)

	assert.Equal(t, StatusCompleted, result.Status)
	require.Len(t, result.EquityCurve, len(candles))
	require.Len(t, result.DrawdownCurve, len(candles))
	assert.Equal(t, len(result.Trades), result.Metrics.TotalTrades)
	require.NotEmpty(t, result.Trades)

	ids := map[string]bool{}
	for _, trade := range result.Trades {
		require.True(t, trade.IsClosed())
		assert.GreaterOrEqual(t, trade.Fees, 0.0)
		assert.GreaterOrEqual(t, trade.ExitBar, trade.EntryBar)
		assert.False(t, trade.ExitTime.Before(trade.EntryTime))
		assert.Greater(t, trade.Quantity, int64(0))
		assert.False(t, ids[trade.ID], "거래 ID 중복")
		ids[trade.ID] = true
	}
	for _, dd := range result.DrawdownCurve {
		assert.GreaterOrEqual(t, dd, 0.0)
		assert.LessOrEqual(t, dd, 100.0)
	}

	// 최종 자산 = 초기 자본 + 거래 손익 합계
	sum := 0.0
	for _, trade := range result.Trades {
		sum += *trade.PnL
	}
	assert.InDelta(t, cfg.InitialCapital+sum, result.Metrics.FinalEquity, 1e-6)
}

func TestRun_StopLossTakesPriority(t *testing.T) {
	closes := flatCloses(60, 100)
	candles := makeCandles(closes)
	// 같은 봉에서 손절가(95)와 익절가(105)를 모두 건드림
	candles[5].High = 106
	candles[5].Low = 94

	strat := newScripted(map[int]domain.Decision{
		0: {Action: domain.ActionBuy, StopLoss: 95, TakeProfit: 105},
	})
	result := runEngine(t, testConfig(), strat, candles)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, ExitStop, trade.ExitReason)
	assert.Equal(t, 5, trade.ExitBar)
	assert.InDelta(t, 95, *trade.ExitPrice, 1e-9)
	assert.Less(t, *trade.PnL, 0.0)
}

func TestRun_StopFillsAtGapOpen(t *testing.T) {
	candles := makeCandles(flatCloses(60, 100))
	candles[3] = domain.Candle{OpenTime: candles[3].OpenTime, Open: 90, High: 91, Low: 89, Close: 90, Volume: 1000}

	strat := newScripted(map[int]domain.Decision{
		0: {Action: domain.ActionBuy, StopLoss: 95},
	})
	result := runEngine(t, testConfig(), strat, candles)

	require.Len(t, result.Trades, 1)
	assert.Equal(t, ExitStop, result.Trades[0].ExitReason)
	assert.InDelta(t, 90, *result.Trades[0].ExitPrice, 1e-9)
}

func TestRun_TakeProfit(t *testing.T) {
	candles := makeCandles(flatCloses(60, 100))
	candles[7].High = 104

	strat := newScripted(map[int]domain.Decision{
		0: {Action: domain.ActionBuy, StopLoss: 95, TakeProfit: 103},
	})
	result := runEngine(t, testConfig(), strat, candles)

	require.Len(t, result.Trades, 1)
	assert.Equal(t, ExitTarget, result.Trades[0].ExitReason)
	assert.InDelta(t, 103, *result.Trades[0].ExitPrice, 1e-9)
}

func TestRun_MaxHoldingBars(t *testing.T) {
	cfg := testConfig()
	cfg.MaxHoldingBars = 10

	strat := newScripted(map[int]domain.Decision{0: {Action: domain.ActionBuy}})
	result := runEngine(t, cfg, strat, makeCandles(flatCloses(60, 100)))

	require.Len(t, result.Trades, 1)
	assert.Equal(t, ExitTime, result.Trades[0].ExitReason)
	assert.Equal(t, 10, result.Trades[0].ExitBar)
}

func TestRun_CircuitBreaker(t *testing.T) {
	closes := flatCloses(60, 100)
	for i := 10; i < len(closes); i++ {
		closes[i] = 80
	}
	cfg := testConfig()
	cfg.MaxDrawdown = 10
	cfg.UseStopLoss = false

	strat := newScripted(map[int]domain.Decision{0: {Action: domain.ActionBuy, Quantity: 95}})
	result := runEngine(t, cfg, strat, makeCandles(closes))

	assert.Equal(t, StatusAbortedMaxDrawdown, result.Status)
	assert.Equal(t, 11, result.BarsProcessed)
	require.Len(t, result.EquityCurve, 11)
	require.Len(t, result.Trades, 1)
	assert.Equal(t, ExitEndOfData, result.Trades[0].ExitReason)
	assert.Equal(t, 10, result.Trades[0].ExitBar)
	assert.InDelta(t, result.Metrics.FinalEquity, result.EquityCurve[10], 1e-9)
}

func TestRun_Cancellation(t *testing.T) {
	candles := makeCandles(flatCloses(60, 100))

	t.Run("시작 전 취소", func(t *testing.T) {
		engine, err := NewEngine(testConfig(), newScripted(nil), candles)
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := engine.Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, result)
	})

	t.Run("실행 중 취소", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		strat := newScripted(map[int]domain.Decision{0: {Action: domain.ActionBuy}})
		strat.onDecide = func(i int, history domain.CandleList, state domain.PositionState) {
			if i == 10 {
				cancel()
			}
		}
		engine, err := NewEngine(testConfig(), strat, candles)
		require.NoError(t, err)

		result, err := engine.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, result.Status)
		assert.Equal(t, 11, result.BarsProcessed)
		require.Len(t, result.Trades, 1)
		assert.Equal(t, ExitEndOfData, result.Trades[0].ExitReason)
		assert.Equal(t, 10, result.Trades[0].ExitBar)
	})
}

func TestRun_OppositeSignalClosesWithoutReversal(t *testing.T) {
	cfg := testConfig()
	cfg.AllowShort = true
	strat := newScripted(map[int]domain.Decision{
		0: {Action: domain.ActionBuy},
		5: {Action: domain.ActionSell},
		6: {Action: domain.ActionBuy},
		7: {Action: domain.ActionBuy},
	})
	result := runEngine(t, cfg, strat, makeCandles(flatCloses(60, 100)))

	require.Len(t, result.Trades, 2)
	assert.Equal(t, ExitSignal, result.Trades[0].ExitReason)
	assert.Equal(t, 5, result.Trades[0].ExitBar)
	assert.Equal(t, domain.LongPosition, result.Trades[1].Side)
	assert.Equal(t, 6, result.Trades[1].EntryBar)
	assert.Equal(t, 1, result.ExecutionQuality.SkippedDecisions[SkipPositionOpen])
}

func TestRun_ShortPositions(t *testing.T) {
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 100 - 10*float64(i)/49
	}
	strat := newScripted(map[int]domain.Decision{0: {Action: domain.ActionSell, StopLoss: 105}})

	t.Run("숏 비허용", func(t *testing.T) {
		result := runEngine(t, testConfig(), strat, makeCandles(closes))
		assert.Empty(t, result.Trades)
		assert.Equal(t, 1, result.ExecutionQuality.SkippedDecisions[SkipShortNotAllowed])
	})

	t.Run("숏 허용", func(t *testing.T) {
		cfg := testConfig()
		cfg.AllowShort = true
		result := runEngine(t, cfg, strat, makeCandles(closes))

		require.Len(t, result.Trades, 1)
		trade := result.Trades[0]
		assert.Equal(t, domain.ShortPosition, trade.Side)
		assert.Equal(t, int64(40), trade.Quantity)
		assert.InDelta(t, 400-(4+3.6), *trade.PnL, 1e-6)
	})
}

func TestRun_SkippedDecisions(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPositionSize = 1
	cfg.Commission = 0.01

	strat := newScripted(map[int]domain.Decision{
		0: {Action: domain.ActionClose},
		1: {Action: domain.ActionBuy, StopLoss: math.NaN()},
		2: {Action: domain.ActionBuy, Quantity: 100},
		3: {Action: "FLIP"},
	})
	result := runEngine(t, cfg, strat, makeCandles(flatCloses(60, 100)))

	assert.Empty(t, result.Trades)
	skips := result.ExecutionQuality.SkippedDecisions
	assert.Equal(t, 1, skips[SkipNoPosition])
	assert.Equal(t, 2, skips[SkipInvalidDecision])
	assert.Equal(t, 1, skips[SkipInsufficientCapital])
}

func TestRun_StrategyErrorIsSkipped(t *testing.T) {
	strat := &failingStrategy{BaseStrategy: strategy.BaseStrategy{Name: "failing"}}
	result := runEngine(t, testConfig(), strat, makeCandles(flatCloses(50, 100)))

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 50, result.ExecutionQuality.SkippedDecisions[SkipStrategyError])
}

func TestRun_LatencyFillsAtNextOpen(t *testing.T) {
	candles := makeCandles(flatCloses(60, 100))
	for i := range candles {
		candles[i].Open = 99
		candles[i].Low = 98.5
	}
	cfg := testConfig()
	rc := cost.DefaultRealisticConfig()
	rc.LatencyEnabled = true
	cfg.Realistic = &rc

	strat := newScripted(map[int]domain.Decision{
		5:  {Action: domain.ActionBuy},
		20: {Action: domain.ActionClose},
		59: {Action: domain.ActionBuy},
	})
	result := runEngine(t, cfg, strat, candles)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, 6, trade.EntryBar)
	assert.InDelta(t, 99, trade.EntryPrice, 1e-9)
	assert.Equal(t, 21, trade.ExitBar)
	assert.Equal(t, ExitSignal, trade.ExitReason)
	require.NotNil(t, trade.Diagnostics)
	assert.Equal(t, 100, trade.Diagnostics.LatencyMs)
	assert.InDelta(t, 100, result.ExecutionQuality.AvgLatencyMs, 1e-9)

	// 마지막 봉의 주문은 체결될 봉이 없어 만료된다
	assert.Equal(t, 1, result.ExecutionQuality.SkippedDecisions[SkipOrderExpired])
}

func TestRun_PartialFills(t *testing.T) {
	cfg := testConfig()
	rc := cost.DefaultRealisticConfig()
	rc.PartialFillEnabled = true
	rc.AverageDailyVolume = 1000
	rc.OrderBookDepth = 0.05
	cfg.Realistic = &rc

	strat := newScripted(map[int]domain.Decision{
		0: {Action: domain.ActionBuy, Quantity: 90},
		1: {Action: domain.ActionBuy},
	})
	result := runEngine(t, cfg, strat, makeCandles(flatCloses(60, 100)))

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, int64(90), trade.Quantity)
	require.NotNil(t, trade.Diagnostics)

	fills := trade.Diagnostics.PartialFills
	require.Len(t, fills, 3)
	assert.Equal(t, LegEntry, fills[0].Leg)
	assert.Equal(t, int64(50), fills[0].Quantity)
	assert.Equal(t, 0, fills[0].Bar)
	assert.Equal(t, int64(40), fills[1].Quantity)
	assert.Equal(t, 1, fills[1].Bar)
	// 강제 청산은 용량과 무관하게 전량 체결
	assert.Equal(t, LegExit, fills[2].Leg)
	assert.Equal(t, int64(90), fills[2].Quantity)

	assert.Equal(t, 1, result.ExecutionQuality.PartialFillTrades)
	assert.Equal(t, 3, result.ExecutionQuality.TotalFills)
	assert.Equal(t, 1, result.ExecutionQuality.SkippedDecisions[SkipPositionOpen])
}

func TestRun_TieredCommission(t *testing.T) {
	cfg := testConfig()
	cfg.InitialCapital = 1_000_000
	rc := cost.DefaultRealisticConfig()
	rc.CommissionEnabled = true
	rc.CommissionTiers = []cost.Tier{{VolumeThreshold: 0, Rate: 0.002}, {VolumeThreshold: 100_000, Rate: 0.001}}
	cfg.Realistic = &rc

	strat := newScripted(map[int]domain.Decision{
		0: {Action: domain.ActionBuy, Quantity: 500},
		1: {Action: domain.ActionClose},
		2: {Action: domain.ActionBuy, Quantity: 1500},
		3: {Action: domain.ActionClose},
	})
	result := runEngine(t, cfg, strat, makeCandles(flatCloses(60, 100)))

	require.Len(t, result.Trades, 2)
	assert.InDelta(t, 50_000*0.002*2, result.Trades[0].Fees, 1e-9)
	assert.Equal(t, 0, result.Trades[0].Diagnostics.CommissionTier)
	assert.InDelta(t, 150_000*0.001*2, result.Trades[1].Fees, 1e-9)
	assert.Equal(t, 1, result.Trades[1].Diagnostics.CommissionTier)
	assert.InDelta(t, 200+300, result.TransactionCosts.TotalCommission, 1e-9)
}

func TestRun_Progress(t *testing.T) {
	cfg := testConfig()
	cfg.ProgressInterval = 10

	var percents []float64
	progress := func(percent float64, current, total int) {
		assert.Equal(t, 55, total)
		percents = append(percents, percent)
	}
	runEngine(t, cfg, newScripted(nil), makeCandles(flatCloses(55, 100)), WithProgress(progress))

	require.Len(t, percents, 6)
	assert.InDelta(t, 100, percents[len(percents)-1], 1e-9)
}

type countingObserver struct {
	runs   int
	failed int
}

func (o *countingObserver) ObserveRun(name string, result *Result, err error, elapsed time.Duration) {
	o.runs++
	if err != nil {
		o.failed++
	}
}

func TestRun_NotifiesObserver(t *testing.T) {
	observer := &countingObserver{}
	runEngine(t, testConfig(), newScripted(nil), makeCandles(flatCloses(50, 100)), WithObserver(observer))
	assert.Equal(t, 1, observer.runs)
	assert.Equal(t, 0, observer.failed)
}

func TestNewEngine_Validation(t *testing.T) {
	candles := makeCandles(flatCloses(60, 100))

	t.Run("초기 자본 0", func(t *testing.T) {
		cfg := testConfig()
		cfg.InitialCapital = 0
		_, err := NewEngine(cfg, newScripted(nil), candles)
		assert.ErrorIs(t, err, ErrInvalidConfig)

		var cerr *ConfigError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "Config.InitialCapital", cerr.Field)
	})

	t.Run("최대 포지션 비율 범위 초과", func(t *testing.T) {
		cfg := testConfig()
		cfg.MaxPositionSize = 1.5
		_, err := NewEngine(cfg, newScripted(nil), candles)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("빈 수수료 구간표", func(t *testing.T) {
		cfg := testConfig()
		rc := cost.DefaultRealisticConfig()
		rc.CommissionEnabled = true
		cfg.Realistic = &rc
		_, err := NewEngine(cfg, newScripted(nil), candles)
		assert.ErrorIs(t, err, ErrInvalidConfig)
		assert.ErrorIs(t, err, cost.ErrEmptyTierTable)
	})

	t.Run("전략 없음", func(t *testing.T) {
		_, err := NewEngine(testConfig(), nil, candles)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("데이터 부족", func(t *testing.T) {
		_, err := NewEngine(testConfig(), newScripted(nil), candles[:10])
		assert.ErrorIs(t, err, ErrInsufficientData)
	})

	t.Run("정렬되지 않은 캔들", func(t *testing.T) {
		broken := append(domain.CandleList{}, candles...)
		broken[3], broken[4] = broken[4], broken[3]
		_, err := NewEngine(testConfig(), newScripted(nil), broken)
		assert.ErrorIs(t, err, domain.ErrInvalidCandles)
	})
}

func TestRun_TrailingStop(t *testing.T) {
	// 0~9봉 동안 2씩 움직인 뒤 10봉에서 되돌림
	trend := func(step float64) []float64 {
		closes := flatCloses(60, 100+9*step)
		for i := 0; i < 10; i++ {
			closes[i] = 100 + float64(i)*step
		}
		return closes
	}
	bar := func(c domain.Candle, open, high, low, close float64) domain.Candle {
		c.Open, c.High, c.Low, c.Close = open, high, low, close
		return c
	}

	testCases := []struct {
		name      string
		side      domain.Action
		step      float64
		reversal  func(domain.Candle) domain.Candle
		exitPrice float64
	}{
		{
			// 최고가 118.5, 추적 손절가 118.5 × 0.95 = 112.575
			name:      "롱 장중 이탈",
			side:      domain.ActionBuy,
			step:      2,
			reversal:  func(c domain.Candle) domain.Candle { return bar(c, 115, 115.5, 112, 113) },
			exitPrice: 118.5 * 0.95,
		},
		{
			name:      "롱 갭 하락은 시가 체결",
			side:      domain.ActionBuy,
			step:      2,
			reversal:  func(c domain.Candle) domain.Candle { return bar(c, 110, 110.5, 109.5, 110) },
			exitPrice: 110,
		},
		{
			// 최저가 81.5, 추적 손절가 81.5 × 1.05 = 85.575
			name:      "숏 장중 이탈",
			side:      domain.ActionSell,
			step:      -2,
			reversal:  func(c domain.Candle) domain.Candle { return bar(c, 83, 86, 82.5, 85) },
			exitPrice: 81.5 * 1.05,
		},
		{
			name:      "숏 갭 상승은 시가 체결",
			side:      domain.ActionSell,
			step:      -2,
			reversal:  func(c domain.Candle) domain.Candle { return bar(c, 90, 90.5, 89.5, 90) },
			exitPrice: 90,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.AllowShort = true
			cfg.TrailingStopPct = 0.05

			candles := makeCandles(trend(tc.step))
			candles[10] = tc.reversal(candles[10])

			strat := newScripted(map[int]domain.Decision{0: {Action: tc.side}})
			result := runEngine(t, cfg, strat, candles)

			require.Len(t, result.Trades, 1)
			trade := result.Trades[0]
			assert.Equal(t, ExitTrailingStop, trade.ExitReason)
			assert.Equal(t, 10, trade.ExitBar)
			assert.InDelta(t, tc.exitPrice, *trade.ExitPrice, 1e-9)
		})
	}
}

func TestRun_TrailingStopDisabled(t *testing.T) {
	closes := flatCloses(60, 100)
	for i := 0; i < 10; i++ {
		closes[i] = 100 + float64(i)*2
	}
	closes[10] = 110

	strat := newScripted(map[int]domain.Decision{0: {Action: domain.ActionBuy}})
	result := runEngine(t, testConfig(), strat, makeCandles(closes))

	require.Len(t, result.Trades, 1)
	assert.Equal(t, ExitEndOfData, result.Trades[0].ExitReason)
}
