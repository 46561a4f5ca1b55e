package backtest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/assist-by/phoenix-backtest/internal/cost"
	"github.com/assist-by/phoenix-backtest/internal/domain"
	"github.com/assist-by/phoenix-backtest/internal/strategy"
)

// RunObserver는 백테스트 실행이 끝날 때마다 통지를 받습니다
type RunObserver interface {
	ObserveRun(name string, result *Result, err error, elapsed time.Duration)
}

// Engine은 백테스트 실행 엔진입니다
type Engine struct {
	Strategy strategy.Strategy // 테스트할 전략
	Candles  domain.CandleList // 캔들 데이터
	Config   Config            // 백테스트 설정

	name     string
	logger   *zap.Logger
	progress ProgressFunc
	observer RunObserver
}

// Option은 Engine 선택 설정입니다
type Option func(*Engine)

// WithLogger는 로거를 지정합니다
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithProgress는 진행률 콜백을 지정합니다
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// WithObserver는 실행 종료 통지를 받을 관찰자를 지정합니다
func WithObserver(observer RunObserver) Option {
	return func(e *Engine) {
		e.observer = observer
	}
}

// WithName은 실행 이름을 지정합니다. 거래 ID 생성에도 사용됩니다.
func WithName(name string) Option {
	return func(e *Engine) {
		e.name = name
	}
}

// NewEngine은 새로운 백테스트 엔진을 생성합니다.
// 설정과 데이터는 여기서 한 번 검증되며 실패하면 시뮬레이션 전에 에러를 반환합니다.
func NewEngine(cfg Config, strat strategy.Strategy, candles domain.CandleList, opts ...Option) (*Engine, error) {
	if cfg.MinBars <= 0 {
		cfg.MinBars = MinBars
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strat == nil {
		return nil, &ConfigError{Field: "Strategy", Err: fmt.Errorf("전략이 지정되지 않았습니다")}
	}
	if len(candles) < cfg.MinBars {
		return nil, fmt.Errorf("%w: 필요 %d, 현재 %d", ErrInsufficientData, cfg.MinBars, len(candles))
	}
	if err := candles.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		Strategy: strat,
		Candles:  candles,
		Config:   cfg,
		name:     cfg.Symbol,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.name == "" {
		e.name = strat.GetName()
	}
	return e, nil
}

// Run은 백테스트를 실행합니다.
// 봉 i에서 전략은 i번째 봉까지의 데이터만 받습니다.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	result, err := e.run(ctx)
	if e.observer != nil {
		e.observer.ObserveRun(e.name, result, err, time.Since(started))
	}
	return result, err
}

func (e *Engine) run(ctx context.Context) (*Result, error) {
	costs, err := cost.NewModel(e.Config.costSettings())
	if err != nil {
		return nil, &ConfigError{Field: "Config.Realistic", Err: err}
	}
	exec := NewExecutor(e.Config, costs, e.logger, e.name)

	total := len(e.Candles)
	equity := make([]float64, 0, total)
	peak := e.Config.InitialCapital
	status := StatusCompleted

	e.logger.Info("백테스트 시작",
		zap.String("name", e.name),
		zap.String("strategy", e.Strategy.GetName()),
		zap.Int("candles", total),
		zap.Float64("initialCapital", e.Config.InitialCapital))

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			if i == 0 {
				return nil, err
			}
			status = StatusCancelled
			e.logger.Info("백테스트 취소", zap.Int("bar", i))
			break
		}

		// 현재 시점까지의 데이터로 서브셋 생성 (미래 정보 누수 방지)
		history := e.Candles.History(i)
		candle := history[i]

		// 1. 대기 주문 체결 (시가) 및 보호 청산
		exec.ProcessOpen(i, history)
		exec.CheckExits(i, history)

		// 2. 자산 기록
		value := exec.Equity(candle.Close)
		equity = append(equity, value)
		if value > peak {
			peak = value
		}

		// 3. 최대 낙폭 서킷 브레이커
		if e.Config.MaxDrawdown > 0 && peak > 0 && (peak-value)/peak*100 >= e.Config.MaxDrawdown {
			e.logger.Info("최대 낙폭 도달, 백테스트 중단",
				zap.Int("bar", i),
				zap.Float64("equity", value),
				zap.Float64("peak", peak))
			exec.ExpirePending(i)
			exec.Liquidate(i, history, ExitEndOfData)
			equity[len(equity)-1] = exec.Capital()
			status = StatusAbortedMaxDrawdown
			break
		}

		// 4. 전략 결정 (종가)
		decision, err := e.Strategy.Decide(ctx, history, exec.State(i, candle.Close))
		if err != nil {
			exec.skip(SkipStrategyError, i, err.Error())
		} else {
			exec.Execute(i, history, decision)
		}

		e.reportProgress(i, total)
	}

	// 미청산 포지션 처리
	if status != StatusAbortedMaxDrawdown && len(equity) > 0 {
		last := len(equity) - 1
		history := e.Candles.History(last)
		exec.ExpirePending(last)
		if _, open := exec.Position(); open {
			exec.Liquidate(last, history, ExitEndOfData)
			equity[last] = exec.Capital()
		}
	}

	result := e.buildResult(exec, equity, status)

	e.logger.Info("백테스트 완료",
		zap.String("name", e.name),
		zap.String("status", string(result.Status)),
		zap.Int("trades", result.Metrics.TotalTrades),
		zap.Float64("winRate", result.Metrics.WinRate),
		zap.Float64("totalReturn", result.Metrics.TotalReturn),
		zap.Float64("maxDrawdown", result.Metrics.MaxDrawdown))

	return result, nil
}

// reportProgress는 ProgressInterval 봉마다, 그리고 마지막 봉에서 진행률을 보고합니다
func (e *Engine) reportProgress(i, total int) {
	if e.progress == nil {
		return
	}
	interval := e.Config.ProgressInterval
	if interval <= 0 {
		interval = 1
	}
	current := i + 1
	if current%interval != 0 && current != total {
		return
	}
	e.progress(float64(current)/float64(total)*100, i, total)
}

func (e *Engine) buildResult(exec *Executor, equity []float64, status Status) *Result {
	trades := exec.Trades()
	if trades == nil {
		trades = []Trade{}
	}

	processed := e.Candles[:len(equity)]
	first, last := processed[0], processed[len(processed)-1]

	result := &Result{
		Status:        status,
		Symbol:        e.Config.Symbol,
		Interval:      domain.TimeInterval(e.Config.Interval),
		Trades:        trades,
		EquityCurve:   equity,
		DrawdownCurve: DrawdownCurve(equity, e.Config.InitialCapital),
		Metrics:       CalculateMetrics(trades, equity, e.Config.InitialCapital),
		Config:        e.Config,
		StartDate:     first.OpenTime,
		EndDate:       last.OpenTime,
		Duration:      domain.DaysBetween(first.OpenTime, last.OpenTime),
		BarsProcessed: len(equity),
	}

	result.TransactionCosts = summarizeCosts(exec.ledger, len(trades), e.Config.InitialCapital)
	result.ExecutionQuality = summarizeExecution(exec.ledger, trades, exec.Skipped())
	return result
}

func summarizeCosts(l costLedger, tradeCount int, initialCapital float64) TransactionCosts {
	tc := TransactionCosts{
		TotalCommission:   finite(l.commission),
		TotalSlippage:     finite(l.slippage),
		TotalMarketImpact: finite(l.marketImpact),
	}
	if tradeCount > 0 {
		tc.AvgCommissionPerTrade = finite(l.commission / float64(tradeCount))
	}
	if initialCapital > 0 {
		tc.CostPercentOfCapital = finite((l.commission + l.slippage) / initialCapital * 100)
	}
	return tc
}

func summarizeExecution(l costLedger, trades []Trade, skips map[SkipReason]int) ExecutionQuality {
	partial, fills := partialFillTrades(trades)
	eq := ExecutionQuality{
		TotalFills:        l.fills,
		PartialFillTrades: partial,
		SkippedDecisions:  make(map[SkipReason]int, len(skips)),
	}
	for reason, n := range skips {
		eq.SkippedDecisions[reason] = n
	}
	if l.fills > 0 {
		eq.AvgEffectiveSlippage = finite(l.effectiveSum / float64(l.fills))
	}
	if l.latencyOrders > 0 {
		eq.AvgLatencyMs = finite(l.latencySum / float64(l.latencyOrders))
	}
	if len(trades) > 0 {
		eq.AvgFillsPerTrade = float64(fills) / float64(len(trades))
	}
	return eq
}
