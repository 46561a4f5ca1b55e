package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/assist-by/phoenix-backtest/internal/cost"
	"github.com/assist-by/phoenix-backtest/internal/domain"
	"github.com/assist-by/phoenix-backtest/internal/position"
)

// 거래 ID는 실행 ID와 순번으로 만든 이름 기반 UUID라서 같은 입력이면 항상 같습니다
var tradeNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("phoenix-backtest/trade"))

type orderKind int

const (
	orderEntry orderKind = iota
	orderExit
)

// pendingOrder는 아직 전부 체결되지 않은 주문입니다 (지연 체결 또는 부분 체결 잔량)
type pendingOrder struct {
	kind        orderKind
	side        domain.PositionSide
	decision    domain.Decision
	decisionBar int
	remaining   int64
	delayed     bool // true면 다음 봉 시가에 첫 체결
	stopLoss    float64
	takeProfit  float64
	latencyMs   int
}

// tradeDiag는 거래 한 건의 체결 진단값을 누적합니다
type tradeDiag struct {
	slippage       float64
	impactWeighted float64
	effWeighted    float64
	quantity       float64
	tier           int
	timeOfDay      float64
	volatility     float64
}

func (d *tradeDiag) add(exec cost.Execution, qty int64, first bool) {
	d.slippage += exec.Details.SlippageAmount
	d.impactWeighted += exec.Details.MarketImpact * float64(qty)
	d.effWeighted += exec.Details.EffectiveSlippage * float64(qty)
	d.quantity += float64(qty)
	if first {
		d.tier = exec.Details.CommissionTier
		d.timeOfDay = exec.Details.TimeOfDayFactor
		d.volatility = exec.Details.VolatilityFactor
	}
}

// openPosition은 체결 기록과 함께 관리되는 열린 포지션입니다
type openPosition struct {
	Position
	trade           Trade
	entryFills      []Fill
	exitFills       []Fill
	entryQuantity   int64
	entryNotional   float64
	entryCommission float64
	exitCommission  float64
	eligibleFrom    int     // 보호 청산 검사를 시작할 봉
	extreme         float64 // 추적 손절 기준 (롱: 최고가, 숏: 최저가)
	diag            tradeDiag
}

// costLedger는 실행 전체의 비용/체결 합계입니다
type costLedger struct {
	commission    float64
	slippage      float64
	marketImpact  float64
	effectiveSum  float64
	fills         int
	latencySum    float64
	latencyOrders int
}

func (l *costLedger) record(exec cost.Execution) {
	l.commission += exec.Commission
	l.slippage += exec.Details.SlippageAmount
	l.marketImpact += exec.Details.MarketImpact * exec.Notional
	l.effectiveSum += exec.Details.EffectiveSlippage
	l.fills++
}

// Executor는 매매 결정을 체결로 바꾸고 자본, 포지션, 거래 기록을 관리합니다.
// 심볼당 포지션은 최대 하나입니다.
type Executor struct {
	cfg     Config
	costs   *cost.Model
	logger  *zap.Logger
	runID   string
	capital float64
	pos     *openPosition
	pending *pendingOrder
	trades  []Trade
	seq     int
	skips   map[SkipReason]int
	ledger  costLedger
}

// NewExecutor는 새로운 체결 시뮬레이터를 생성합니다
func NewExecutor(cfg Config, costs *cost.Model, logger *zap.Logger, runID string) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		cfg:     cfg,
		costs:   costs,
		logger:  logger,
		runID:   runID,
		capital: cfg.InitialCapital,
		skips:   make(map[SkipReason]int),
	}
}

// Capital은 실현 자본을 반환합니다
func (x *Executor) Capital() float64 {
	return x.capital
}

// Position은 열린 포지션을 반환합니다
func (x *Executor) Position() (Position, bool) {
	if x.pos == nil {
		return Position{}, false
	}
	return x.pos.Position, true
}

// Equity는 실현 자본 + 현재가 기준 미실현 손익입니다
func (x *Executor) Equity(mark float64) float64 {
	if x.pos == nil {
		return x.capital
	}
	return x.capital + position.UnrealizedPnL(x.pos.Side, x.pos.EntryPrice, mark, x.pos.Quantity)
}

// State는 전략에 전달할 포지션 스냅샷을 만듭니다
func (x *Executor) State(bar int, mark float64) domain.PositionState {
	state := domain.PositionState{Capital: x.capital}
	if x.pos == nil {
		return state
	}
	state.Open = true
	state.Side = x.pos.Side
	state.Quantity = x.pos.Quantity
	state.EntryPrice = x.pos.EntryPrice
	state.EntryTime = x.pos.EntryTime
	state.StopLoss = x.pos.StopLoss
	state.TakeProfit = x.pos.TakeProfit
	state.UnrealizedPnL = position.UnrealizedPnL(x.pos.Side, x.pos.EntryPrice, mark, x.pos.Quantity)
	state.BarsHeld = bar - x.pos.trade.EntryBar
	return state
}

// Trades는 청산된 거래 목록을 반환합니다
func (x *Executor) Trades() []Trade {
	return x.trades
}

// Skipped는 사유별 건너뛴 결정 수를 반환합니다
func (x *Executor) Skipped() map[SkipReason]int {
	return x.skips
}

// HasPending은 미체결 주문이 남아 있는지 확인합니다
func (x *Executor) HasPending() bool {
	return x.pending != nil
}

func (x *Executor) skip(reason SkipReason, bar int, detail string) {
	x.skips[reason]++
	x.logger.Debug("결정 건너뜀",
		zap.String("reason", string(reason)),
		zap.Int("bar", bar),
		zap.String("detail", detail))
}

// ProcessOpen은 봉 시가에서 대기 중인 주문(지연 체결, 부분 체결 잔량)을 처리합니다
func (x *Executor) ProcessOpen(bar int, history domain.CandleList) {
	o := x.pending
	if o == nil || o.decisionBar >= bar {
		return
	}
	candle := history[bar]

	if o.delayed {
		o.delayed = false
		o.latencyMs = x.cfg.Realistic.LatencyMs
		x.ledger.latencySum += float64(o.latencyMs)
		x.ledger.latencyOrders++
	}

	switch o.kind {
	case orderEntry:
		x.fillEntry(o, bar, history, candle.Open, candle.OpenTime, true)
	case orderExit:
		if x.pos == nil {
			x.pending = nil
			return
		}
		x.fillSignalExit(o, bar, history, candle.Open, candle.OpenTime)
	}
}

// CheckExits는 손절, 추적 손절, 익절, 최대 보유 기간을 순서대로 확인합니다.
// 같은 봉에서 손절과 익절이 모두 닿으면 손절이 우선합니다.
func (x *Executor) CheckExits(bar int, history domain.CandleList) {
	p := x.pos
	if p == nil || bar < p.eligibleFrom {
		return
	}
	c := history[bar]
	long := p.Side == domain.LongPosition

	if p.StopLoss > 0 {
		if long && c.Low <= p.StopLoss {
			x.closeAll(bar, history, math.Min(c.Open, p.StopLoss), c.OpenTime, ExitStop)
			return
		}
		if !long && c.High >= p.StopLoss {
			x.closeAll(bar, history, math.Max(c.Open, p.StopLoss), c.OpenTime, ExitStop)
			return
		}
	}

	if pct := x.cfg.TrailingStopPct; pct > 0 && p.extreme > 0 {
		if long {
			level := p.extreme * (1 - pct)
			if c.Low <= level {
				x.closeAll(bar, history, math.Min(c.Open, level), c.OpenTime, ExitTrailingStop)
				return
			}
		} else {
			level := p.extreme * (1 + pct)
			if c.High >= level {
				x.closeAll(bar, history, math.Max(c.Open, level), c.OpenTime, ExitTrailingStop)
				return
			}
		}
	}

	if p.TakeProfit > 0 {
		if long && c.High >= p.TakeProfit {
			x.closeAll(bar, history, math.Max(c.Open, p.TakeProfit), c.OpenTime, ExitTarget)
			return
		}
		if !long && c.Low <= p.TakeProfit {
			x.closeAll(bar, history, math.Min(c.Open, p.TakeProfit), c.OpenTime, ExitTarget)
			return
		}
	}

	if x.cfg.MaxHoldingBars > 0 && bar-p.trade.EntryBar >= x.cfg.MaxHoldingBars {
		x.closeAll(bar, history, c.Close, closeTime(c), ExitTime)
		return
	}

	if long {
		p.extreme = math.Max(p.extreme, c.High)
	} else {
		p.extreme = math.Min(p.extreme, c.Low)
	}
}

// Execute는 봉 종가 시점의 전략 결정을 처리합니다
func (x *Executor) Execute(bar int, history domain.CandleList, decision domain.Decision) {
	d, ok := decision.Sanitize()
	if !ok {
		x.skip(SkipInvalidDecision, bar, fmt.Sprintf("action=%s", decision.Action))
		return
	}
	if d.Action == domain.ActionHold {
		return
	}
	if x.pending != nil {
		x.skip(SkipOrderPending, bar, string(d.Action))
		return
	}

	switch d.Action {
	case domain.ActionBuy, domain.ActionSell:
		side, _ := position.SideFromAction(d.Action)
		if x.pos != nil {
			if x.pos.Side != side {
				x.startExit(bar, history)
			} else {
				x.skip(SkipPositionOpen, bar, string(side))
			}
			return
		}
		if side == domain.ShortPosition && !x.cfg.AllowShort {
			x.skip(SkipShortNotAllowed, bar, "")
			return
		}
		x.startEntry(bar, history, side, d)

	case domain.ActionClose:
		if x.pos == nil {
			x.skip(SkipNoPosition, bar, "")
			return
		}
		x.startExit(bar, history)
	}
}

// Liquidate는 열린 포지션을 현재 봉 종가로 전량 청산합니다
func (x *Executor) Liquidate(bar int, history domain.CandleList, reason ExitReason) {
	if x.pos == nil {
		return
	}
	c := history[bar]
	x.logger.Info("포지션 강제 청산",
		zap.String("side", string(x.pos.Side)),
		zap.Int64("quantity", x.pos.Quantity),
		zap.Float64("price", c.Close),
		zap.String("reason", string(reason)))
	x.closeAll(bar, history, c.Close, closeTime(c), reason)
}

// ExpirePending은 남은 미체결 주문을 만료 처리합니다
func (x *Executor) ExpirePending(bar int) {
	if x.pending == nil {
		return
	}
	x.skip(SkipOrderExpired, bar, fmt.Sprintf("remaining=%d", x.pending.remaining))
	x.pending = nil
}

func (x *Executor) startEntry(bar int, history domain.CandleList, side domain.PositionSide, d domain.Decision) {
	o := &pendingOrder{kind: orderEntry, side: side, decision: d, decisionBar: bar}
	if x.cfg.latencyEnabled() {
		o.delayed = true
		x.pending = o
		return
	}
	c := history[bar]
	x.fillEntry(o, bar, history, c.Close, closeTime(c), false)
}

func (x *Executor) startExit(bar int, history domain.CandleList) {
	o := &pendingOrder{kind: orderExit, side: x.pos.Side, decisionBar: bar, remaining: x.pos.Quantity}
	if x.cfg.latencyEnabled() {
		o.delayed = true
		x.pending = o
		return
	}
	c := history[bar]
	x.fillSignalExit(o, bar, history, c.Close, closeTime(c))
}

// protectiveLevels는 진입가 기준으로 올바른 쪽에 있는 손절/익절가만 남깁니다.
// sizingStop은 UseStopLoss와 무관하게 포지션 크기 계산에 사용됩니다.
func (x *Executor) protectiveLevels(side domain.PositionSide, price float64, d domain.Decision) (sizingStop, stop, target float64) {
	long := side == domain.LongPosition
	if d.StopLoss > 0 && ((long && d.StopLoss < price) || (!long && d.StopLoss > price)) {
		sizingStop = d.StopLoss
		if x.cfg.UseStopLoss {
			stop = d.StopLoss
		}
	}
	if x.cfg.UseTakeProfit && d.TakeProfit > 0 && ((long && d.TakeProfit > price) || (!long && d.TakeProfit < price)) {
		target = d.TakeProfit
	}
	return sizingStop, stop, target
}

func (x *Executor) size(price, stop float64, requested int64) (int64, error) {
	result, err := position.CalculatePositionSize(price, stop, position.SizingConfig{
		Capital:         x.capital,
		RiskPerTrade:    x.cfg.RiskPerTrade,
		MaxPositionSize: x.cfg.MaxPositionSize,
		DefaultStopPct:  x.cfg.DefaultStopPct,
	})
	if err != nil {
		return 0, err
	}
	if requested > 0 {
		maxQty := int64(math.Floor(x.capital * x.cfg.MaxPositionSize / price))
		if requested > maxQty {
			return maxQty, nil
		}
		return requested, nil
	}
	return result.Quantity, nil
}

func (x *Executor) fillEntry(o *pendingOrder, bar int, history domain.CandleList, price float64, at time.Time, atOpen bool) {
	if x.pos == nil && o.remaining == 0 {
		sizingStop, stop, target := x.protectiveLevels(o.side, price, o.decision)
		qty, err := x.size(price, sizingStop, o.decision.Quantity)
		if err != nil {
			x.pending = nil
			x.skip(SkipInvalidPrice, bar, err.Error())
			return
		}
		if qty <= 0 {
			x.pending = nil
			x.skip(SkipZeroQuantity, bar, "")
			return
		}
		o.remaining = qty
		o.stopLoss = stop
		o.takeProfit = target
	}

	qty := o.remaining
	if capacity, ok := cost.FillCapacity(x.cfg.Realistic); ok && qty > capacity {
		qty = capacity
	}

	exec, err := x.costs.ApplyEntryCost(price, o.side, cost.Context{
		Candle: history[bar], History: history, Quantity: qty, Time: at,
	})
	if err != nil {
		x.pending = nil
		x.skip(SkipInvalidPrice, bar, err.Error())
		return
	}

	committed := 0.0
	if x.pos != nil {
		committed = x.pos.entryNotional
	}
	if committed+exec.Notional+exec.Commission > x.capital {
		x.pending = nil
		x.skip(SkipInsufficientCapital, bar,
			fmt.Sprintf("필요 %.2f, 보유 %.2f", committed+exec.Notional+exec.Commission, x.capital))
		return
	}

	x.capital -= exec.Commission
	x.costs.Commit(exec.Notional)
	x.ledger.record(exec)

	fill := Fill{Leg: LegEntry, Bar: bar, Time: at, Quantity: qty, Price: exec.Price, Commission: exec.Commission}
	if x.pos == nil {
		x.open(o, fill, exec, atOpen)
	} else {
		x.pos.entryFills = append(x.pos.entryFills, fill)
		x.pos.entryQuantity += qty
		x.pos.entryNotional += exec.Notional
		x.pos.entryCommission += exec.Commission
		x.pos.Quantity += qty
		x.pos.EntryPrice = x.pos.entryNotional / float64(x.pos.entryQuantity)
		x.pos.diag.add(exec, qty, false)
	}

	x.logger.Debug("진입 체결",
		zap.String("side", string(o.side)),
		zap.Int("bar", bar),
		zap.Int64("quantity", qty),
		zap.Float64("price", exec.Price),
		zap.Float64("commission", exec.Commission))

	o.remaining -= qty
	if o.remaining > 0 {
		x.pending = o
	} else {
		x.pending = nil
	}
}

func (x *Executor) open(o *pendingOrder, fill Fill, exec cost.Execution, atOpen bool) {
	x.seq++
	id := uuid.NewSHA1(tradeNamespace, []byte(fmt.Sprintf("%s:%s:%d", x.runID, x.cfg.Symbol, x.seq)))

	eligibleFrom := fill.Bar + 1
	if atOpen {
		eligibleFrom = fill.Bar
	}

	p := &openPosition{
		Position: Position{
			Symbol:     x.cfg.Symbol,
			Side:       o.side,
			Quantity:   fill.Quantity,
			EntryPrice: fill.Price,
			EntryTime:  fill.Time,
			StopLoss:   o.stopLoss,
			TakeProfit: o.takeProfit,
		},
		trade: Trade{
			ID:         id.String(),
			Symbol:     x.cfg.Symbol,
			Side:       o.side,
			EntryTime:  fill.Time,
			EntryBar:   fill.Bar,
			StopLoss:   o.stopLoss,
			TakeProfit: o.takeProfit,
			Reason:     o.decision.Reason,
		},
		entryFills:      []Fill{fill},
		entryQuantity:   fill.Quantity,
		entryNotional:   exec.Notional,
		entryCommission: exec.Commission,
		eligibleFrom:    eligibleFrom,
		extreme:         fill.Price,
	}
	p.diag.add(exec, fill.Quantity, true)
	x.pos = p
}

// fillSignalExit은 전략 신호 청산을 처리합니다. 부분 체결이 켜져 있으면 용량만큼만 체결합니다.
func (x *Executor) fillSignalExit(o *pendingOrder, bar int, history domain.CandleList, price float64, at time.Time) {
	qty := o.remaining
	if qty > x.pos.Quantity {
		qty = x.pos.Quantity
	}
	if capacity, ok := cost.FillCapacity(x.cfg.Realistic); ok && qty > capacity {
		qty = capacity
	}

	if err := x.exitFill(bar, history, price, at, qty, ExitSignal, true); err != nil {
		x.pending = nil
		x.skip(SkipInvalidPrice, bar, err.Error())
		return
	}

	o.remaining -= qty
	if x.pos != nil && o.remaining > 0 {
		x.pending = o
	} else {
		x.pending = nil
	}
}

// closeAll은 보호 청산과 강제 청산에 사용되며 항상 전량 체결됩니다. 대기 주문은 취소됩니다.
func (x *Executor) closeAll(bar int, history domain.CandleList, price float64, at time.Time, reason ExitReason) {
	if x.pending != nil {
		x.skip(SkipOrderExpired, bar, fmt.Sprintf("%s 청산으로 취소", reason))
		x.pending = nil
	}
	_ = x.exitFill(bar, history, price, at, x.pos.Quantity, reason, false)
}

// exitFill은 청산 체결 한 건을 기록합니다. strict가 false면 비용 계산 실패 시 기준가로 체결합니다.
func (x *Executor) exitFill(bar int, history domain.CandleList, price float64, at time.Time, qty int64, reason ExitReason, strict bool) error {
	p := x.pos
	exec, err := x.costs.ApplyExitCost(price, p.Side, cost.Context{
		Candle: history[bar], History: history, Quantity: qty, Time: at,
	})
	if err != nil {
		if strict {
			return err
		}
		x.logger.Warn("청산 비용 계산 실패, 기준가로 청산합니다", zap.Error(err))
		exec = cost.Execution{Price: price, Notional: price * float64(qty), Details: cost.Diagnostics{CommissionTier: -1}}
	}

	gross := p.Side.Sign() * (exec.Price - p.EntryPrice) * float64(qty)
	x.capital += gross - exec.Commission
	x.costs.Commit(exec.Notional)
	x.ledger.record(exec)

	p.Quantity -= qty
	p.exitCommission += exec.Commission
	p.exitFills = append(p.exitFills, Fill{
		Leg: LegExit, Bar: bar, Time: at, Quantity: qty, Price: exec.Price, Commission: exec.Commission,
	})
	p.diag.add(exec, qty, false)

	x.logger.Debug("청산 체결",
		zap.String("side", string(p.Side)),
		zap.Int("bar", bar),
		zap.Int64("quantity", qty),
		zap.Float64("price", exec.Price),
		zap.String("reason", string(reason)))

	if p.Quantity <= 0 {
		x.finalize(bar, at, reason)
	}
	return nil
}

// finalize는 거래를 확정하고 포지션을 제거합니다
func (x *Executor) finalize(bar int, at time.Time, reason ExitReason) {
	p := x.pos
	t := p.trade

	var exitNotional float64
	var exitQty int64
	for _, f := range p.exitFills {
		exitNotional += f.Price * float64(f.Quantity)
		exitQty += f.Quantity
	}
	exitPrice := finite(exitNotional / float64(exitQty))

	fees := p.entryCommission + p.exitCommission
	pnl := finite(p.Side.Sign()*(exitPrice-p.EntryPrice)*float64(p.entryQuantity) - fees)
	costBasis := float64(p.entryQuantity) * p.EntryPrice
	pnlPercent := 0.0
	if costBasis > 0 {
		pnlPercent = finite(pnl / costBasis * 100)
	}

	exitTime := at
	t.ExitTime = &exitTime
	t.ExitBar = bar
	t.EntryPrice = p.EntryPrice
	t.ExitPrice = &exitPrice
	t.Quantity = p.entryQuantity
	t.PnL = &pnl
	t.PnLPercent = &pnlPercent
	t.Fees = fees
	t.ExitReason = reason

	if x.cfg.Realistic != nil {
		fills := make([]Fill, 0, len(p.entryFills)+len(p.exitFills))
		fills = append(fills, p.entryFills...)
		fills = append(fills, p.exitFills...)
		diag := &TradeDiagnostics{
			SlippageAmount:   p.diag.slippage,
			CommissionTier:   p.diag.tier,
			TimeOfDayFactor:  p.diag.timeOfDay,
			VolatilityFactor: p.diag.volatility,
			PartialFills:     fills,
		}
		if p.diag.quantity > 0 {
			diag.MarketImpact = p.diag.impactWeighted / p.diag.quantity
			diag.EffectiveSlippage = p.diag.effWeighted / p.diag.quantity
		}
		if x.cfg.Realistic.LatencyEnabled {
			diag.LatencyMs = x.cfg.Realistic.LatencyMs
		}
		t.Diagnostics = diag
	}

	x.trades = append(x.trades, t)
	x.pos = nil

	x.logger.Debug("거래 종료",
		zap.String("id", t.ID),
		zap.String("side", string(t.Side)),
		zap.Float64("pnl", pnl),
		zap.Float64("pnlPercent", pnlPercent),
		zap.String("reason", string(reason)))
}

// partialFillTrades는 진입 또는 청산이 여러 번에 나뉘어 체결된 거래 수입니다
func partialFillTrades(trades []Trade) (count int, totalFills int) {
	for _, t := range trades {
		if t.Diagnostics == nil {
			totalFills += 2
			continue
		}
		entries, exits := 0, 0
		for _, f := range t.Diagnostics.PartialFills {
			if f.Leg == LegEntry {
				entries++
			} else {
				exits++
			}
		}
		if entries > 1 || exits > 1 {
			count++
		}
		totalFills += len(t.Diagnostics.PartialFills)
	}
	return count, totalFills
}

func closeTime(c domain.Candle) time.Time {
	if c.CloseTime.IsZero() {
		return c.OpenTime
	}
	return c.CloseTime
}
