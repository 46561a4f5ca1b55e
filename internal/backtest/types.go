package backtest

import (
	"time"

	"github.com/assist-by/phoenix-backtest/internal/domain"
)

// ExitReason은 포지션 청산 이유를 정의합니다
type ExitReason string

const (
	ExitTarget       ExitReason = "target"        // 익절
	ExitStop         ExitReason = "stop"          // 손절
	ExitSignal       ExitReason = "signal"        // 전략 신호
	ExitEndOfData    ExitReason = "end_of_data"   // 데이터 종료 또는 강제 청산
	ExitTime         ExitReason = "time"          // 최대 보유 기간 초과
	ExitTrailingStop ExitReason = "trailing_stop" // 추적 손절
)

// Status는 백테스트 실행 종료 상태입니다
type Status string

const (
	StatusCompleted          Status = "completed"
	StatusAbortedMaxDrawdown Status = "aborted_max_drawdown"
	StatusCancelled          Status = "cancelled"
)

// SkipReason은 결정이 체결되지 않고 건너뛰어진 이유입니다
type SkipReason string

const (
	SkipZeroQuantity        SkipReason = "zero_quantity"
	SkipInsufficientCapital SkipReason = "insufficient_capital"
	SkipNoPosition          SkipReason = "no_position"
	SkipShortNotAllowed     SkipReason = "short_not_allowed"
	SkipInvalidDecision     SkipReason = "invalid_decision"
	SkipInvalidPrice        SkipReason = "invalid_price"
	SkipPositionOpen        SkipReason = "position_open"
	SkipOrderPending        SkipReason = "order_pending"
	SkipStrategyError       SkipReason = "strategy_error"
	SkipOrderExpired        SkipReason = "order_expired"
)

// FillLeg는 체결이 진입인지 청산인지 구분합니다
type FillLeg string

const (
	LegEntry FillLeg = "entry"
	LegExit  FillLeg = "exit"
)

// Fill은 주문의 개별 체결 기록입니다
type Fill struct {
	Leg        FillLeg   `json:"leg"`
	Bar        int       `json:"bar"`
	Time       time.Time `json:"time"`
	Quantity   int64     `json:"quantity"`
	Price      float64   `json:"price"`
	Commission float64   `json:"commission"`
}

// TradeDiagnostics는 현실 모드에서 거래 한 건의 비용/체결 진단 정보입니다
type TradeDiagnostics struct {
	SlippageAmount    float64 `json:"slippageAmount"`
	MarketImpact      float64 `json:"marketImpact"`
	EffectiveSlippage float64 `json:"effectiveSlippage"`
	CommissionTier    int     `json:"commissionTier"`
	TimeOfDayFactor   float64 `json:"timeOfDayFactor"`
	VolatilityFactor  float64 `json:"volatilityFactor"`
	PartialFills      []Fill  `json:"partialFills"`
	LatencyMs         int     `json:"latencyMs"`
}

// Trade는 한 번의 진입-청산 거래 기록입니다.
// 청산 전에는 ExitTime, ExitPrice, PnL, PnLPercent가 모두 nil 입니다.
type Trade struct {
	ID         string              `json:"id"`
	Symbol     string              `json:"symbol,omitempty"`
	Side       domain.PositionSide `json:"side"`
	EntryTime  time.Time           `json:"entryTime"`
	ExitTime   *time.Time          `json:"exitTime,omitempty"`
	EntryBar   int                 `json:"entryBar"`
	ExitBar    int                 `json:"exitBar"`
	EntryPrice float64             `json:"entryPrice"`
	ExitPrice  *float64            `json:"exitPrice,omitempty"`
	Quantity   int64               `json:"quantity"`
	StopLoss   float64             `json:"stopLoss,omitempty"`
	TakeProfit float64             `json:"takeProfit,omitempty"`
	PnL        *float64            `json:"pnl,omitempty"`
	PnLPercent *float64            `json:"pnlPercent,omitempty"`
	Fees       float64             `json:"fees"`
	ExitReason ExitReason          `json:"exitReason,omitempty"`
	Reason     string              `json:"reason,omitempty"` // 진입 결정 사유

	Diagnostics *TradeDiagnostics `json:"diagnostics,omitempty"`
}

// IsClosed는 거래가 청산되었는지 확인합니다
func (t Trade) IsClosed() bool {
	return t.ExitTime != nil && t.ExitPrice != nil && t.PnL != nil
}

// NetPnL은 청산된 거래의 손익을, 미청산이면 0을 반환합니다
func (t Trade) NetPnL() float64 {
	if t.PnL == nil {
		return 0
	}
	return *t.PnL
}

// CostBasis는 수량 × 진입가 입니다
func (t Trade) CostBasis() float64 {
	return float64(t.Quantity) * t.EntryPrice
}

// Position은 백테스트 중 열린 포지션 정보를 나타냅니다
type Position struct {
	Symbol     string              `json:"symbol,omitempty"`
	Side       domain.PositionSide `json:"side"`
	Quantity   int64               `json:"quantity"`   // 현재 보유 수량
	EntryPrice float64             `json:"entryPrice"` // 체결 가중 평균 진입가
	EntryTime  time.Time           `json:"entryTime"`
	StopLoss   float64             `json:"stopLoss,omitempty"`
	TakeProfit float64             `json:"takeProfit,omitempty"`
}

// CostBasis는 수량 × 진입가 입니다
func (p Position) CostBasis() float64 {
	return float64(p.Quantity) * p.EntryPrice
}

// Metrics는 거래 기록과 자산 곡선에서 계산한 성과 지표입니다
type Metrics struct {
	TotalTrades   int     `json:"totalTrades"`
	WinningTrades int     `json:"winningTrades"`
	LosingTrades  int     `json:"losingTrades"`
	WinRate       float64 `json:"winRate"` // %

	TotalProfit  float64 `json:"totalProfit"`
	TotalLoss    float64 `json:"totalLoss"`
	NetProfit    float64 `json:"netProfit"`
	ProfitFactor float64 `json:"profitFactor"`
	AvgWin       float64 `json:"avgWin"`
	AvgLoss      float64 `json:"avgLoss"`
	LargestWin   float64 `json:"largestWin"`
	LargestLoss  float64 `json:"largestLoss"`
	Expectancy   float64 `json:"expectancy"`
	AvgReturn    float64 `json:"avgReturn"` // 거래당 평균 수익률 (%)

	TotalReturn      float64 `json:"totalReturn"`      // %
	AnnualizedReturn float64 `json:"annualizedReturn"` // %
	Volatility       float64 `json:"volatility"`       // 연환산 %
	SharpeRatio      float64 `json:"sharpeRatio"`
	SortinoRatio     float64 `json:"sortinoRatio"`
	CalmarRatio      float64 `json:"calmarRatio"`

	MaxDrawdown         float64 `json:"maxDrawdown"` // %
	AvgDrawdown         float64 `json:"avgDrawdown"` // %
	MaxDrawdownDuration int     `json:"maxDrawdownDuration"`

	VaR95      float64 `json:"var95"`  // 봉 수익률 기준 % (양수 크기)
	VaR99      float64 `json:"var99"`  // 봉 수익률 기준 % (양수 크기)
	CVaR95     float64 `json:"cvar95"` // %
	CVaR99     float64 `json:"cvar99"` // %
	RiskOfRuin float64 `json:"riskOfRuin"`

	MaxConsecutiveWins   int     `json:"maxConsecutiveWins"`
	MaxConsecutiveLosses int     `json:"maxConsecutiveLosses"`
	AvgHoldingBars       float64 `json:"avgHoldingBars"`
	TotalFees            float64 `json:"totalFees"`
	FinalEquity          float64 `json:"finalEquity"`
}

// TransactionCosts는 실행 전체의 거래 비용 요약입니다
type TransactionCosts struct {
	TotalCommission       float64 `json:"totalCommission"`
	TotalSlippage         float64 `json:"totalSlippage"`
	TotalMarketImpact     float64 `json:"totalMarketImpact"`
	AvgCommissionPerTrade float64 `json:"avgCommissionPerTrade"`
	CostPercentOfCapital  float64 `json:"costPercentOfCapital"`
}

// ExecutionQuality는 체결 품질 요약입니다
type ExecutionQuality struct {
	TotalFills           int                `json:"totalFills"`
	AvgEffectiveSlippage float64            `json:"avgEffectiveSlippage"`
	AvgLatencyMs         float64            `json:"avgLatencyMs"`
	PartialFillTrades    int                `json:"partialFillTrades"`
	AvgFillsPerTrade     float64            `json:"avgFillsPerTrade"`
	SkippedDecisions     map[SkipReason]int `json:"skippedDecisions"`
}

// Result는 백테스트 결과를 저장하는 구조체입니다
type Result struct {
	Status           Status              `json:"status"`
	Symbol           string              `json:"symbol,omitempty"`
	Interval         domain.TimeInterval `json:"interval,omitempty"`
	Trades           []Trade             `json:"trades"`
	EquityCurve      []float64           `json:"equityCurve"`
	DrawdownCurve    []float64           `json:"drawdownCurve"`
	Metrics          Metrics             `json:"metrics"`
	Config           Config              `json:"config"`
	StartDate        time.Time           `json:"startDate"`
	EndDate          time.Time           `json:"endDate"`
	Duration         float64             `json:"duration"` // 일 단위
	BarsProcessed    int                 `json:"barsProcessed"`
	TransactionCosts TransactionCosts    `json:"transactionCosts"`
	ExecutionQuality ExecutionQuality    `json:"executionQuality"`
}

// ProgressFunc는 진행률 보고 콜백입니다. 결과에 영향을 주어서는 안 됩니다.
type ProgressFunc func(percent float64, currentIndex, totalBars int)
