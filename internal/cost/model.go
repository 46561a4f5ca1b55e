package cost

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/assist-by/phoenix-backtest/internal/domain"
	"github.com/assist-by/phoenix-backtest/internal/position"
)

var (
	// ErrInvalidPrice는 비용 적용 후 체결가가 0 이하이거나 유한하지 않을 때 반환됩니다
	ErrInvalidPrice = errors.New("유효하지 않은 체결가")
	// ErrEmptyTierTable은 구간 수수료가 켜져 있는데 구간표가 비어 있을 때 반환됩니다
	ErrEmptyTierTable = errors.New("수수료 구간표가 비어 있습니다")
)

// Context는 현실 모드 비용 계산에 필요한 시장 정보입니다
type Context struct {
	Candle   domain.Candle     // 체결 기준 봉
	History  domain.CandleList // 현재 봉까지의 이력 (변동성 계산용)
	Quantity int64             // 체결 수량
	Time     time.Time         // 체결 시각 (0이면 봉 시작 시간)
}

// Diagnostics는 체결 한 건의 비용 분해 정보입니다
type Diagnostics struct {
	SlippageAmount    float64 `json:"slippageAmount"`
	MarketImpact      float64 `json:"marketImpact"`
	EffectiveSlippage float64 `json:"effectiveSlippage"`
	CommissionRate    float64 `json:"commissionRate"`
	CommissionTier    int     `json:"commissionTier"` // 단일 수수료면 -1
	TimeOfDayFactor   float64 `json:"timeOfDayFactor"`
	VolatilityFactor  float64 `json:"volatilityFactor"`
}

// Execution은 비용이 반영된 체결 결과입니다
type Execution struct {
	Price      float64     `json:"price"`
	Notional   float64     `json:"notional"`
	Commission float64     `json:"commission"`
	Details    Diagnostics `json:"details"`
}

// Model은 슬리피지와 수수료를 계산하는 비용 모델입니다.
// 누적 거래대금을 보관하므로 백테스트 실행마다 새로 생성해야 합니다.
type Model struct {
	settings   Settings
	tiers      []Tier
	cumulative decimal.Decimal
}

// NewModel은 새로운 비용 모델을 생성합니다
func NewModel(settings Settings) (*Model, error) {
	m := &Model{settings: settings, cumulative: decimal.Zero}

	if settings.tieringEnabled() {
		if len(settings.Realistic.CommissionTiers) == 0 {
			return nil, ErrEmptyTierTable
		}
		m.tiers = make([]Tier, len(settings.Realistic.CommissionTiers))
		copy(m.tiers, settings.Realistic.CommissionTiers)
		sort.SliceStable(m.tiers, func(i, j int) bool {
			if m.tiers[i].VolumeThreshold == m.tiers[j].VolumeThreshold {
				return m.tiers[i].Rate < m.tiers[j].Rate
			}
			return m.tiers[i].VolumeThreshold < m.tiers[j].VolumeThreshold
		})
	}

	return m, nil
}

// ApplyEntryCost는 진입 체결가와 수수료를 계산합니다 (롱 진입 = 매수, 숏 진입 = 매도)
func (m *Model) ApplyEntryCost(price float64, side domain.PositionSide, ctx Context) (Execution, error) {
	return m.apply(price, position.OrderSideForEntry(side), ctx)
}

// ApplyExitCost는 청산 체결가와 수수료를 계산합니다 (롱 청산 = 매도, 숏 청산 = 매수)
func (m *Model) ApplyExitCost(price float64, side domain.PositionSide, ctx Context) (Execution, error) {
	return m.apply(price, position.OrderSideForExit(side), ctx)
}

func (m *Model) apply(price float64, orderSide domain.OrderSide, ctx Context) (Execution, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return Execution{}, fmt.Errorf("%w: 기준가 %.8f", ErrInvalidPrice, price)
	}

	rate, diag := m.slippageRate(ctx)

	execPrice := price * (1 + rate)
	if orderSide == domain.Sell {
		execPrice = price * (1 - rate)
	}
	if math.IsNaN(execPrice) || math.IsInf(execPrice, 0) || execPrice <= 0 {
		return Execution{}, fmt.Errorf("%w: 슬리피지 %.6f 적용 후 %.8f", ErrInvalidPrice, rate, execPrice)
	}

	qty := float64(ctx.Quantity)
	notional := execPrice * qty
	commission, commissionRate, tier := m.Commission(notional)

	diag.SlippageAmount = math.Abs(execPrice-price) * qty
	diag.CommissionRate = commissionRate
	diag.CommissionTier = tier

	return Execution{
		Price:      execPrice,
		Notional:   notional,
		Commission: commission,
		Details:    diag,
	}, nil
}

// Commission은 거래대금에 대한 수수료, 적용 수수료율, 구간 인덱스를 반환합니다
func (m *Model) Commission(notional float64) (float64, float64, int) {
	if notional <= 0 || math.IsNaN(notional) || math.IsInf(notional, 0) {
		return 0, 0, -1
	}

	rate := m.settings.Commission
	tier := -1
	if m.settings.tieringEnabled() {
		basis := decimal.NewFromFloat(notional)
		if m.settings.Realistic.TierBasis == TierCumulative {
			basis = basis.Add(m.cumulative)
		}
		tier = SelectTier(m.tiers, basis.InexactFloat64())
		rate = m.tiers[tier].Rate
	}
	if rate <= 0 {
		return 0, 0, tier
	}

	fee := decimal.NewFromFloat(notional).Mul(decimal.NewFromFloat(rate)).Round(8)
	return fee.InexactFloat64(), rate, tier
}

// Commit은 실제로 체결된 거래대금을 누적합니다
func (m *Model) Commit(notional float64) {
	if notional <= 0 || math.IsNaN(notional) || math.IsInf(notional, 0) {
		return
	}
	m.cumulative = m.cumulative.Add(decimal.NewFromFloat(notional))
}

// CumulativeNotional은 지금까지 누적된 거래대금입니다
func (m *Model) CumulativeNotional() float64 {
	return m.cumulative.InexactFloat64()
}

// SelectTier는 기준 금액 이하의 가장 큰 구간 기준값을 가진 구간 인덱스를 반환합니다.
// tiers는 (기준값 오름차순, 수수료율 오름차순)으로 정렬되어 있어야 하며,
// 같은 기준값이 여러 개면 수수료율이 가장 낮은 구간이 선택됩니다.
// 가장 작은 기준값보다 작은 금액은 첫 번째 구간을 사용합니다.
func SelectTier(tiers []Tier, notional float64) int {
	idx := 0
	for i := range tiers {
		if tiers[i].VolumeThreshold <= notional && tiers[i].VolumeThreshold > tiers[idx].VolumeThreshold {
			idx = i
		}
	}
	return idx
}
