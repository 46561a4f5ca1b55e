package backtest

import (
	"math"

	"github.com/montanaflynn/stats"
)

// 연환산에 사용하는 연간 봉 수
const barsPerYear = 252

// CalculateMetrics는 거래 기록과 자산 곡선에서 성과 지표를 계산합니다.
// 분모가 0이거나 입력이 비어 있으면 해당 지표는 0이며 NaN/Inf는 결과에 남지 않습니다.
func CalculateMetrics(trades []Trade, equity []float64, initialCapital float64) Metrics {
	m := Metrics{FinalEquity: initialCapital}
	if len(equity) > 0 {
		m.FinalEquity = equity[len(equity)-1]
	}

	calculateTradeStats(&m, trades)

	// 수익률
	if initialCapital > 0 {
		m.TotalReturn = (m.FinalEquity - initialCapital) / initialCapital * 100
	}
	m.AnnualizedReturn = annualizedReturn(m.TotalReturn/100, len(equity)-1) * 100

	// 봉 수익률 기반 지표
	returns := barReturns(equity)
	m.SharpeRatio = sharpeRatio(returns)
	m.SortinoRatio = sortinoRatio(returns)
	if std, err := stats.StandardDeviationSample(returns); err == nil {
		m.Volatility = std * math.Sqrt(barsPerYear) * 100
	}
	m.VaR95, m.CVaR95 = valueAtRisk(returns, 5)
	m.VaR99, m.CVaR99 = valueAtRisk(returns, 1)

	// 낙폭
	drawdowns := DrawdownCurve(equity, initialCapital)
	m.MaxDrawdown, m.AvgDrawdown, m.MaxDrawdownDuration = drawdownStats(drawdowns)
	if m.MaxDrawdown > 0 {
		m.CalmarRatio = m.AnnualizedReturn / m.MaxDrawdown
	}

	sanitizeMetrics(&m)
	return m
}

// calculateTradeStats는 거래 단위 통계(승률, 손익비, 연속 승/패 등)를 채웁니다
func calculateTradeStats(m *Metrics, trades []Trade) {
	var (
		pnlPercents              []float64
		holdingBars              float64
		currentWins, currentLoss int
	)

	for _, trade := range trades {
		if !trade.IsClosed() {
			continue
		}
		pnl := *trade.PnL
		m.TotalTrades++
		m.TotalFees += trade.Fees
		holdingBars += float64(trade.ExitBar - trade.EntryBar)
		if trade.PnLPercent != nil {
			pnlPercents = append(pnlPercents, *trade.PnLPercent)
		}

		// 손익 0은 패배로 집계
		if pnl > 0 {
			m.WinningTrades++
			m.TotalProfit += pnl
			m.LargestWin = math.Max(m.LargestWin, pnl)

			currentWins++
			currentLoss = 0
			if currentWins > m.MaxConsecutiveWins {
				m.MaxConsecutiveWins = currentWins
			}
		} else {
			m.LosingTrades++
			m.TotalLoss += math.Abs(pnl)
			m.LargestLoss = math.Min(m.LargestLoss, pnl)

			currentLoss++
			currentWins = 0
			if currentLoss > m.MaxConsecutiveLosses {
				m.MaxConsecutiveLosses = currentLoss
			}
		}
	}

	if m.TotalTrades == 0 {
		return
	}

	winRate := float64(m.WinningTrades) / float64(m.TotalTrades)
	m.WinRate = winRate * 100
	m.NetProfit = m.TotalProfit - m.TotalLoss
	m.AvgHoldingBars = holdingBars / float64(m.TotalTrades)

	if m.WinningTrades > 0 {
		m.AvgWin = m.TotalProfit / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = m.TotalLoss / float64(m.LosingTrades)
	}

	// 프로핏 팩터 계산
	if m.TotalLoss > 0 {
		m.ProfitFactor = m.TotalProfit / m.TotalLoss
	} else {
		m.ProfitFactor = m.TotalProfit // 손실이 없는 경우
	}

	m.Expectancy = winRate*m.AvgWin - (1-winRate)*m.AvgLoss
	if mean, err := stats.Mean(pnlPercents); err == nil {
		m.AvgReturn = mean
	}
	m.RiskOfRuin = RiskOfRuin(m.TotalTrades, winRate, m.AvgWin, m.AvgLoss)
}

// RiskOfRuin은 ((1-w)/w)^(ln0.5/ln(avgLoss/avgWin)) × 100 을 [0,100] 범위로 계산합니다.
// 근사식이며 엄밀한 파산 확률 모델은 아닙니다.
func RiskOfRuin(totalTrades int, winRate, avgWin, avgLoss float64) float64 {
	if totalTrades == 0 {
		return 0
	}
	if winRate <= 0 || avgWin <= 0 {
		return 100
	}
	if winRate >= 1 || avgLoss <= 0 {
		return 0
	}

	base := (1 - winRate) / winRate
	exponent := math.Log(0.5) / math.Log(avgLoss/avgWin)
	ruin := math.Pow(base, exponent) * 100
	if math.IsNaN(ruin) || math.IsInf(ruin, 0) {
		return 100
	}
	return math.Max(0, math.Min(100, ruin))
}

// DrawdownCurve는 자산 곡선에서 낙폭(%) 곡선을 만듭니다. 고점은 초기 자본에서 시작합니다.
func DrawdownCurve(equity []float64, initialCapital float64) []float64 {
	drawdowns := make([]float64, len(equity))
	peak := initialCapital
	for i, value := range equity {
		if value > peak {
			peak = value
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - value) / peak * 100
		drawdowns[i] = math.Max(0, math.Min(100, finite(dd)))
	}
	return drawdowns
}

// drawdownStats는 최대 낙폭, 평균 낙폭(낙폭 구간만), 최장 낙폭 지속 봉 수를 반환합니다
func drawdownStats(drawdowns []float64) (maxDD, avgDD float64, maxDuration int) {
	var underwater []float64
	duration := 0
	for _, dd := range drawdowns {
		if dd > maxDD {
			maxDD = dd
		}
		if dd > 0 {
			underwater = append(underwater, dd)
			duration++
			if duration > maxDuration {
				maxDuration = duration
			}
		} else {
			duration = 0
		}
	}
	if mean, err := stats.Mean(underwater); err == nil {
		avgDD = mean
	}
	return maxDD, avgDD, maxDuration
}

// barReturns는 연속된 자산 값 사이의 수익률입니다
func barReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1]
		if prev <= 0 {
			continue
		}
		returns = append(returns, (equity[i]-prev)/prev)
	}
	return returns
}

// sharpeRatio = (평균 × 252) / (표본 표준편차 × √252)
func sharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, err := stats.Mean(returns)
	if err != nil {
		return 0
	}
	std, err := stats.StandardDeviationSample(returns)
	if err != nil || std == 0 {
		return 0
	}
	return (mean * barsPerYear) / (std * math.Sqrt(barsPerYear))
}

// sortinoRatio는 하방 편차만 사용하는 샤프 비율입니다
func sortinoRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, err := stats.Mean(returns)
	if err != nil {
		return 0
	}
	var sumSquares float64
	for _, r := range returns {
		if r < 0 {
			sumSquares += r * r
		}
	}
	downside := math.Sqrt(sumSquares / float64(len(returns)))
	if downside == 0 {
		return 0
	}
	return (mean * barsPerYear) / (downside * math.Sqrt(barsPerYear))
}

// annualizedReturn은 봉 수 n 동안의 총 수익률 r을 연환산합니다: (1+r)^(252/n) - 1
func annualizedReturn(total float64, bars int) float64 {
	if bars <= 0 {
		return 0
	}
	base := 1 + total
	if base <= 0 {
		return -1
	}
	return math.Pow(base, barsPerYear/float64(bars)) - 1
}

// valueAtRisk는 최근접 순위 백분위수 기반 VaR와 그 꼬리 평균(CVaR)을 양수 %로 반환합니다
func valueAtRisk(returns []float64, percentile float64) (float64, float64) {
	if len(returns) == 0 {
		return 0, 0
	}
	cutoff, err := stats.PercentileNearestRank(returns, percentile)
	if err != nil {
		return 0, 0
	}

	var tail []float64
	for _, r := range returns {
		if r <= cutoff {
			tail = append(tail, r)
		}
	}
	cvar := 0.0
	if mean, err := stats.Mean(tail); err == nil {
		cvar = math.Max(0, -mean) * 100
	}
	return math.Max(0, -cutoff) * 100, cvar
}

// finite는 NaN/Inf를 0으로 바꿉니다
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func sanitizeMetrics(m *Metrics) {
	for _, v := range []*float64{
		&m.WinRate, &m.TotalProfit, &m.TotalLoss, &m.NetProfit, &m.ProfitFactor,
		&m.AvgWin, &m.AvgLoss, &m.LargestWin, &m.LargestLoss, &m.Expectancy, &m.AvgReturn,
		&m.TotalReturn, &m.AnnualizedReturn, &m.Volatility, &m.SharpeRatio, &m.SortinoRatio,
		&m.CalmarRatio, &m.MaxDrawdown, &m.AvgDrawdown, &m.VaR95, &m.VaR99, &m.CVaR95,
		&m.CVaR99, &m.RiskOfRuin, &m.AvgHoldingBars, &m.TotalFees, &m.FinalEquity,
	} {
		*v = finite(*v)
	}
}
