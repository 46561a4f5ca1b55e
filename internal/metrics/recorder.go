// Package metrics는 백테스트 실행 결과를 Prometheus 지표로 기록합니다.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/assist-by/phoenix-backtest/internal/backtest"
)

// Recorder는 자체 레지스트리를 가진 Prometheus 기록기입니다.
// backtest.RunObserver를 구현하므로 Engine과 Runner에 그대로 연결할 수 있습니다.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal   *prometheus.CounterVec
	tradesTotal *prometheus.CounterVec
	skipsTotal  *prometheus.CounterVec
	runDuration prometheus.Histogram
	finalEquity *prometheus.GaugeVec
	totalReturn *prometheus.GaugeVec
	maxDrawdown *prometheus.GaugeVec
	runFailures prometheus.Counter
}

// NewRecorder는 새로운 지표 기록기를 생성합니다
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtest_runs_total",
				Help: "Total number of finished backtest runs by status",
			},
			[]string{"status"},
		),
		tradesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtest_trades_total",
				Help: "Total number of closed trades",
			},
			[]string{"side", "exit_reason"},
		),
		skipsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtest_skipped_decisions_total",
				Help: "Total number of strategy decisions that were not executed",
			},
			[]string{"reason"},
		),
		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "backtest_run_duration_seconds",
				Help:    "Backtest run duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0},
			},
		),
		finalEquity: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "backtest_final_equity",
				Help: "Final equity of the latest run",
			},
			[]string{"run"},
		),
		totalReturn: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "backtest_total_return_percent",
				Help: "Total return percentage of the latest run",
			},
			[]string{"run"},
		),
		maxDrawdown: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "backtest_max_drawdown_percent",
				Help: "Max drawdown percentage of the latest run",
			},
			[]string{"run"},
		),
		runFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "backtest_run_failures_total",
				Help: "Total number of runs that ended with an error",
			},
		),
	}
}

// ObserveRun은 실행 하나의 결과를 기록합니다
func (r *Recorder) ObserveRun(name string, result *backtest.Result, err error, elapsed time.Duration) {
	r.runDuration.Observe(elapsed.Seconds())
	if err != nil || result == nil {
		r.runFailures.Inc()
		return
	}

	r.runsTotal.WithLabelValues(string(result.Status)).Inc()
	for _, trade := range result.Trades {
		r.tradesTotal.WithLabelValues(string(trade.Side), string(trade.ExitReason)).Inc()
	}
	for reason, n := range result.ExecutionQuality.SkippedDecisions {
		r.skipsTotal.WithLabelValues(string(reason)).Add(float64(n))
	}
	r.finalEquity.WithLabelValues(name).Set(result.Metrics.FinalEquity)
	r.totalReturn.WithLabelValues(name).Set(result.Metrics.TotalReturn)
	r.maxDrawdown.WithLabelValues(name).Set(result.Metrics.MaxDrawdown)
}

// Registry는 내부 레지스트리를 반환합니다
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler는 /metrics 엔드포인트 핸들러를 반환합니다
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
