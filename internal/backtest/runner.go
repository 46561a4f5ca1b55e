package backtest

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/assist-by/phoenix-backtest/internal/domain"
	"github.com/assist-by/phoenix-backtest/internal/strategy"
)

// Job은 Runner가 실행할 백테스트 하나입니다.
// 전략 인스턴스는 실행마다 새로 만들어 작업 간에 상태가 공유되지 않습니다.
type Job struct {
	Name        string
	Config      Config
	Candles     domain.CandleList
	NewStrategy func() (strategy.Strategy, error)
}

// JobResult는 작업 하나의 실행 결과입니다
type JobResult struct {
	Name    string        `json:"name"`
	Result  *Result       `json:"result,omitempty"`
	Err     error         `json:"-"`
	Elapsed time.Duration `json:"elapsed"`
}

// Runner는 여러 백테스트를 제한된 수의 워커로 병렬 실행합니다
type Runner struct {
	Workers  int
	logger   *zap.Logger
	observer RunObserver
}

// NewRunner는 새로운 Runner를 생성합니다. workers가 0 이하면 CPU 수를 사용합니다.
func NewRunner(workers int, logger *zap.Logger, observer RunObserver) *Runner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{Workers: workers, logger: logger, observer: observer}
}

// Run은 모든 작업을 실행하고 입력 순서대로 결과를 반환합니다.
// 개별 작업의 실패는 해당 JobResult.Err에 기록되고 다른 작업을 중단시키지 않습니다.
// ctx가 취소되면 아직 시작하지 않은 작업은 ctx 에러로 끝납니다.
func (r *Runner) Run(ctx context.Context, jobs []Job) []JobResult {
	results := make([]JobResult, len(jobs))

	var g errgroup.Group
	g.SetLimit(r.Workers)

	for i, job := range jobs {
		g.Go(func() error {
			results[i] = r.runJob(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (r *Runner) runJob(ctx context.Context, job Job) JobResult {
	started := time.Now()
	out := JobResult{Name: job.Name}

	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}

	result, err := r.execute(ctx, job)
	out.Result = result
	out.Err = err
	out.Elapsed = time.Since(started)

	if err != nil {
		r.logger.Warn("백테스트 작업 실패", zap.String("job", job.Name), zap.Error(err))
	} else {
		r.logger.Debug("백테스트 작업 완료",
			zap.String("job", job.Name),
			zap.Duration("elapsed", out.Elapsed))
	}
	return out
}

func (r *Runner) execute(ctx context.Context, job Job) (*Result, error) {
	if job.NewStrategy == nil {
		return nil, &ConfigError{Field: "Strategy", Err: fmt.Errorf("작업 %q에 전략 생성 함수가 없습니다", job.Name)}
	}
	strat, err := job.NewStrategy()
	if err != nil {
		return nil, fmt.Errorf("전략 생성 실패: %w", err)
	}

	opts := []Option{WithLogger(r.logger.With(zap.String("job", job.Name))), WithName(job.Name)}
	if r.observer != nil {
		opts = append(opts, WithObserver(r.observer))
	}
	engine, err := NewEngine(job.Config, strat, job.Candles, opts...)
	if err != nil {
		return nil, err
	}
	return engine.Run(ctx)
}
