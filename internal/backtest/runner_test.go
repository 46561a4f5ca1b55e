package backtest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/phoenix-backtest/internal/domain"
	"github.com/assist-by/phoenix-backtest/internal/strategy"
)

type syncObserver struct {
	mu    sync.Mutex
	names []string
}

func (o *syncObserver) ObserveRun(name string, result *Result, err error, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.names = append(o.names, name)
}

func TestRunner_RunsJobsIndependently(t *testing.T) {
	candles := makeCandles(sineCloses(120))
	buyFirst := func() (strategy.Strategy, error) {
		return newScripted(map[int]domain.Decision{0: {Action: domain.ActionBuy}}), nil
	}

	badConfig := testConfig()
	badConfig.InitialCapital = -1

	jobs := []Job{
		{Name: "ok-1", Config: testConfig(), Candles: candles, NewStrategy: buyFirst},
		{Name: "bad-config", Config: badConfig, Candles: candles, NewStrategy: buyFirst},
		{Name: "bad-strategy", Config: testConfig(), Candles: candles, NewStrategy: func() (strategy.Strategy, error) {
			return nil, errors.New("no such strategy")
		}},
		{Name: "ok-2", Config: testConfig(), Candles: candles, NewStrategy: buyFirst},
		{Name: "no-factory", Config: testConfig(), Candles: candles},
	}

	observer := &syncObserver{}
	results := NewRunner(2, nil, observer).Run(context.Background(), jobs)

	require.Len(t, results, len(jobs))
	for i, r := range results {
		assert.Equal(t, jobs[i].Name, r.Name, "결과는 입력 순서를 따른다")
	}

	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, ErrInvalidConfig)
	assert.Error(t, results[2].Err)
	assert.NoError(t, results[3].Err)
	assert.ErrorIs(t, results[4].Err, ErrInvalidConfig)

	// 같은 입력의 독립 실행은 같은 결과를 낸다
	require.NotNil(t, results[0].Result)
	require.NotNil(t, results[3].Result)
	assert.Equal(t, results[0].Result.Metrics, results[3].Result.Metrics)

	// 엔진까지 도달한 두 작업만 관찰자에게 통지된다
	assert.ElementsMatch(t, []string{"ok-1", "ok-2"}, observer.names)
}

func TestRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := []Job{{
		Name:    "cancelled",
		Config:  testConfig(),
		Candles: makeCandles(flatCloses(60, 100)),
		NewStrategy: func() (strategy.Strategy, error) {
			return newScripted(nil), nil
		},
	}}
	results := NewRunner(0, nil, nil).Run(ctx, jobs)

	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
	assert.Nil(t, results[0].Result)
}
