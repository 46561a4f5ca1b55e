package discord

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/phoenix-backtest/internal/backtest"
	"github.com/assist-by/phoenix-backtest/internal/domain"
	"github.com/assist-by/phoenix-backtest/internal/notification"
)

func sampleResult() *backtest.Result {
	return &backtest.Result{
		Status:    backtest.StatusCompleted,
		Symbol:    "BTCUSDT",
		Interval:  domain.Interval1d,
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Metrics: backtest.Metrics{
			TotalTrades:   4,
			WinningTrades: 3,
			LosingTrades:  1,
			WinRate:       75,
			TotalReturn:   12.5,
			FinalEquity:   11250,
			MaxDrawdown:   3.2,
		},
		ExecutionQuality: backtest.ExecutionQuality{
			SkippedDecisions: map[backtest.SkipReason]int{
				backtest.SkipPositionOpen:        5,
				backtest.SkipInsufficientCapital: 1,
			},
		},
	}
}

func TestReportEmbed(t *testing.T) {
	embed := ReportEmbed("sma-run", sampleResult())

	assert.Equal(t, "백테스트 결과: sma-run", embed.Title)
	assert.Equal(t, notification.ColorSuccess, embed.Color)
	assert.Contains(t, embed.Description, "2024-01-01 ~ 2024-06-01")
	require.NotEmpty(t, embed.Fields)
	assert.Equal(t, "12.50%", embed.Fields[0].Value)

	last := embed.Fields[len(embed.Fields)-1]
	assert.Equal(t, "건너뛴 결정", last.Name)
	assert.Equal(t, "insufficient_capital: 1\nposition_open: 5\n", last.Value)
}

func TestClient_SendReport(t *testing.T) {
	var (
		mu       sync.Mutex
		received WebhookMessage
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		mu.Lock()
		defer mu.Unlock()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	require.NoError(t, client.SendReport(context.Background(), "run", sampleResult()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received.Embeds, 1)
	assert.Equal(t, "백테스트 결과: run", received.Embeds[0].Title)
	assert.Equal(t, footer, received.Embeds[0].Footer.Text)
}

func TestClient_RetryOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, WithMaxRetries(5))
	require.NoError(t, client.SendError(context.Background(), "run", errors.New("boom")))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_NoRetryOnBadRequest(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "invalid embed", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL, WithMaxRetries(5))
	err := client.SendReport(context.Background(), "run", sampleResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_NoWebhook(t *testing.T) {
	err := NewClient("").SendReport(context.Background(), "run", sampleResult())
	assert.ErrorIs(t, err, ErrNoWebhook)
}

func TestObserver(t *testing.T) {
	var (
		mu     sync.Mutex
		titles []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg WebhookMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		mu.Lock()
		titles = append(titles, msg.Embeds[0].Title)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	observer := notification.NewObserver(NewClient(server.URL), time.Second, nil)
	observer.ObserveRun("ok", sampleResult(), nil, time.Millisecond)
	observer.ObserveRun("bad", nil, errors.New("boom"), time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"백테스트 결과: ok", "백테스트 실패: bad"}, titles)
}
