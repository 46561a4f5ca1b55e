// Package notification은 백테스트 실행 결과를 외부 채널로 알립니다.
package notification

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/assist-by/phoenix-backtest/internal/backtest"
)

const (
	ColorSuccess = 0x00FF00 // 녹색
	ColorError   = 0xFF0000 // 빨간색
	ColorInfo    = 0x0099FF // 파란색
	ColorWarning = 0xFFA500 // 주황색
)

// Notifier는 알림 전송 인터페이스를 정의합니다
type Notifier interface {
	// SendReport는 완료된 백테스트 요약을 전송합니다
	SendReport(ctx context.Context, name string, result *backtest.Result) error

	// SendError는 실패한 백테스트 알림을 전송합니다
	SendError(ctx context.Context, name string, err error) error
}

// ColorForResult는 실행 상태와 수익률에 따른 색상을 반환합니다
func ColorForResult(result *backtest.Result) int {
	switch {
	case result == nil:
		return ColorError
	case result.Status != backtest.StatusCompleted:
		return ColorWarning
	case result.Metrics.TotalReturn > 0:
		return ColorSuccess
	case result.Metrics.TotalReturn < 0:
		return ColorError
	default:
		return ColorInfo
	}
}

// Observer는 Notifier를 backtest.RunObserver로 연결합니다.
// 전송 실패는 로그만 남기고 백테스트 결과에는 영향을 주지 않습니다.
type Observer struct {
	notifier Notifier
	timeout  time.Duration
	logger   *zap.Logger
}

// NewObserver는 새로운 Observer를 생성합니다. timeout이 0 이하면 10초를 사용합니다.
func NewObserver(notifier Notifier, timeout time.Duration, logger *zap.Logger) *Observer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Observer{notifier: notifier, timeout: timeout, logger: logger}
}

// ObserveRun은 실행 결과를 알림으로 전송합니다
func (o *Observer) ObserveRun(name string, result *backtest.Result, err error, elapsed time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	var sendErr error
	if err != nil {
		sendErr = o.notifier.SendError(ctx, name, err)
	} else {
		sendErr = o.notifier.SendReport(ctx, name, result)
	}
	if sendErr != nil {
		o.logger.Warn("알림 전송 실패", zap.String("name", name), zap.Error(sendErr))
	}
}

// MultiObserver는 여러 관찰자에게 같은 통지를 순서대로 전달합니다
type MultiObserver []backtest.RunObserver

// ObserveRun은 backtest.RunObserver를 구현합니다
func (m MultiObserver) ObserveRun(name string, result *backtest.Result, err error, elapsed time.Duration) {
	for _, o := range m {
		if o != nil {
			o.ObserveRun(name, result, err, elapsed)
		}
	}
}
