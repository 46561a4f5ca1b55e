// Package scheduler는 백테스트 같은 작업을 일정 간격으로 반복 실행합니다.
package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Task는 스케줄러가 실행할 작업을 정의하는 인터페이스입니다
type Task interface {
	Execute(ctx context.Context) error
}

// TaskFunc는 함수를 Task로 사용할 수 있게 합니다
type TaskFunc func(ctx context.Context) error

// Execute는 Task 인터페이스를 구현합니다
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Scheduler는 interval 경계마다 작업을 실행하는 스케줄러입니다
type Scheduler struct {
	interval   time.Duration
	task       Task
	runOnStart bool
	logger     *zap.Logger
	stopCh     chan struct{}
}

// Option은 Scheduler 선택 설정입니다
type Option func(*Scheduler)

// WithRunOnStart는 첫 경계를 기다리지 않고 시작 즉시 한 번 실행하게 합니다
func WithRunOnStart() Option {
	return func(s *Scheduler) {
		s.runOnStart = true
	}
}

// WithLogger는 로거를 지정합니다
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScheduler는 새로운 스케줄러를 생성합니다
func NewScheduler(interval time.Duration, task Task, opts ...Option) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("실행 간격은 0보다 커야 합니다")
	}
	if task == nil {
		return nil, errors.New("실행할 작업이 없습니다")
	}
	s := &Scheduler{
		interval: interval,
		task:     task,
		logger:   zap.NewNop(),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start는 ctx가 취소되거나 Stop이 호출될 때까지 작업을 반복합니다.
// 작업 실패는 로그만 남기고 다음 실행을 계속합니다.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.runOnStart {
		s.execute(ctx)
	}

	timer := time.NewTimer(s.untilNext())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.stopCh:
			return nil

		case <-timer.C:
			s.execute(ctx)
			timer.Reset(s.untilNext())
		}
	}
}

// Stop은 스케줄러를 중지합니다. 두 번 이상 호출하면 안 됩니다.
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) execute(ctx context.Context) {
	started := time.Now()
	if err := s.task.Execute(ctx); err != nil {
		s.logger.Error("작업 실행 실패", zap.Error(err))
		return
	}
	s.logger.Debug("작업 실행 완료", zap.Duration("elapsed", time.Since(started)))
}

// untilNext는 다음 interval 경계까지 남은 시간입니다
func (s *Scheduler) untilNext() time.Duration {
	now := time.Now()
	next := now.Truncate(s.interval).Add(s.interval)
	wait := next.Sub(now)

	s.logger.Info("다음 실행 대기",
		zap.Duration("wait", wait.Round(time.Millisecond)),
		zap.Time("next", next))
	return wait
}
