package strategy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/assist-by/phoenix-backtest/internal/domain"
)

// Strategy는 트레이딩 전략의 인터페이스를 정의합니다
type Strategy interface {
	// Decide는 현재 봉까지의 데이터와 포지션 상태로 매매 결정을 내립니다.
	// history의 마지막 캔들이 현재 봉이며 그 이후 데이터는 주어지지 않습니다.
	Decide(ctx context.Context, history domain.CandleList, state domain.PositionState) (domain.Decision, error)

	// GetName은 전략의 이름을 반환합니다
	GetName() string

	// GetDescription은 전략의 설명을 반환합니다
	GetDescription() string

	// GetConfig는 전략의 현재 설정을 반환합니다
	GetConfig() map[string]interface{}
}

// BaseStrategy는 이름, 설명, 설정 조회를 구현해 두어 전략은 Decide만 작성하면 됩니다
type BaseStrategy struct {
	Name        string
	Description string
	Config      map[string]interface{}
}

// GetName은 전략의 이름을 반환합니다
func (b *BaseStrategy) GetName() string {
	return b.Name
}

// GetDescription은 전략의 설명을 반환합니다
func (b *BaseStrategy) GetDescription() string {
	return b.Description
}

// GetConfig는 전략의 현재 설정을 반환합니다
func (b *BaseStrategy) GetConfig() map[string]interface{} {
	out := make(map[string]interface{}, len(b.Config))
	for k, v := range b.Config {
		out[k] = v
	}
	return out
}

// Factory는 전략 인스턴스를 생성하는 함수 타입입니다
type Factory func(config map[string]interface{}) (Strategy, error)

// ErrUnknownStrategy는 등록되지 않은 전략 이름으로 생성을 요청했을 때 반환됩니다
var ErrUnknownStrategy = errors.New("존재하지 않는 전략")

// Registry는 이름별 전략 팩토리 목록입니다.
// 배치 실행과 HTTP 핸들러가 동시에 Create를 호출하므로 잠금으로 보호합니다.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry는 비어 있는 레지스트리를 생성합니다
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register는 팩토리를 등록합니다. 같은 이름이 있으면 교체합니다.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Has는 전략이 등록되어 있는지 확인합니다
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Create는 새 전략 인스턴스를 만듭니다. 실행마다 새로 만들어 상태가 공유되지 않게 합니다.
func (r *Registry) Create(name string, config map[string]interface{}) (Strategy, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}
	return factory(config)
}

// ListStrategies는 등록된 전략 이름을 정렬해서 반환합니다
func (r *Registry) ListStrategies() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
