package backtest

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/assist-by/phoenix-backtest/internal/cost"
)

// MinBars는 백테스트에 필요한 최소 캔들 수 기본값입니다
const MinBars = 50

var (
	// ErrInvalidConfig는 설정 값이 올바르지 않을 때 반환됩니다
	ErrInvalidConfig = errors.New("잘못된 백테스트 설정")
	// ErrInsufficientData는 캔들 수가 최소 기준보다 적을 때 반환됩니다
	ErrInsufficientData = errors.New("캔들 데이터가 부족합니다")
)

// ConfigError는 특정 설정 필드의 검증 실패를 나타냅니다
type ConfigError struct {
	Field string
	Err   error
}

// Error는 error 인터페이스를 구현합니다
func (e *ConfigError) Error() string {
	return fmt.Sprintf("설정 에러 [필드: %s]: %v", e.Field, e.Err)
}

// Unwrap은 ErrInvalidConfig와 내부 에러를 함께 반환합니다
func (e *ConfigError) Unwrap() []error {
	return []error{ErrInvalidConfig, e.Err}
}

// Config는 백테스트 실행 설정입니다
type Config struct {
	Symbol   string `json:"symbol,omitempty" validate:"omitempty,max=32"`
	Interval string `json:"interval,omitempty"`

	InitialCapital  float64 `json:"initialCapital" validate:"gt=0"`
	Commission      float64 `json:"commission" validate:"gte=0,lt=1"`
	Slippage        float64 `json:"slippage" validate:"gte=0,lt=1"`
	Spread          float64 `json:"spread" validate:"gte=0,lt=1"`
	MaxPositionSize float64 `json:"maxPositionSize" validate:"gt=0,lte=1"`
	MaxDrawdown     float64 `json:"maxDrawdown" validate:"gte=0,lte=100"` // %, 0이면 비활성
	AllowShort      bool    `json:"allowShort"`
	UseStopLoss     bool    `json:"useStopLoss"`
	UseTakeProfit   bool    `json:"useTakeProfit"`
	RiskPerTrade    float64 `json:"riskPerTrade" validate:"gt=0,lte=1"`
	DefaultStopPct  float64 `json:"defaultStopPct" validate:"gte=0,lt=1"`
	MaxHoldingBars  int     `json:"maxHoldingBars" validate:"gte=0"`
	TrailingStopPct float64 `json:"trailingStopPct" validate:"gte=0,lt=1"`

	MinBars          int `json:"minBars" validate:"gte=1"`
	ProgressInterval int `json:"progressInterval" validate:"gte=0"`

	Realistic *cost.RealisticConfig `json:"realistic,omitempty"`
}

// DefaultConfig는 기본 백테스트 설정을 반환합니다
func DefaultConfig() Config {
	return Config{
		InitialCapital:   10000,
		Commission:       0.001,
		Slippage:         0.0005,
		MaxPositionSize:  0.95,
		UseStopLoss:      true,
		UseTakeProfit:    true,
		RiskPerTrade:     0.02,
		DefaultStopPct:   0.02,
		MinBars:          MinBars,
		ProgressInterval: 100,
	}
}

var validate = validator.New()

// Validate는 설정을 한 번 검증합니다. 실패하면 *ConfigError를 반환합니다.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ConfigError{
				Field: fe.StructNamespace(),
				Err:   fmt.Errorf("'%s' 조건 위반 (값: %v)", fe.Tag(), fe.Value()),
			}
		}
		return &ConfigError{Field: "Config", Err: err}
	}

	if rc := c.Realistic; rc != nil {
		if rc.CommissionEnabled && len(rc.CommissionTiers) == 0 {
			return &ConfigError{Field: "Config.Realistic.CommissionTiers", Err: cost.ErrEmptyTierTable}
		}
		if rc.Market == cost.MarketA && rc.SessionCloseMinute <= rc.SessionOpenMinute {
			return &ConfigError{
				Field: "Config.Realistic.SessionCloseMinute",
				Err:   fmt.Errorf("장 마감(%d)이 장 시작(%d)보다 늦어야 합니다", rc.SessionCloseMinute, rc.SessionOpenMinute),
			}
		}
		if rc.PartialFillEnabled && (rc.AverageDailyVolume <= 0 || rc.OrderBookDepth <= 0) {
			return &ConfigError{
				Field: "Config.Realistic.AverageDailyVolume",
				Err:   errors.New("부분 체결에는 양수의 평균 일 거래량과 호가 깊이가 필요합니다"),
			}
		}
	}

	return nil
}

// costSettings는 비용 모델 입력으로 변환합니다
func (c Config) costSettings() cost.Settings {
	return cost.Settings{
		Slippage:   c.Slippage,
		Spread:     c.Spread,
		Commission: c.Commission,
		Realistic:  c.Realistic,
	}
}

// latencyEnabled는 지연 체결(다음 봉 시가)이 켜져 있는지 여부입니다
func (c Config) latencyEnabled() bool {
	return c.Realistic != nil && c.Realistic.LatencyEnabled
}
