package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/assist-by/phoenix-backtest/internal/backtest"
	"github.com/assist-by/phoenix-backtest/internal/cost"
)

type Config struct {
	// 백테스트 설정
	Backtest struct {
		Symbol         string            `envconfig:"BACKTEST_SYMBOL" default:"BTCUSDT"`
		Interval       string            `envconfig:"BACKTEST_INTERVAL" default:"1d"`
		DataFile       string            `envconfig:"BACKTEST_DATA_FILE"`
		Strategy       string            `envconfig:"BACKTEST_STRATEGY" default:"emacross"`
		StrategyParams map[string]string `envconfig:"BACKTEST_STRATEGY_PARAMS"` // key:value,key:value

		InitialCapital  float64 `envconfig:"BACKTEST_INITIAL_CAPITAL" default:"10000"`
		Commission      float64 `envconfig:"BACKTEST_COMMISSION" default:"0.001"`
		Slippage        float64 `envconfig:"BACKTEST_SLIPPAGE" default:"0.0005"`
		Spread          float64 `envconfig:"BACKTEST_SPREAD" default:"0"`
		MaxPositionSize float64 `envconfig:"BACKTEST_MAX_POSITION_SIZE" default:"0.95"`
		MaxDrawdown     float64 `envconfig:"BACKTEST_MAX_DRAWDOWN" default:"0"`
		AllowShort      bool    `envconfig:"BACKTEST_ALLOW_SHORT" default:"false"`
		UseStopLoss     bool    `envconfig:"BACKTEST_USE_STOP_LOSS" default:"true"`
		UseTakeProfit   bool    `envconfig:"BACKTEST_USE_TAKE_PROFIT" default:"true"`
		RiskPerTrade    float64 `envconfig:"BACKTEST_RISK_PER_TRADE" default:"0.02"`
		DefaultStopPct  float64 `envconfig:"BACKTEST_DEFAULT_STOP_PCT" default:"0.02"`
		MaxHoldingBars  int     `envconfig:"BACKTEST_MAX_HOLDING_BARS" default:"0"`
		TrailingStopPct float64 `envconfig:"BACKTEST_TRAILING_STOP_PCT" default:"0"`
		MinBars         int     `envconfig:"BACKTEST_MIN_BARS" default:"50"`

		ProgressInterval int `envconfig:"BACKTEST_PROGRESS_INTERVAL" default:"100"`

		// 현실 모드 설정 YAML 경로 (비어 있으면 현실 모드 비활성)
		RealisticConfig string `envconfig:"BACKTEST_REALISTIC_CONFIG"`
	}

	// 로그 설정
	Log struct {
		Level       string `envconfig:"LOG_LEVEL" default:"info"`
		Development bool   `envconfig:"LOG_DEVELOPMENT" default:"false"`
	}

	// 결과 저장소 설정 (DSN이 비어 있으면 저장하지 않음)
	Store struct {
		DSN string `envconfig:"STORE_DSN"`
	}

	// HTTP 서버 설정
	Server struct {
		Addr string `envconfig:"SERVER_ADDR" default:":8080"`
	}

	// 배치 실행 설정
	Batch struct {
		Workers int `envconfig:"BATCH_WORKERS" default:"0"`
	}

	// 결과 알림 설정 (웹훅이 비어 있으면 알림 없음)
	Discord struct {
		ReportWebhook string        `envconfig:"DISCORD_REPORT_WEBHOOK"`
		Timeout       time.Duration `envconfig:"DISCORD_TIMEOUT" default:"10s"`
	}

	// 반복 실행 설정 (0이면 한 번만 실행)
	Schedule struct {
		Interval time.Duration `envconfig:"SCHEDULE_INTERVAL" default:"0"`
	}
}

// ValidateConfig는 설정이 유효한지 확인합니다.
// 백테스트 수치 범위는 backtest.Config.Validate에서 한 번 더 검증됩니다.
func ValidateConfig(cfg *Config) error {
	if cfg.Backtest.Symbol == "" {
		return fmt.Errorf("BACKTEST_SYMBOL은 비어 있을 수 없습니다")
	}

	if cfg.Backtest.Strategy == "" {
		return fmt.Errorf("BACKTEST_STRATEGY는 비어 있을 수 없습니다")
	}

	if cfg.Batch.Workers < 0 {
		return fmt.Errorf("BATCH_WORKERS는 0 이상이어야 합니다")
	}

	if cfg.Schedule.Interval < 0 {
		return fmt.Errorf("SCHEDULE_INTERVAL은 0 이상이어야 합니다")
	}

	return nil
}

// LoadConfig는 환경변수에서 설정을 로드합니다.
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (없으면 환경변수만 사용)
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".env 파일 로드 실패: %w", err)
	}

	var cfg Config
	// 환경변수를 구조체로 파싱
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("환경변수 처리 실패: %w", err)
	}

	// 설정값 검증
	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("설정값 검증 실패: %w", err)
	}

	return &cfg, nil
}

// LoadRealisticConfig는 YAML 파일에서 현실 모드 설정을 읽습니다.
// 파일에 없는 항목은 cost.DefaultRealisticConfig 값을 유지합니다.
func LoadRealisticConfig(path string) (*cost.RealisticConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("현실 모드 설정 파일 읽기 실패: %w", err)
	}
	return ParseRealisticConfig(data)
}

// ParseRealisticConfig는 YAML 바이트에서 현실 모드 설정을 읽습니다
func ParseRealisticConfig(data []byte) (*cost.RealisticConfig, error) {
	rc := cost.DefaultRealisticConfig()
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return nil, fmt.Errorf("현실 모드 설정 파싱 실패: %w", err)
	}
	return &rc, nil
}

// ToBacktestConfig는 환경 설정을 백테스트 실행 설정으로 변환합니다.
// 검증은 backtest.NewEngine에서 수행됩니다.
func (c *Config) ToBacktestConfig() (backtest.Config, error) {
	b := c.Backtest
	cfg := backtest.Config{
		Symbol:           b.Symbol,
		Interval:         b.Interval,
		InitialCapital:   b.InitialCapital,
		Commission:       b.Commission,
		Slippage:         b.Slippage,
		Spread:           b.Spread,
		MaxPositionSize:  b.MaxPositionSize,
		MaxDrawdown:      b.MaxDrawdown,
		AllowShort:       b.AllowShort,
		UseStopLoss:      b.UseStopLoss,
		UseTakeProfit:    b.UseTakeProfit,
		RiskPerTrade:     b.RiskPerTrade,
		DefaultStopPct:   b.DefaultStopPct,
		MaxHoldingBars:   b.MaxHoldingBars,
		TrailingStopPct:  b.TrailingStopPct,
		MinBars:          b.MinBars,
		ProgressInterval: b.ProgressInterval,
	}

	if b.RealisticConfig != "" {
		rc, err := LoadRealisticConfig(b.RealisticConfig)
		if err != nil {
			return backtest.Config{}, err
		}
		cfg.Realistic = rc
	}
	return cfg, nil
}

// StrategyConfig는 BACKTEST_STRATEGY_PARAMS 값을 전략 설정 맵으로 변환합니다.
// 숫자와 불리언은 해당 타입으로, 나머지는 문자열로 넣습니다.
func (c *Config) StrategyConfig() map[string]interface{} {
	out := make(map[string]interface{}, len(c.Backtest.StrategyParams))
	for k, v := range c.Backtest.StrategyParams {
		out[k] = parseParam(v)
	}
	return out
}

func parseParam(s string) interface{} {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
