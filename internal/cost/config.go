package cost

// Market는 비용 체계(regime)를 구분합니다
type Market string

const (
	// MarketA는 장 시작/마감이 있는 세션형 시장입니다. 시간대 슬리피지 배수가 적용됩니다.
	MarketA Market = "A"
	// MarketB는 24시간 연속 시장입니다. 시간대 배수는 항상 1입니다.
	MarketB Market = "B"
)

// TierBasis는 수수료 구간을 고를 때 기준이 되는 거래대금 종류입니다
type TierBasis string

const (
	TierPerTrade   TierBasis = "trade"      // 이번 체결의 거래대금
	TierCumulative TierBasis = "cumulative" // 누적 거래대금 (이번 체결 포함)
)

// Tier는 구간별 수수료율 한 행입니다
type Tier struct {
	VolumeThreshold float64 `json:"volumeThreshold" yaml:"volumeThreshold" validate:"gte=0"`
	Rate            float64 `json:"rate" yaml:"rate" validate:"gte=0,lt=1"`
}

// RealisticConfig는 현실 모드 비용/체결 설정입니다
type RealisticConfig struct {
	Market             Market  `json:"market" yaml:"market" validate:"omitempty,oneof=A B"`
	AverageDailyVolume float64 `json:"averageDailyVolume" yaml:"averageDailyVolume" validate:"gte=0"`

	// SlippageEnabled는 시간대/변동성 배수와 시장 충격을 켭니다.
	// 꺼져 있어도 Settings.Slippage 기본 슬리피지는 그대로 적용됩니다.
	SlippageEnabled bool `json:"slippageEnabled" yaml:"slippageEnabled"`
	// CommissionEnabled는 CommissionTiers 구간 수수료를 켭니다.
	// 꺼져 있으면 Settings.Commission 고정 수수료율이 적용됩니다.
	CommissionEnabled  bool `json:"commissionEnabled" yaml:"commissionEnabled"`
	PartialFillEnabled bool `json:"partialFillEnabled" yaml:"partialFillEnabled"`
	LatencyEnabled     bool `json:"latencyEnabled" yaml:"latencyEnabled"`
	LatencyMs          int  `json:"latencyMs" yaml:"latencyMs" validate:"gte=0"`

	CommissionTiers []Tier    `json:"commissionTiers,omitempty" yaml:"commissionTiers" validate:"dive"`
	TierBasis       TierBasis `json:"tierBasis,omitempty" yaml:"tierBasis" validate:"omitempty,oneof=trade cumulative"`

	MarketImpactCoefficient       float64 `json:"marketImpactCoefficient" yaml:"marketImpactCoefficient" validate:"gte=0"`
	MarketOpenSlippageMultiplier  float64 `json:"marketOpenSlippageMultiplier" yaml:"marketOpenSlippageMultiplier" validate:"gte=0"`
	MarketCloseSlippageMultiplier float64 `json:"marketCloseSlippageMultiplier" yaml:"marketCloseSlippageMultiplier" validate:"gte=0"`
	VolatilityWindow              int     `json:"volatilityWindow" yaml:"volatilityWindow" validate:"gte=0"`
	VolatilitySlippageMultiplier  float64 `json:"volatilitySlippageMultiplier" yaml:"volatilitySlippageMultiplier" validate:"gte=0"`

	// 부분 체결 시 한 봉에서 체결 가능한 비율 (평균 일 거래량 대비)
	OrderBookDepth float64 `json:"orderBookDepth" yaml:"orderBookDepth" validate:"gte=0,lte=1"`

	// 세션 시간 (자정 이후 분 단위, MarketA 전용)
	SessionOpenMinute      int `json:"sessionOpenMinute" yaml:"sessionOpenMinute" validate:"gte=0,lt=1440"`
	SessionCloseMinute     int `json:"sessionCloseMinute" yaml:"sessionCloseMinute" validate:"gte=0,lte=1440"`
	OpenCloseWindowMinutes int `json:"openCloseWindowMinutes" yaml:"openCloseWindowMinutes" validate:"gte=0"`
}

// DefaultRealisticConfig는 현실 모드 기본값을 반환합니다. 모든 기능 토글은 꺼져 있습니다.
func DefaultRealisticConfig() RealisticConfig {
	return RealisticConfig{
		Market:                        MarketA,
		AverageDailyVolume:            1_000_000,
		LatencyMs:                     100,
		TierBasis:                     TierPerTrade,
		MarketImpactCoefficient:       0.1,
		MarketOpenSlippageMultiplier:  1.5,
		MarketCloseSlippageMultiplier: 1.3,
		VolatilityWindow:              20,
		VolatilitySlippageMultiplier:  1,
		OrderBookDepth:                0.1,
		SessionOpenMinute:             9 * 60,
		SessionCloseMinute:            15*60 + 30,
		OpenCloseWindowMinutes:        30,
	}
}

// Settings는 한 번의 백테스트 실행에 필요한 비용 모델 입력입니다
type Settings struct {
	Slippage   float64          // 기본 슬리피지 비율
	Spread     float64          // 호가 스프레드 비율 (체결마다 절반 적용)
	Commission float64          // 단일 수수료율
	Realistic  *RealisticConfig // nil이면 현실 모드 비활성
}

// tieringEnabled는 구간 수수료가 적용되는지 여부입니다
func (s Settings) tieringEnabled() bool {
	return s.Realistic != nil && s.Realistic.CommissionEnabled
}

// realisticSlippage는 현실 모드 슬리피지 보정이 적용되는지 여부입니다
func (s Settings) realisticSlippage() bool {
	return s.Realistic != nil && s.Realistic.SlippageEnabled
}
