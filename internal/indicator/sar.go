package indicator

import (
	"fmt"
	"math"

	"github.com/assist-by/phoenix-backtest/internal/domain"
)

// SARPoint는 한 시점의 Parabolic SAR 값입니다
type SARPoint struct {
	SAR    float64 // SAR 값
	IsLong bool    // 현재 추세가 상승인지 여부
}

// ParabolicSAR은 Parabolic SAR을 계산합니다 (기본값: 0.02, 0.2)
func ParabolicSAR(candles domain.CandleList, accelerationInitial, accelerationMax float64) ([]SARPoint, error) {
	if len(candles) < 2 {
		return nil, &ValidationError{
			Field: "prices",
			Err:   fmt.Errorf("SAR 계산에는 최소 2개의 가격 데이터가 필요합니다"),
		}
	}
	if accelerationInitial <= 0 || accelerationMax < accelerationInitial {
		return nil, &ValidationError{
			Field: "acceleration",
			Err:   fmt.Errorf("잘못된 가속도 설정 (%.3f, %.3f)", accelerationInitial, accelerationMax),
		}
	}

	out := make([]SARPoint, len(candles))
	af := accelerationInitial
	sar := candles[0].Low
	ep := candles[0].High
	isLong := true
	out[0] = SARPoint{SAR: sar, IsLong: isLong}

	for i := 1; i < len(candles); i++ {
		c := candles[i]
		if isLong {
			sar += af * (ep - sar)
			if c.High > ep {
				ep = c.High
				af = math.Min(af+accelerationInitial, accelerationMax)
			}
			// 추세 전환
			if sar > c.Low {
				isLong = false
				sar = ep
				ep = c.Low
				af = accelerationInitial
			}
		} else {
			sar -= af * (sar - ep)
			if c.Low < ep {
				ep = c.Low
				af = math.Min(af+accelerationInitial, accelerationMax)
			}
			if sar < c.High {
				isLong = true
				sar = ep
				ep = c.High
				af = accelerationInitial
			}
		}
		out[i] = SARPoint{SAR: sar, IsLong: isLong}
	}
	return out, nil
}
