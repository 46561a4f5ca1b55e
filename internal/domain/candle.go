package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidCandles는 캔들 목록이 백테스트 입력 조건을 만족하지 않을 때 반환됩니다
var ErrInvalidCandles = errors.New("유효하지 않은 캔들 데이터")

// Candle은 하나의 OHLCV 봉을 표현합니다
type Candle struct {
	OpenTime  time.Time    `json:"openTime"`  // 캔들 시작 시간
	CloseTime time.Time    `json:"closeTime"` // 캔들 종료 시간
	Open      float64      `json:"open"`      // 시가
	High      float64      `json:"high"`      // 고가
	Low       float64      `json:"low"`       // 저가
	Close     float64      `json:"close"`     // 종가
	Volume    float64      `json:"volume"`    // 거래량
	Symbol    string       `json:"symbol,omitempty"`
	Interval  TimeInterval `json:"interval,omitempty"`
}

// Date는 캔들의 기준 날짜(시작 시간)를 반환합니다
func (c Candle) Date() time.Time {
	return c.OpenTime
}

// IsValid는 가격 필드가 모두 유한한 양수인지 확인합니다
func (c Candle) IsValid() bool {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return false
		}
	}
	return !math.IsNaN(c.Volume) && !math.IsInf(c.Volume, 0) && c.Volume >= 0
}

// CandleList는 캔들 데이터 목록입니다
type CandleList []Candle

// GetLastCandle은 가장 최근 캔들을 반환합니다
func (cl CandleList) GetLastCandle() (Candle, bool) {
	if len(cl) == 0 {
		return Candle{}, false
	}
	return cl[len(cl)-1], true
}

// GetPriceAtIndex는 특정 인덱스의 가격을 반환합니다
func (cl CandleList) GetPriceAtIndex(index int) (float64, bool) {
	if index < 0 || index >= len(cl) {
		return 0, false
	}
	return cl[index].Close, true
}

// History는 index 시점까지(포함)의 캔들만 반환합니다.
// 용량을 잘라두었기 때문에 호출자가 append 해도 이후 캔들을 덮어쓰지 않습니다.
func (cl CandleList) History(index int) CandleList {
	if index < 0 {
		return CandleList{}
	}
	if index >= len(cl) {
		index = len(cl) - 1
	}
	return cl[: index+1 : index+1]
}

// Closes는 종가 배열을 반환합니다
func (cl CandleList) Closes() []float64 {
	closes := make([]float64, len(cl))
	for i, c := range cl {
		closes[i] = c.Close
	}
	return closes
}

// Validate는 날짜 오름차순, 중복 없음, 가격 유효성을 검사합니다
func (cl CandleList) Validate() error {
	for i, c := range cl {
		if !c.IsValid() {
			return fmt.Errorf("%w: %d번째 캔들의 가격이 올바르지 않습니다 (%s)",
				ErrInvalidCandles, i, c.OpenTime.Format(time.RFC3339))
		}
		if c.High < c.Low {
			return fmt.Errorf("%w: %d번째 캔들의 고가가 저가보다 낮습니다", ErrInvalidCandles, i)
		}
		if i == 0 {
			continue
		}
		if !c.OpenTime.After(cl[i-1].OpenTime) {
			return fmt.Errorf("%w: 캔들이 시간순으로 정렬되어 있지 않거나 중복되었습니다 (%s)",
				ErrInvalidCandles, c.OpenTime.Format(time.RFC3339))
		}
	}
	return nil
}
