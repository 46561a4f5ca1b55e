package market

import (
	"time"

	"github.com/assist-by/phoenix-backtest/internal/domain"
)

// CandleData는 거래소 kline 형식의 캔들 데이터를 표현합니다
type CandleData struct {
	OpenTime  int64   `json:"openTime"` // 밀리초
	Open      float64 `json:"open,string"`
	High      float64 `json:"high,string"`
	Low       float64 `json:"low,string"`
	Close     float64 `json:"close,string"`
	Volume    float64 `json:"volume,string"`
	CloseTime int64   `json:"closeTime"` // 밀리초
}

// ToCandle은 도메인 캔들로 변환합니다
func (c CandleData) ToCandle(symbol string, interval domain.TimeInterval) domain.Candle {
	return domain.Candle{
		OpenTime:  time.UnixMilli(c.OpenTime).UTC(),
		CloseTime: time.UnixMilli(c.CloseTime).UTC(),
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
		Symbol:    symbol,
		Interval:  interval,
	}
}
