package market

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/assist-by/phoenix-backtest/internal/domain"
)

// DecodeKlines는 거래소 kline 응답을 파일로 저장한 JSON 배열
// ([[openTime, "open", "high", "low", "close", "volume", closeTime, ...], ...])을 읽습니다.
func DecodeKlines(r io.Reader) ([]CandleData, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var rawCandles [][]interface{}
	if err := dec.Decode(&rawCandles); err != nil {
		return nil, fmt.Errorf("%w: 캔들 데이터 파싱 실패: %v", ErrMalformedData, err)
	}

	candles := make([]CandleData, len(rawCandles))
	for i, raw := range rawCandles {
		if len(raw) < 7 {
			return nil, fmt.Errorf("%w: %d번째 kline 필드 수 %d (필요 7)", ErrMalformedData, i, len(raw))
		}

		openTime, err := toInt64(raw[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %d번째 kline openTime: %v", ErrMalformedData, i, err)
		}
		closeTime, err := toInt64(raw[6])
		if err != nil {
			return nil, fmt.Errorf("%w: %d번째 kline closeTime: %v", ErrMalformedData, i, err)
		}
		candles[i] = CandleData{OpenTime: openTime, CloseTime: closeTime}

		// 숫자 문자열을 float64로 변환
		fields := []*float64{&candles[i].Open, &candles[i].High, &candles[i].Low, &candles[i].Close, &candles[i].Volume}
		for j, field := range fields {
			v, err := toFloat64(raw[j+1])
			if err != nil {
				return nil, fmt.Errorf("%w: %d번째 kline %d번째 값: %v", ErrMalformedData, i, j+1, err)
			}
			*field = v
		}
	}

	return candles, nil
}

// LoadCandlesKlines는 kline JSON을 읽어 검증된 캔들 목록으로 변환합니다
func LoadCandlesKlines(r io.Reader, symbol string, interval domain.TimeInterval) (domain.CandleList, error) {
	raw, err := DecodeKlines(r)
	if err != nil {
		return nil, err
	}

	candles := make(domain.CandleList, len(raw))
	for i, c := range raw {
		candles[i] = c.ToCandle(symbol, interval)
	}
	if err := candles.Validate(); err != nil {
		return nil, err
	}
	return candles, nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("지원하지 않는 타입 %T", v)
	}
}

func toFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("지원하지 않는 타입 %T", v)
	}
}
