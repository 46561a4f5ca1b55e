package market

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/assist-by/phoenix-backtest/internal/domain"
)

// ErrMalformedData는 캔들 파일을 해석할 수 없을 때 반환됩니다
var ErrMalformedData = errors.New("캔들 데이터 형식 오류")

var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// LoadCandlesCSV는 date,open,high,low,close,volume 형식의 CSV를 읽습니다.
// 헤더 행은 선택이며 날짜는 RFC3339, "2006-01-02 15:04:05", "2006-01-02" 또는 밀리초 타임스탬프를 허용합니다.
// 반환 전에 CandleList.Validate로 정렬과 가격 유효성을 확인합니다.
func LoadCandlesCSV(r io.Reader, symbol string, interval domain.TimeInterval) (domain.CandleList, error) {
	step, err := domain.TimeIntervalToDuration(interval)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.Comment = '#'

	var candles domain.CandleList
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedData, err)
		}
		line++

		if line == 1 && isHeader(record) {
			continue
		}
		if len(record) < 6 {
			return nil, fmt.Errorf("%w: %d번째 줄의 컬럼 수 %d (필요 6)", ErrMalformedData, line, len(record))
		}

		openTime, err := parseTime(record[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %d번째 줄 날짜: %v", ErrMalformedData, line, err)
		}

		values := make([]float64, 5)
		for i := range values {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[i+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %d번째 줄 %d번째 값: %v", ErrMalformedData, line, i+2, err)
			}
			values[i] = v
		}

		candles = append(candles, domain.Candle{
			OpenTime:  openTime,
			CloseTime: openTime.Add(step - time.Millisecond),
			Open:      values[0],
			High:      values[1],
			Low:       values[2],
			Close:     values[3],
			Volume:    values[4],
			Symbol:    symbol,
			Interval:  interval,
		})
	}

	if err := candles.Validate(); err != nil {
		return nil, err
	}
	return candles, nil
}

func isHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	_, err := parseTime(record[0])
	return err != nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("알 수 없는 날짜 형식: %q", s)
}
