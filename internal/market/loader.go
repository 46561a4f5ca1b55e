package market

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/assist-by/phoenix-backtest/internal/domain"
)

// LoadFile은 확장자에 따라 CSV(.csv) 또는 kline JSON(.json) 파일에서 캔들을 읽습니다
func LoadFile(path, symbol string, interval domain.TimeInterval) (domain.CandleList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("캔들 파일 열기 실패: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadCandlesKlines(f, symbol, interval)
	case ".csv", "":
		return LoadCandlesCSV(f, symbol, interval)
	default:
		return nil, fmt.Errorf("%w: 지원하지 않는 파일 형식 %s", ErrMalformedData, filepath.Ext(path))
	}
}
