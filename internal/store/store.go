// Package store는 완료된 백테스트 결과를 gorm(sqlite)으로 저장하고 조회합니다.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/assist-by/phoenix-backtest/internal/backtest"
)

// ErrNotFound는 요청한 실행 기록이 없을 때 반환됩니다
var ErrNotFound = errors.New("백테스트 기록을 찾을 수 없습니다")

// Store는 백테스트 결과 저장소입니다
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Option은 Store 선택 설정입니다
type Option func(*Store)

// WithLogger는 로거를 지정합니다
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open은 sqlite 데이터베이스를 열고 테이블을 마이그레이션합니다
func Open(dsn string, opts ...Option) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("데이터베이스 열기 실패: %w", err)
	}

	if err := db.AutoMigrate(&RunRecord{}, &TradeRecord{}); err != nil {
		return nil, fmt.Errorf("테이블 마이그레이션 실패: %w", err)
	}

	s := &Store{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close는 데이터베이스 연결을 닫습니다
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save는 실행 결과와 거래 기록을 하나의 트랜잭션으로 저장하고 ID를 반환합니다
func (s *Store) Save(ctx context.Context, name, strategyName string, result *backtest.Result) (uint, error) {
	if result == nil {
		return 0, fmt.Errorf("저장할 결과가 없습니다")
	}

	data, err := json.Marshal(result)
	if err != nil {
		return 0, fmt.Errorf("결과 직렬화 실패: %w", err)
	}

	record := RunRecord{
		Name:          name,
		Strategy:      strategyName,
		Symbol:        result.Symbol,
		Interval:      string(result.Interval),
		Status:        string(result.Status),
		StartDate:     result.StartDate,
		EndDate:       result.EndDate,
		BarsProcessed: result.BarsProcessed,
		TotalTrades:   result.Metrics.TotalTrades,
		WinRate:       result.Metrics.WinRate,
		TotalReturn:   result.Metrics.TotalReturn,
		MaxDrawdown:   result.Metrics.MaxDrawdown,
		SharpeRatio:   result.Metrics.SharpeRatio,
		FinalEquity:   result.Metrics.FinalEquity,
		ResultJSON:    string(data),
		Trades:        make([]TradeRecord, 0, len(result.Trades)),
	}
	for _, t := range result.Trades {
		record.Trades = append(record.Trades, TradeRecord{
			TradeID:    t.ID,
			Side:       string(t.Side),
			EntryTime:  t.EntryTime,
			ExitTime:   t.ExitTime,
			EntryBar:   t.EntryBar,
			ExitBar:    t.ExitBar,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			Quantity:   t.Quantity,
			PnL:        t.PnL,
			PnLPercent: t.PnLPercent,
			Fees:       t.Fees,
			ExitReason: string(t.ExitReason),
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&record).Error
	})
	if err != nil {
		return 0, fmt.Errorf("결과 저장 실패: %w", err)
	}

	s.logger.Info("백테스트 결과 저장",
		zap.Uint("id", record.ID),
		zap.String("name", name),
		zap.Int("trades", len(record.Trades)))
	return record.ID, nil
}

// Get은 실행 기록(거래 포함)과 전체 결과를 반환합니다
func (s *Store) Get(ctx context.Context, id uint) (*RunRecord, *backtest.Result, error) {
	var record RunRecord
	err := s.db.WithContext(ctx).
		Preload("Trades", func(db *gorm.DB) *gorm.DB { return db.Order("entry_bar ASC") }).
		First(&record, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("결과 조회 실패: %w", err)
	}

	var result backtest.Result
	if err := json.Unmarshal([]byte(record.ResultJSON), &result); err != nil {
		return nil, nil, fmt.Errorf("결과 역직렬화 실패: %w", err)
	}
	return &record, &result, nil
}

// List는 최근 실행 기록을 최신순으로 반환합니다 (거래 제외)
func (s *Store) List(ctx context.Context, limit int) ([]RunRecord, error) {
	query := s.db.WithContext(ctx).Model(&RunRecord{}).Omit("result_json").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []RunRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("결과 목록 조회 실패: %w", err)
	}
	return records, nil
}
