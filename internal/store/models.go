package store

import (
	"time"
)

// RunRecord는 저장된 백테스트 실행 하나입니다.
// 조회용 요약 지표는 컬럼으로, 전체 결과는 JSON으로 저장합니다.
type RunRecord struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"size:128;index" json:"name"`
	Strategy      string    `gorm:"size:64;index" json:"strategy"`
	Symbol        string    `gorm:"size:32;index" json:"symbol"`
	Interval      string    `gorm:"size:8" json:"interval"`
	Status        string    `gorm:"size:32" json:"status"`
	StartDate     time.Time `json:"startDate"`
	EndDate       time.Time `json:"endDate"`
	BarsProcessed int       `json:"barsProcessed"`
	TotalTrades   int       `json:"totalTrades"`
	WinRate       float64   `json:"winRate"`
	TotalReturn   float64   `json:"totalReturn"`
	MaxDrawdown   float64   `json:"maxDrawdown"`
	SharpeRatio   float64   `json:"sharpeRatio"`
	FinalEquity   float64   `json:"finalEquity"`
	ResultJSON    string    `gorm:"type:text" json:"-"`
	CreatedAt     time.Time `json:"createdAt"`

	Trades []TradeRecord `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"trades,omitempty"`
}

// TableName은 테이블 이름을 지정합니다
func (RunRecord) TableName() string {
	return "backtest_runs"
}

// TradeRecord는 실행에 속한 거래 한 건입니다. 청산 필드는 미청산이면 NULL 입니다.
type TradeRecord struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	RunID      uint       `gorm:"index;not null" json:"runId"`
	TradeID    string     `gorm:"size:36;index" json:"tradeId"`
	Side       string     `gorm:"size:8" json:"side"`
	EntryTime  time.Time  `json:"entryTime"`
	ExitTime   *time.Time `json:"exitTime,omitempty"`
	EntryBar   int        `json:"entryBar"`
	ExitBar    int        `json:"exitBar"`
	EntryPrice float64    `json:"entryPrice"`
	ExitPrice  *float64   `json:"exitPrice,omitempty"`
	Quantity   int64      `json:"quantity"`
	PnL        *float64   `json:"pnl,omitempty"`
	PnLPercent *float64   `json:"pnlPercent,omitempty"`
	Fees       float64    `json:"fees"`
	ExitReason string     `gorm:"size:16" json:"exitReason"`
}

// TableName은 테이블 이름을 지정합니다
func (TradeRecord) TableName() string {
	return "backtest_trades"
}
