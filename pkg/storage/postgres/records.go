package postgres

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is one aggregate trade as stored in the database.
type TradeRecord struct {
	ID uint `gorm:"primaryKey"`

	// unique index
	Symbol  string `gorm:"type:text;not null;index:idx_trade_symbol;index:idx_symbol_trade_id,unique"`
	TradeID int64  `gorm:"not null;index:idx_symbol_trade_id,unique"`

	Price    decimal.Decimal `gorm:"type:numeric;not null"`
	Quantity decimal.Decimal `gorm:"type:numeric;not null"`

	FirstTradeID int64 `gorm:"not null"`
	LastTradeID  int64 `gorm:"not null"`
	BuyerMaker   bool  `gorm:"not null"`

	EventTime time.Time `gorm:"not null"`
	TradeTime time.Time `gorm:"not null;index:idx_trade_time"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

func (TradeRecord) TableName() string {
	return "trade_record"
}

// BookTopRecord is a periodic top-of-book sample.
type BookTopRecord struct {
	ID uint `gorm:"primaryKey"`

	Symbol       string `gorm:"type:text;not null;index:idx_book_symbol_time,priority:1"`
	LastUpdateID int64  `gorm:"not null"`

	BidPrice    decimal.Decimal `gorm:"type:numeric"`
	BidQuantity decimal.Decimal `gorm:"type:numeric"`
	AskPrice    decimal.Decimal `gorm:"type:numeric"`
	AskQuantity decimal.Decimal `gorm:"type:numeric"`

	EventTime time.Time `gorm:"not null;index:idx_book_symbol_time,priority:2"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

func (BookTopRecord) TableName() string {
	return "book_top_record"
}
