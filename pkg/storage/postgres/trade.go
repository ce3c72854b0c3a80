package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wsbook/internal/orderbook"
	"wsbook/internal/trade"

	"gorm.io/gorm/clause"
)

// ErrDuplicateTrade is returned when (symbol, trade_id) is already stored.
var ErrDuplicateTrade = errors.New("duplicate trade skipped")

func (p *PostgresClient) InsertTrade(ctx context.Context, record *TradeRecord) error {
	tx := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "symbol"},
			{Name: "trade_id"},
		},
		DoNothing: true,
	}).Create(record)

	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return fmt.Errorf("%w: symbol=%s trade_id=%d", ErrDuplicateTrade, record.Symbol, record.TradeID)
	}

	return nil
}

func (p *PostgresClient) GetTrade(ctx context.Context, symbol string, tradeID int64) (*TradeRecord, error) {
	var rec TradeRecord
	err := p.DB.WithContext(ctx).
		Where("symbol = ? AND trade_id = ?", symbol, tradeID).
		First(&rec).Error

	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (p *PostgresClient) DeleteOldTrades(ctx context.Context, before time.Time) error {
	return p.DB.WithContext(ctx).
		Where("trade_time < ?", before).
		Delete(&TradeRecord{}).Error
}

func (p *PostgresClient) InsertBookTop(ctx context.Context, record *BookTopRecord) error {
	return p.DB.WithContext(ctx).Create(record).Error
}

func (p *PostgresClient) LatestBookTop(ctx context.Context, symbol string) (*BookTopRecord, error) {
	var rec BookTopRecord
	err := p.DB.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("event_time DESC").
		First(&rec).Error

	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ToTradeRecord converts a normalized trade into a TradeRecord for DB insertion.
func ToTradeRecord(e trade.Event) *TradeRecord {
	return &TradeRecord{
		Symbol:       e.Symbol,
		TradeID:      e.TradeID,
		Price:        e.Price,
		Quantity:     e.Quantity,
		FirstTradeID: e.FirstTradeID,
		LastTradeID:  e.LastTradeID,
		BuyerMaker:   e.IsBuyerMarketMaker,
		EventTime:    e.EventTime,
		TradeTime:    e.TradeTime,
	}
}

// ToBookTopRecord samples the best bid and ask of st. A missing side leaves zero values.
func ToBookTopRecord(st orderbook.State) *BookTopRecord {
	rec := &BookTopRecord{
		Symbol:       st.Symbol,
		LastUpdateID: st.LastUpdateID,
		EventTime:    st.EventTime,
	}
	if bid, ok := st.Bids.Best(); ok {
		rec.BidPrice, rec.BidQuantity = bid.Price, bid.Quantity
	}
	if ask, ok := st.Asks.Best(); ok {
		rec.AskPrice, rec.AskQuantity = ask.Price, ask.Quantity
	}
	return rec
}
