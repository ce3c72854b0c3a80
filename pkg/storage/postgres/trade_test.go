package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"wsbook/internal/orderbook"
	"wsbook/internal/trade"
	"wsbook/pkg/storage/postgres"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrade(id int64) trade.Event {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return trade.Event{
		Symbol:             "BTCUSDT",
		TradeID:            id,
		Price:              decimal.RequireFromString("31400.15"),
		Quantity:           decimal.RequireFromString("0.0021"),
		FirstTradeID:       id * 10,
		LastTradeID:        id*10 + 2,
		EventTime:          now,
		TradeTime:          now,
		IsBuyerMarketMaker: true,
	}
}

// go test -v --run ^TestToTradeRecord$
func TestToTradeRecord(t *testing.T) {
	ev := sampleTrade(7)
	rec := postgres.ToTradeRecord(ev)

	assert.Equal(t, "BTCUSDT", rec.Symbol)
	assert.Equal(t, int64(7), rec.TradeID)
	assert.True(t, rec.Price.Equal(ev.Price))
	assert.True(t, rec.Quantity.Equal(ev.Quantity))
	assert.Equal(t, int64(70), rec.FirstTradeID)
	assert.Equal(t, int64(72), rec.LastTradeID)
	assert.True(t, rec.BuyerMaker)
	assert.Equal(t, ev.TradeTime, rec.TradeTime)
}

// go test -v --run ^TestToBookTopRecord$
func TestToBookTopRecord(t *testing.T) {
	bids, asks := orderbook.NewBids(), orderbook.NewAsks()
	bids.Apply(decimal.RequireFromString("100"), decimal.NewFromInt(2))
	bids.Apply(decimal.RequireFromString("99"), decimal.NewFromInt(1))

	rec := postgres.ToBookTopRecord(orderbook.State{Symbol: "BTCUSDT", LastUpdateID: 9, Bids: bids, Asks: asks})

	assert.Equal(t, int64(9), rec.LastUpdateID)
	assert.Equal(t, "100", rec.BidPrice.String())
	assert.Equal(t, "2", rec.BidQuantity.String())
	assert.True(t, rec.AskPrice.IsZero())
}

// go test -v --run ^TestTradeCRUD$
func TestTradeCRUD(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	id := time.Now().UnixNano()
	rec := postgres.ToTradeRecord(sampleTrade(id))

	require.NoError(t, client.InsertTrade(ctx, rec))

	err := client.InsertTrade(ctx, postgres.ToTradeRecord(sampleTrade(id)))
	assert.True(t, errors.Is(err, postgres.ErrDuplicateTrade))

	got, err := client.GetTrade(ctx, "BTCUSDT", id)
	require.NoError(t, err)
	assert.Equal(t, "31400.15", got.Price.String())

	require.NoError(t, client.DeleteOldTrades(ctx, time.Now().Add(time.Hour)))

	_, err = client.GetTrade(ctx, "BTCUSDT", id)
	assert.Error(t, err)
}

// go test -v --run ^TestBookTopInsert$
func TestBookTopInsert(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	bids, asks := orderbook.NewBids(), orderbook.NewAsks()
	bids.Apply(decimal.RequireFromString("100"), decimal.NewFromInt(1))
	asks.Apply(decimal.RequireFromString("101"), decimal.NewFromInt(1))
	st := orderbook.State{Symbol: "ETHUSDT", LastUpdateID: 42, EventTime: time.Now().UTC(), Bids: bids, Asks: asks}

	require.NoError(t, client.InsertBookTop(ctx, postgres.ToBookTopRecord(st)))

	got, err := client.LatestBookTop(ctx, "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.LastUpdateID)
	assert.Equal(t, "101", got.AskPrice.String())
}
