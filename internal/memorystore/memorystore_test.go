package memorystore_test

import (
	"testing"
	"time"

	"wsbook/internal/memorystore"
	"wsbook/internal/orderbook"
	"wsbook/internal/trade"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tradeAt(id int64, price string, buyerMaker bool) trade.Event {
	return trade.Event{
		Symbol:             "BTCUSDT",
		TradeID:            id,
		Price:              decimal.RequireFromString(price),
		Quantity:           decimal.NewFromInt(1),
		TradeTime:          time.UnixMilli(id),
		IsBuyerMarketMaker: buyerMaker,
	}
}

// go test -v --run ^TestTradeStoreBounded$
func TestTradeStoreBounded(t *testing.T) {
	store := memorystore.NewTradeStore(3)
	for i := int64(1); i <= 5; i++ {
		store.Add(tradeAt(i, "100", i%2 == 0))
	}

	recent := store.Recent("btcusdt", 0)
	require.Len(t, recent, 3)
	assert.Equal(t, []int64{5, 4, 3}, []int64{recent[0].TradeID, recent[1].TradeID, recent[2].TradeID})

	assert.Len(t, store.Recent("BTCUSDT", 2), 2)
	assert.Nil(t, store.Recent("ETHUSDT", 5))
	assert.Equal(t, int64(5), store.CountAll())
}

// go test -v --run ^TestTradeStoreStats$
func TestTradeStoreStats(t *testing.T) {
	store := memorystore.NewTradeStore(10)
	store.Add(tradeAt(1, "100", false)) // buy
	store.Add(tradeAt(2, "101", true))  // sell
	store.Add(tradeAt(3, "102", false)) // buy

	st, ok := store.Stats("btcusdt")
	require.True(t, ok)
	assert.Equal(t, int64(3), st.Total)
	assert.True(t, st.BuyVolume.Equal(decimal.NewFromInt(2)))
	assert.True(t, st.SellVolume.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, "102", st.LastPrice.String())

	_, ok = store.Stats("ethusdt")
	assert.False(t, ok)
}

// go test -v --run ^TestBookStoreView$
func TestBookStoreView(t *testing.T) {
	bids, asks := orderbook.NewBids(), orderbook.NewAsks()
	bids.Apply(decimal.RequireFromString("99"), decimal.NewFromInt(1))
	bids.Apply(decimal.RequireFromString("100"), decimal.NewFromInt(2))
	asks.Apply(decimal.RequireFromString("102"), decimal.NewFromInt(3))

	store := memorystore.NewBookStore()
	store.Set(orderbook.State{Symbol: "BTCUSDT", LastUpdateID: 7, Bids: bids, Asks: asks})

	view, ok := store.View("btcusdt", 1)
	require.True(t, ok)
	assert.Equal(t, int64(7), view.LastUpdateID)
	require.Len(t, view.Bids, 1)
	assert.Equal(t, "100", view.Bids[0].Price.String())
	require.NotNil(t, view.Spread)
	assert.Equal(t, "2", view.Spread.String())
	assert.Equal(t, "101", view.Mid.String())

	assert.Equal(t, []string{"BTCUSDT"}, store.Symbols())

	_, ok = store.View("ethusdt", 1)
	assert.False(t, ok)
}
