package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wsbook/internal/memorystore"
	"wsbook/internal/metrics"
	"wsbook/internal/orderbook"
	"wsbook/internal/server"
	"wsbook/internal/trade"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	books := memorystore.NewBookStore()
	bids, asks := orderbook.NewBids(), orderbook.NewAsks()
	bids.Apply(decimal.RequireFromString("100"), decimal.NewFromInt(1))
	bids.Apply(decimal.RequireFromString("99"), decimal.NewFromInt(1))
	asks.Apply(decimal.RequireFromString("101"), decimal.NewFromInt(2))
	books.Set(orderbook.State{Symbol: "BTCUSDT", LastUpdateID: 160, Bids: bids, Asks: asks})

	trades := memorystore.NewTradeStore(10)
	trades.Add(trade.Event{Symbol: "BTCUSDT", TradeID: 1, Price: decimal.NewFromInt(100), Quantity: decimal.NewFromInt(1), TradeTime: time.UnixMilli(1)})
	trades.Add(trade.Event{Symbol: "BTCUSDT", TradeID: 2, Price: decimal.NewFromInt(101), Quantity: decimal.NewFromInt(1), TradeTime: time.UnixMilli(2)})

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.RecordTrade("btcusdt")

	srv := httptest.NewServer(server.New(":0", books, trades, 5, reg, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

// go test -v --run ^TestBookEndpoint$
func TestBookEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var view memorystore.BookView
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/books/btcusdt?depth=1", &view))
	assert.Equal(t, int64(160), view.LastUpdateID)
	require.Len(t, view.Bids, 1)
	assert.Equal(t, "100", view.Bids[0].Price.String())
	require.Len(t, view.Asks, 1)

	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/books/ethusdt", nil))

	var symbols []string
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/books", &symbols))
	assert.Equal(t, []string{"BTCUSDT"}, symbols)
}

// go test -v --run ^TestTradesEndpoint$
func TestTradesEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var trades []trade.Event
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/trades/btcusdt/?limit=1", &trades))
	require.Len(t, trades, 1)
	assert.Equal(t, int64(2), trades[0].TradeID)

	var stats memorystore.TradeStats
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/trades/btcusdt/stats", &stats))
	assert.Equal(t, int64(2), stats.Total)

	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/trades/ethusdt/", nil))
}

// go test -v --run ^TestHealthAndMetrics$
func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	var health map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", &health))
	assert.Equal(t, "ok", health["status"])

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
