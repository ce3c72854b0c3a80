package trade_test

import (
	"testing"
	"time"

	"wsbook/internal/trade"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type slicePublisher struct {
	events []trade.Event
}

func (p *slicePublisher) Publish(e trade.Event) {
	p.events = append(p.events, e)
}

const aggTrade = `{"e":"aggTrade","E":123456789,"s":"BNBBTC","a":12345,"p":"0.001","q":"100",` +
	`"f":100,"l":105,"T":123456785,"m":true,"M":true}`

// go test -v --run ^TestNormalizerPublishes$
func TestNormalizerPublishes(t *testing.T) {
	pub := &slicePublisher{}
	n := trade.NewNormalizer("BNBBTC", pub, zap.NewNop())
	assert.Equal(t, "aggTrade", n.StreamSuffix())

	n.Handle([]byte(aggTrade))

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, "BNBBTC", ev.Symbol)
	assert.Equal(t, int64(12345), ev.TradeID)
	assert.True(t, ev.Price.Equal(decimal.RequireFromString("0.001")))
	assert.True(t, ev.Quantity.Equal(decimal.RequireFromString("100")))
	assert.Equal(t, int64(100), ev.FirstTradeID)
	assert.Equal(t, int64(105), ev.LastTradeID)
	assert.Equal(t, time.UnixMilli(123456789), ev.EventTime)
	assert.Equal(t, time.UnixMilli(123456785), ev.TradeTime)
	assert.True(t, ev.IsBuyerMarketMaker)
	assert.Equal(t, "sell", ev.Side())
	assert.True(t, ev.Notional().Equal(decimal.RequireFromString("0.1")))
}

// go test -v --run ^TestNormalizerDropsBadPayloads$
func TestNormalizerDropsBadPayloads(t *testing.T) {
	pub := &slicePublisher{}
	n := trade.NewNormalizer("btcusdt", pub, zap.NewNop())

	for _, payload := range []string{
		`not json`,
		`{"e":"aggTrade","s":"BTCUSDT","p":"abc","q":"1"}`,
		`{"e":"aggTrade","p":"1","q":"1"}`,
	} {
		assert.NotPanics(t, func() { n.Handle([]byte(payload)) })
	}
	assert.Empty(t, pub.events)
}

// go test -v --run ^TestEventSide$
func TestEventSide(t *testing.T) {
	assert.Equal(t, "buy", trade.Event{IsBuyerMarketMaker: false}.Side())
	assert.Equal(t, "sell", trade.Event{IsBuyerMarketMaker: true}.Side())
}
