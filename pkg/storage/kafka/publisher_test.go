package kafka_test

import (
	"encoding/json"
	"testing"
	"time"

	"wsbook/internal/trade"
	"wsbook/pkg/storage/kafka"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -v --run ^TestTradeMessage$
func TestTradeMessage(t *testing.T) {
	ev := trade.Event{
		Symbol:             "BNBBTC",
		TradeID:            26129,
		Price:              decimal.RequireFromString("0.01633102"),
		Quantity:           decimal.RequireFromString("4.70443515"),
		TradeTime:          time.UnixMilli(1591677567871),
		IsBuyerMarketMaker: true,
	}

	msg, err := kafka.TradeMessage(ev)
	require.NoError(t, err)

	assert.Equal(t, "BNBBTC", string(msg.Key))
	assert.Equal(t, ev.TradeTime, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "sell", string(msg.Headers[0].Value))

	var got trade.Event
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, int64(26129), got.TradeID)
	assert.True(t, got.Price.Equal(ev.Price))
}
