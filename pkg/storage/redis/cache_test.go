package redis_test

import (
	"context"
	"os"
	"testing"
	"time"

	"wsbook/internal/memorystore"
	"wsbook/internal/trade"
	"wsbook/pkg/storage/redis"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleTrade() trade.Event {
	return trade.Event{
		Symbol:    "BTCUSDT",
		TradeID:   12345,
		Price:     decimal.RequireFromString("0.001"),
		Quantity:  decimal.RequireFromString("100"),
		TradeTime: time.UnixMilli(1672515782136),
	}
}

// go test -v --run ^TestKeys$
func TestKeys(t *testing.T) {
	assert.Equal(t, "book:btcusdt", redis.BookKey("BTCUSDT"))
	assert.Equal(t, "trades:ethusdt", redis.TradeStreamKey("ethusdt"))
}

// go test -v --run ^TestTradeStreamArgs$
func TestTradeStreamArgs(t *testing.T) {
	args := redis.TradeStreamArgs(sampleTrade(), 1000)

	assert.Equal(t, "trades:btcusdt", args.Stream)
	assert.Equal(t, int64(1000), args.MaxLen)
	assert.True(t, args.Approx)

	values, ok := args.Values.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "0.001", values["price"])
	assert.Equal(t, "buy", values["side"])
	assert.Equal(t, int64(1672515782136), values["time"])

	assert.False(t, redis.TradeStreamArgs(sampleTrade(), 0).Approx)
}

// go test -v --run ^TestInvalidURL$
func TestInvalidURL(t *testing.T) {
	_, err := redis.New("not-a-url", "", time.Minute, 10, zap.NewNop())
	require.Error(t, err)
}

// go test -v --run ^TestCacheRoundTrip$
func TestCacheRoundTrip(t *testing.T) {
	url := os.Getenv("WSBOOK_TEST_REDIS_URL")
	if url == "" {
		t.Skip("WSBOOK_TEST_REDIS_URL not set")
	}

	cache, err := redis.New(url, "", time.Minute, 10, zap.NewNop())
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()

	missing, err := cache.GetBook(ctx, "nosuchmarket")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, cache.SetBook(ctx, memorystore.BookView{Symbol: "BTCUSDT", LastUpdateID: 160}))
	got, err := cache.GetBook(ctx, "btcusdt")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(160), got.LastUpdateID)

	require.NoError(t, cache.AddTrade(ctx, sampleTrade()))
	n, err := cache.TradeLen(ctx, "btcusdt")
	require.NoError(t, err)
	assert.Positive(t, n)
}
