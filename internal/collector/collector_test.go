package collector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wsbook/config"
	"wsbook/internal/eventbus"
	"wsbook/internal/metrics"
	"wsbook/pkg/binance"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{}

// fakeBinance answers SUBSCRIBE, LIST_SUBSCRIPTIONS and depth on any path and
// pushes a short diff sequence and one trade once a market is subscribed.
func fakeBinance(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var active []string
		for {
			var req struct {
				Method string          `json:"method"`
				Params json.RawMessage `json:"params"`
				ID     uint64          `json:"id"`
			}
			if err := conn.ReadJSON(&req); err != nil {
				return
			}

			var pushes []string
			reply := map[string]any{"id": req.ID, "result": nil}
			switch req.Method {
			case "SUBSCRIBE":
				var streams []string
				_ = json.Unmarshal(req.Params, &streams)
				active = append(active, streams...)
				for _, s := range streams {
					switch {
					case strings.HasSuffix(s, "@depth"):
						pushes = append(pushes,
							`{"stream":"btcusdt@depth","data":{"e":"depthUpdate","E":1,"s":"BTCUSDT","U":99,"u":101,"b":[["100.0","3.0"]],"a":[]}}`,
							`{"stream":"btcusdt@depth","data":{"e":"depthUpdate","E":2,"s":"BTCUSDT","U":102,"u":102,"b":[],"a":[["101.0","0"],["102.0","1.0"]]}}`)
					case strings.HasSuffix(s, "@aggTrade"):
						pushes = append(pushes,
							`{"stream":"btcusdt@aggTrade","data":{"e":"aggTrade","E":3,"s":"BTCUSDT","a":5,"p":"100.5","q":"0.1","f":1,"l":2,"T":3,"m":true}}`)
					}
				}
			case "LIST_SUBSCRIPTIONS":
				reply["result"] = active
			case "depth":
				reply["status"] = 200
				reply["result"] = json.RawMessage(`{"lastUpdateId":100,"bids":[["100.0","1.0"]],"asks":[["101.0","2.0"]]}`)
			}

			if err := conn.WriteJSON(reply); err != nil {
				return
			}
			for _, p := range pushes {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(p)); err != nil {
					return
				}
			}
		}
	}))
}

func testConfig(url string) *config.Config {
	ws := config.WSConfig{URL: url, HandshakeTimeout: time.Second, ReconnectInterval: 50 * time.Millisecond}
	return &config.Config{
		Binance: config.BinanceConfig{
			Markets:               []string{"btcusdt"},
			Streams:               ws,
			API:                   ws,
			RequestTimeout:        2 * time.Second,
			SnapshotLimit:         100,
			SnapshotRetryInterval: 50 * time.Millisecond,
			BookDepth:             5,
			TradeHistory:          10,
		},
		Log: config.LogConfig{Environment: "dev"},
	}
}

// go test -v --run ^TestCollectorEndToEnd$
func TestCollectorEndToEnd(t *testing.T) {
	srv := fakeBinance(t)
	defer srv.Close()

	c, err := New(testConfig("ws"+strings.TrimPrefix(srv.URL, "http")), zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	require.Eventually(t, func() bool {
		st, ok := c.bookStore.Get("BTCUSDT")
		return ok && st.LastUpdateID == 102
	}, 5*time.Second, 10*time.Millisecond)

	st, _ := c.bookStore.Get("btcusdt")
	bid, ask, ok := st.BestBidAsk()
	require.True(t, ok)
	assert.Equal(t, "100", bid.Price.String())
	assert.Equal(t, "3", bid.Quantity.String())
	assert.Equal(t, "102", ask.Price.String())

	require.Eventually(t, func() bool {
		return len(c.tradeStore.Recent("BTCUSDT", 0)) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(5), c.tradeStore.Recent("BTCUSDT", 1)[0].TradeID)

	assert.Equal(t, []string{"btcusdt@aggTrade", "btcusdt@depth"}, c.streams.Registry().Streams())

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// go test -v --run ^TestNewRejectsInvalidMarket$
func TestNewRejectsInvalidMarket(t *testing.T) {
	cfg := testConfig("ws://127.0.0.1:1")
	cfg.Binance.Markets = []string{"btc usdt"}

	_, err := New(cfg, zap.NewNop())
	assert.ErrorIs(t, err, binance.ErrInvalidMarket)

	cfg.Binance.Markets = nil
	_, err = New(cfg, zap.NewNop())
	assert.Error(t, err)
}

// go test -v --run ^TestDrainCountsSinkErrors$
func TestDrainCountsSinkErrors(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	bus := eventbus.New[int]()
	defer bus.Close()

	got := make(chan int, 3)
	s := sink[int]{
		name: "test",
		write: func(_ context.Context, v int) error {
			got <- v
			if v == 2 {
				return errors.New("boom")
			}
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := bus.Subscribe()
	done := make(chan struct{})
	go func() {
		drain(ctx, bus, sub, s, zap.NewNop(), m)
		close(done)
	}()

	for i := 1; i <= 3; i++ {
		bus.Publish(i)
	}
	for i := 1; i <= 3; i++ {
		select {
		case v := <-got:
			assert.Equal(t, i, v)
		case <-time.After(time.Second):
			t.Fatal("sink not called")
		}
	}

	cancel()
	<-done
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SinkErrorsTotal.WithLabelValues("test")))
}
