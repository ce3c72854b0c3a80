package collector

import (
	"context"
	"errors"
	"time"

	"wsbook/internal/eventbus"
	"wsbook/internal/memorystore"
	"wsbook/internal/metrics"
	"wsbook/internal/orderbook"
	"wsbook/internal/trade"
	"wsbook/pkg/storage/postgres"

	"go.uber.org/zap"
)

const sinkTimeout = 2 * time.Second

// sink is one consumer of a bus. Each sink owns its own subscription, so a
// slow database never holds back the in-memory stores.
type sink[T any] struct {
	name  string
	write func(context.Context, T) error
}

// drain feeds every value of sub to s until ctx is done or sub is closed.
func drain[T any](ctx context.Context, bus *eventbus.Bus[T], sub *eventbus.Subscription[T], s sink[T], logger *zap.Logger, m *metrics.Metrics) {
	defer bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-sub.C():
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, sinkTimeout)
			err := s.write(wctx, v)
			cancel()
			if err != nil && !errors.Is(err, postgres.ErrDuplicateTrade) {
				m.RecordSinkError(s.name)
				logger.Warn("sink write failed", zap.String("sink", s.name), zap.Error(err))
			}
		}
	}
}

func (c *Collector) bookSinks() []sink[orderbook.State] {
	sinks := []sink[orderbook.State]{{
		name: "memory",
		write: func(_ context.Context, st orderbook.State) error {
			c.bookStore.Set(st)
			return nil
		},
	}}
	if c.redis != nil {
		depth := c.cfg.Binance.BookDepth
		sinks = append(sinks, sink[orderbook.State]{
			name: "redis",
			write: func(ctx context.Context, st orderbook.State) error {
				return c.redis.SetBook(ctx, memorystore.NewBookView(st, depth))
			},
		})
	}
	return sinks
}

func (c *Collector) tradeSinks() []sink[trade.Event] {
	sinks := []sink[trade.Event]{{
		name: "memory",
		write: func(_ context.Context, e trade.Event) error {
			c.tradeStore.Add(e)
			return nil
		},
	}}
	if c.postgres != nil {
		sinks = append(sinks, sink[trade.Event]{
			name: "postgres",
			write: func(ctx context.Context, e trade.Event) error {
				return c.postgres.InsertTrade(ctx, postgres.ToTradeRecord(e))
			},
		})
	}
	if c.redis != nil {
		sinks = append(sinks, sink[trade.Event]{name: "redis", write: c.redis.AddTrade})
	}
	if c.kafka != nil {
		sinks = append(sinks, sink[trade.Event]{
			name: "kafka",
			write: func(ctx context.Context, e trade.Event) error {
				return c.kafka.Publish(ctx, e)
			},
		})
	}
	return sinks
}
