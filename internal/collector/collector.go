package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wsbook/config"
	"wsbook/internal/eventbus"
	"wsbook/internal/memorystore"
	"wsbook/internal/metrics"
	"wsbook/internal/orderbook"
	"wsbook/internal/retention"
	"wsbook/internal/server"
	"wsbook/internal/trade"
	"wsbook/pkg/binance"
	"wsbook/pkg/storage/kafka"
	"wsbook/pkg/storage/postgres"
	"wsbook/pkg/storage/redis"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Collector wires both Binance sockets to the per-market synchronizers and
// normalizers, and fans their output out to the stores and sinks.
type Collector struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	streamsWS *binance.WSClient
	apiWS     *binance.WSClient
	streams   *binance.Client
	api       *binance.Client

	books  *eventbus.Bus[orderbook.State]
	trades *eventbus.Bus[trade.Event]

	bookStore  *memorystore.MemoryBookStore
	tradeStore *memorystore.MemoryTradeStore

	postgres *postgres.PostgresClient
	redis    *redis.Cache
	kafka    *kafka.TradePublisher

	syncs       []*orderbook.Synchronizer
	normalizers []*trade.Normalizer
}

// New builds the pipeline and opens the enabled sinks. Nothing is connected yet.
func New(cfg *config.Config, logger *zap.Logger) (*Collector, error) {
	for _, m := range cfg.Binance.Markets {
		if err := binance.ValidateMarket(m); err != nil {
			return nil, err
		}
	}
	if len(cfg.Binance.Markets) == 0 {
		return nil, errors.New("no markets configured")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	c := &Collector{
		cfg:        cfg,
		logger:     logger,
		registry:   reg,
		metrics:    m,
		books:      eventbus.New[orderbook.State](),
		trades:     eventbus.New[trade.Event](),
		bookStore:  memorystore.NewBookStore(),
		tradeStore: memorystore.NewTradeStore(cfg.Binance.TradeHistory),
	}

	sc, ac := cfg.Binance.Streams, cfg.Binance.API
	c.streamsWS = binance.NewWSClient(sc.URL, sc.HandshakeTimeout, sc.ReconnectInterval, logger.Named("streams"))
	c.apiWS = binance.NewWSClient(ac.URL, ac.HandshakeTimeout, ac.ReconnectInterval, logger.Named("api"))

	c.streams = binance.NewClient("streams", c.streamsWS, logger)
	c.streams.SetMetrics(m)
	c.api = binance.NewClient("api", c.apiWS, logger)
	c.api.SetMetrics(m)
	c.api.SetSnapshotLimit(cfg.Binance.SnapshotLimit)

	c.streamsWS.SetMessageHandler(c.streams.Dispatch)
	c.apiWS.SetMessageHandler(c.api.Dispatch)

	for _, market := range cfg.Binance.Markets {
		s := orderbook.NewSynchronizer(market, c.api, c.books, logger)
		s.SetMetrics(m)
		s.SetTimeouts(cfg.Binance.RequestTimeout, cfg.Binance.SnapshotRetryInterval)
		c.syncs = append(c.syncs, s)

		n := trade.NewNormalizer(market, c.trades, logger)
		n.SetMetrics(m)
		c.normalizers = append(c.normalizers, n)
	}

	if err := c.openSinks(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Collector) openSinks() error {
	if c.cfg.Postgres.Enabled {
		pg, err := postgres.InitializeAndMigrate(c.cfg.Postgres, c.cfg.Log.Environment)
		if err != nil {
			return fmt.Errorf("failed to connect to DB: %w", err)
		}
		c.postgres = pg
	}

	if rc := c.cfg.Redis; rc.Enabled {
		cache, err := redis.New(rc.URL, rc.Password, rc.BookTTL, rc.TradeMaxLen, c.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		c.redis = cache
	}

	if kc := c.cfg.Kafka; kc.Enabled {
		c.kafka = kafka.NewTradePublisher(kc.Brokers, kc.TradeTopic)
	}
	return nil
}

// StartCollector runs the market data pipeline until ctx is done.
func StartCollector(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	c, err := New(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	return c.Run(ctx)
}

// Run connects both sockets, subscribes every market and blocks until ctx is
// done or a component fails.
func (c *Collector) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	// Sinks subscribe before any stream is live so no state is missed.
	for _, s := range c.bookSinks() {
		s := s
		sub := c.books.Subscribe()
		g.Go(func() error {
			drain(ctx, c.books, sub, s, c.logger, c.metrics)
			return nil
		})
	}
	for _, s := range c.tradeSinks() {
		s := s
		sub := c.trades.Subscribe()
		g.Go(func() error {
			drain(ctx, c.trades, sub, s, c.logger, c.metrics)
			return nil
		})
	}

	for _, s := range c.syncs {
		s := s
		g.Go(func() error {
			return ignoreCanceled(s.Run(ctx))
		})
	}

	c.streamsWS.SetReconnectHandler(func() {
		c.metrics.RecordReconnect("streams")
		rctx, cancel := context.WithTimeout(ctx, c.cfg.Binance.RequestTimeout)
		defer cancel()
		if err := c.streams.Resubscribe(rctx); err != nil {
			c.logger.Error("resubscribe after reconnect failed", zap.Error(err))
		}
	})
	c.apiWS.SetReconnectHandler(func() {
		c.metrics.RecordReconnect("api")
	})

	if err := c.streamsWS.Connect(ctx); err != nil {
		return err
	}
	if err := c.apiWS.Connect(ctx); err != nil {
		return err
	}
	g.Go(func() error {
		c.streamsWS.Listen(ctx)
		return nil
	})
	g.Go(func() error {
		c.apiWS.Listen(ctx)
		return nil
	})

	if err := c.subscribeAll(ctx); err != nil {
		return err
	}
	c.logSubscriptions(ctx)

	if c.cfg.Binance.ReportInterval > 0 {
		g.Go(func() error {
			c.report(ctx, c.cfg.Binance.ReportInterval)
			return nil
		})
	}

	if c.postgres != nil && c.cfg.Postgres.TradeRetention > 0 {
		pruner := &retention.MidnightScheduler{
			Name:   "prune_trades",
			Job:    retention.PruneTrades(c.postgres, c.cfg.Postgres.TradeRetention),
			Logger: c.logger,
		}
		g.Go(func() error {
			pruner.Run(ctx)
			return nil
		})
	}

	if c.cfg.Server.Enabled {
		srv := server.New(c.cfg.Server.Addr, c.bookStore, c.tradeStore, c.cfg.Binance.BookDepth, c.registry, c.logger)
		g.Go(func() error {
			return srv.Run(ctx)
		})
	}

	return ignoreCanceled(g.Wait())
}

func (c *Collector) subscribeAll(ctx context.Context) error {
	for i, market := range c.cfg.Binance.Markets {
		for _, h := range []binance.Handler{c.syncs[i], c.normalizers[i]} {
			sctx, cancel := context.WithTimeout(ctx, c.cfg.Binance.RequestTimeout)
			err := c.streams.Subscribe(sctx, market, h)
			cancel()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// logSubscriptions asks the venue which streams it considers active.
func (c *Collector) logSubscriptions(ctx context.Context) {
	lctx, cancel := context.WithTimeout(ctx, c.cfg.Binance.RequestTimeout)
	defer cancel()

	active, err := c.streams.ListSubscriptions(lctx)
	if err != nil {
		c.logger.Warn("failed to list subscriptions", zap.Error(err))
		return
	}
	c.logger.Info("active subscriptions",
		zap.Strings("venue", active),
		zap.Strings("local", c.streams.Registry().Streams()))
}

// report periodically logs the top of every book and samples it into Postgres.
func (c *Collector) report(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, symbol := range c.bookStore.Symbols() {
			st, _ := c.bookStore.Get(symbol)
			fields := []zap.Field{
				zap.String("symbol", symbol),
				zap.Int64("lastUpdateId", st.LastUpdateID),
			}
			if bid, ask, ok := st.BestBidAsk(); ok {
				fields = append(fields,
					zap.Stringer("bid", bid.Price),
					zap.Stringer("ask", ask.Price))
			}
			c.logger.Info("book", fields...)

			if c.postgres != nil {
				dbCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
				err := c.postgres.InsertBookTop(dbCtx, postgres.ToBookTopRecord(st))
				cancel()
				if err != nil {
					c.metrics.RecordSinkError("postgres")
					c.logger.Warn("failed to insert book top", zap.String("symbol", symbol), zap.Error(err))
				}
			}
		}
		c.logger.Info("current saved trades", zap.Int64("count", c.tradeStore.CountAll()))
	}
}

// Close shuts the buses, sockets and sinks.
func (c *Collector) Close() {
	c.books.Close()
	c.trades.Close()
	_ = c.streamsWS.Close()
	_ = c.apiWS.Close()

	if c.postgres != nil {
		_ = c.postgres.Close()
	}
	if c.redis != nil {
		_ = c.redis.Close()
	}
	if c.kafka != nil {
		_ = c.kafka.Close()
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
