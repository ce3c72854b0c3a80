package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"wsbook/internal/memorystore"
	"wsbook/internal/trade"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache mirrors the latest book view per market under book:{market} and appends
// trades to the capped stream trades:{market}.
type Cache struct {
	client      *goredis.Client
	ttl         time.Duration
	tradeMaxLen int64
	logger      *zap.Logger
}

// New connects to redisURL and verifies the connection with PING.
func New(redisURL, password string, ttl time.Duration, tradeMaxLen int64, logger *zap.Logger) (*Cache, error) {
	opt, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if password != "" {
		opt.Password = password
	}

	client := goredis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Cache{
		client:      client,
		ttl:         ttl,
		tradeMaxLen: tradeMaxLen,
		logger:      logger.Named("redis"),
	}, nil
}

func BookKey(market string) string {
	return "book:" + strings.ToLower(market)
}

func TradeStreamKey(market string) string {
	return "trades:" + strings.ToLower(market)
}

// SetBook stores view as JSON with the configured TTL. A zero TTL keeps the key forever.
func (c *Cache) SetBook(ctx context.Context, view memorystore.BookView) error {
	b, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("json marshal failed: %w", err)
	}

	if err := c.client.Set(ctx, BookKey(view.Symbol), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}
	return nil
}

// GetBook returns the cached view of market. A missing key returns nil with no error.
func (c *Cache) GetBook(ctx context.Context, market string) (*memorystore.BookView, error) {
	b, err := c.client.Get(ctx, BookKey(market)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis GET failed: %w", err)
	}

	var view memorystore.BookView
	if err := json.Unmarshal(b, &view); err != nil {
		return nil, fmt.Errorf("json unmarshal failed: %w", err)
	}
	return &view, nil
}

// AddTrade appends e to the market's trade stream, trimming it to roughly tradeMaxLen entries.
func (c *Cache) AddTrade(ctx context.Context, e trade.Event) error {
	args := TradeStreamArgs(e, c.tradeMaxLen)
	if err := c.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis XADD failed: %w", err)
	}
	return nil
}

// TradeStreamArgs builds the XADD arguments for e.
func TradeStreamArgs(e trade.Event, maxLen int64) *goredis.XAddArgs {
	return &goredis.XAddArgs{
		Stream: TradeStreamKey(e.Symbol),
		MaxLen: maxLen,
		Approx: maxLen > 0,
		Values: map[string]any{
			"id":       e.TradeID,
			"price":    e.Price.String(),
			"quantity": e.Quantity.String(),
			"side":     e.Side(),
			"time":     e.TradeTime.UnixMilli(),
		},
	}
}

// TradeLen is the current length of the market's trade stream.
func (c *Cache) TradeLen(ctx context.Context, market string) (int64, error) {
	return c.client.XLen(ctx, TradeStreamKey(market)).Result()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
