package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"wsbook/internal/metrics"

	"go.uber.org/zap"
)

const DefaultSnapshotLimit = 5000

var marketPattern = regexp.MustCompile(`^[a-zA-Z0-9_.\-]{1,20}$`)

// Transport is the part of WSClient the protocol client needs.
type Transport interface {
	Send(ctx context.Context, v any) error
	Connected() <-chan struct{}
}

// Client turns one multiplexed socket into awaitable control requests and
// dispatched push streams.
type Client struct {
	name          string
	transport     Transport
	correlator    *Correlator
	registry      *Registry
	snapshotLimit int
	logger        *zap.Logger
	metrics       *metrics.Metrics
}

// NewClient creates a client on top of transport. Wire Dispatch as the
// transport's message handler.
func NewClient(name string, transport Transport, logger *zap.Logger) *Client {
	logger = logger.Named(name)
	return &Client{
		name:          name,
		transport:     transport,
		correlator:    NewCorrelator(logger),
		registry:      NewRegistry(logger),
		snapshotLimit: DefaultSnapshotLimit,
		logger:        logger,
	}
}

func (c *Client) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

func (c *Client) SetSnapshotLimit(limit int) {
	if limit > 0 {
		c.snapshotLimit = limit
	}
}

func (c *Client) Registry() *Registry {
	return c.registry
}

func (c *Client) Correlator() *Correlator {
	return c.correlator
}

// StreamName builds "<market>@<suffix>". Stream names are lowercase on the wire.
func StreamName(market, suffix string) string {
	return strings.ToLower(market) + "@" + suffix
}

// ValidateMarket accepts short symbol tokens such as "btcusdt" or "BTC-USDT".
func ValidateMarket(market string) error {
	if !marketPattern.MatchString(market) {
		return &ValidationError{Field: "market", Value: market}
	}
	return nil
}

// Dispatch routes one inbound message: pushes to the registry, replies to the correlator.
func (c *Client) Dispatch(msg []byte) {
	var env struct {
		envelope
		Status int             `json:"status"`
		Result json.RawMessage `json:"result"`
		Error  *APIError       `json:"error"`
	}
	if err := json.Unmarshal(msg, &env); err != nil {
		c.logger.Warn("failed to parse message", zap.Error(err), zap.ByteString("msg", msg))
		c.metrics.RecordParseError(c.name)
		return
	}

	switch {
	case env.Stream != "":
		c.metrics.RecordMessage(c.name, "stream")
		if !c.registry.Dispatch(env.Stream, env.Data) {
			c.metrics.RecordUnmatched("stream")
		}
	case env.ID != nil:
		c.metrics.RecordMessage(c.name, "response")
		resp := Response{ID: *env.ID, Status: env.Status, Result: env.Result, Error: env.Error}
		if !c.correlator.Resolve(resp.ID, resp) {
			c.metrics.RecordUnmatched("response")
		}
	default:
		c.metrics.RecordMessage(c.name, "unknown")
		c.logger.Debug("unknown message", zap.ByteString("msg", msg))
	}
}

// Request sends a correlated request and waits for its response or ctx.
// An error object in the response is returned as *ProtocolError.
func (c *Client) Request(ctx context.Context, method string, params any) (Response, error) {
	if err := c.waitConnected(ctx); err != nil {
		return Response{}, fmt.Errorf("%s: %w", method, err)
	}

	id, done := c.correlator.Register()
	defer c.correlator.Abandon(id)

	start := time.Now()
	if err := c.transport.Send(ctx, Request{Method: method, Params: params, ID: id}); err != nil {
		c.metrics.RecordRequest(method, "send_error", msSince(start))
		return Response{}, fmt.Errorf("send %s (id %d): %w", method, id, err)
	}

	select {
	case resp := <-done:
		if resp.Error != nil {
			c.metrics.RecordRequest(method, "error", msSince(start))
			return resp, &ProtocolError{Method: method, ID: id, Code: resp.Error.Code, Msg: resp.Error.Msg}
		}
		c.metrics.RecordRequest(method, "ok", msSince(start))
		return resp, nil
	case <-ctx.Done():
		c.metrics.RecordRequest(method, "timeout", msSince(start))
		return Response{}, fmt.Errorf("%s (id %d): %w", method, id, ctx.Err())
	}
}

// Subscribe registers h under "<market>@<suffix>" and confirms it with the venue.
// On any failure the registration is rolled back.
func (c *Client) Subscribe(ctx context.Context, market string, h Handler) error {
	stream := StreamName(market, h.StreamSuffix())
	if err := c.registry.Subscribe(stream, h); err != nil {
		return fmt.Errorf("subscribe %s: %w", stream, err)
	}

	resp, err := c.Request(ctx, "SUBSCRIBE", []string{stream})
	if err == nil {
		err = confirm("SUBSCRIBE", resp)
	}
	if err != nil {
		_ = c.registry.Unsubscribe(stream)
		c.logger.Warn("subscribe failed", zap.String("stream", stream), zap.Error(err))
		return fmt.Errorf("subscribe %s: %w", stream, err)
	}

	c.metrics.SetSubscribedStreams(len(c.registry.Streams()))
	c.logger.Info("subscribed", zap.String("stream", stream), zap.Uint64("id", resp.ID))
	return nil
}

// Unsubscribe removes the handler first, then tells the venue. A failed
// confirmation is reported but the handler is not restored.
func (c *Client) Unsubscribe(ctx context.Context, stream string) error {
	if err := c.registry.Unsubscribe(stream); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", stream, err)
	}
	c.metrics.SetSubscribedStreams(len(c.registry.Streams()))

	resp, err := c.Request(ctx, "UNSUBSCRIBE", []string{stream})
	if err == nil {
		err = confirm("UNSUBSCRIBE", resp)
	}
	if err != nil {
		c.logger.Warn("unsubscribe not confirmed", zap.String("stream", stream), zap.Error(err))
		return fmt.Errorf("unsubscribe %s: %w", stream, err)
	}

	c.logger.Info("unsubscribed", zap.String("stream", stream))
	return nil
}

// ListSubscriptions returns the streams the venue reports as active.
func (c *Client) ListSubscriptions(ctx context.Context) ([]string, error) {
	resp, err := c.Request(ctx, "LIST_SUBSCRIPTIONS", nil)
	if err != nil {
		return nil, err
	}
	if !resp.HasResult() {
		return []string{}, nil
	}

	var streams []string
	if err := json.Unmarshal(resp.Result, &streams); err != nil {
		return nil, fmt.Errorf("decode subscriptions: %w", err)
	}
	return streams, nil
}

// RequestSnapshot fetches a depth snapshot over the WebSocket API.
func (c *Client) RequestSnapshot(ctx context.Context, market string) (DepthSnapshot, error) {
	if err := ValidateMarket(market); err != nil {
		return DepthSnapshot{}, err
	}
	symbol := strings.ToUpper(market)

	params := struct {
		Symbol string `json:"symbol"`
		Limit  int    `json:"limit"`
	}{Symbol: symbol, Limit: c.snapshotLimit}

	resp, err := c.Request(ctx, "depth", params)
	if err != nil {
		return DepthSnapshot{}, fmt.Errorf("fetch snapshot %s: %w", symbol, err)
	}
	if !resp.HasResult() {
		return DepthSnapshot{}, fmt.Errorf("fetch snapshot %s (id %d): %w", symbol, resp.ID, ErrMissingResult)
	}

	var snap DepthSnapshot
	if err := json.Unmarshal(resp.Result, &snap); err != nil {
		return DepthSnapshot{}, fmt.Errorf("decode snapshot %s: %w", symbol, err)
	}

	c.logger.Debug("fetched snapshot",
		zap.String("symbol", symbol),
		zap.Int64("lastUpdateId", snap.LastUpdateID),
		zap.Int("bids", len(snap.Bids)),
		zap.Int("asks", len(snap.Asks)))
	return snap, nil
}

// Resubscribe re-sends one SUBSCRIBE for every registered stream. Used after a reconnect.
func (c *Client) Resubscribe(ctx context.Context) error {
	streams := c.registry.Streams()
	if len(streams) == 0 {
		return nil
	}

	resp, err := c.Request(ctx, "SUBSCRIBE", streams)
	if err == nil {
		err = confirm("SUBSCRIBE", resp)
	}
	if err != nil {
		return fmt.Errorf("resubscribe: %w", err)
	}

	c.logger.Info("resubscribed", zap.Strings("streams", streams))
	return nil
}

func (c *Client) waitConnected(ctx context.Context) error {
	select {
	case <-c.transport.Connected():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// confirm checks a SUBSCRIBE/UNSUBSCRIBE reply, which succeeds only with "result": null.
func confirm(method string, resp Response) error {
	if len(resp.Result) == 0 {
		return fmt.Errorf("%s (id %d): %w", method, resp.ID, ErrMissingResult)
	}
	if resp.HasResult() {
		return &ProtocolError{Method: method, ID: resp.ID, Result: string(resp.Result)}
	}
	return nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
