package trade

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"wsbook/internal/metrics"
	"wsbook/pkg/binance"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Event is a normalized aggregate trade.
type Event struct {
	Symbol             string          `json:"symbol"`
	TradeID            int64           `json:"tradeId"`
	Price              decimal.Decimal `json:"price"`
	Quantity           decimal.Decimal `json:"quantity"`
	FirstTradeID       int64           `json:"firstTradeId"`
	LastTradeID        int64           `json:"lastTradeId"`
	EventTime          time.Time       `json:"eventTime"`
	TradeTime          time.Time       `json:"tradeTime"`
	IsBuyerMarketMaker bool            `json:"isBuyerMarketMaker"`
}

// Side is the aggressor side. A maker buyer means the taker sold.
func (e Event) Side() string {
	if e.IsBuyerMarketMaker {
		return "sell"
	}
	return "buy"
}

// Notional is price times quantity.
func (e Event) Notional() decimal.Decimal {
	return e.Price.Mul(e.Quantity)
}

type Publisher interface {
	Publish(Event)
}

var errMissingSymbol = errors.New("aggTrade without symbol")

// Normalizer handles <market>@aggTrade pushes.
type Normalizer struct {
	market    string
	publisher Publisher
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewNormalizer(market string, publisher Publisher, logger *zap.Logger) *Normalizer {
	market = strings.ToLower(market)
	return &Normalizer{
		market:    market,
		publisher: publisher,
		logger:    logger.Named("trade").With(zap.String("market", market)),
	}
}

func (n *Normalizer) SetMetrics(m *metrics.Metrics) {
	n.metrics = m
}

func (n *Normalizer) StreamSuffix() string {
	return "aggTrade"
}

// Handle never fails into the dispatch path: bad payloads are logged and dropped.
func (n *Normalizer) Handle(payload json.RawMessage) {
	ev, err := Parse(payload)
	if err != nil {
		n.logger.Warn("failed to parse aggTrade", zap.Error(err))
		n.metrics.RecordParseError("trade")
		return
	}

	n.metrics.RecordEventLag(n.market+"@aggTrade", float64(time.Since(ev.EventTime).Milliseconds()))
	n.metrics.RecordTrade(n.market)
	n.publisher.Publish(ev)
}

// Parse converts an aggTrade payload into an Event.
func Parse(payload json.RawMessage) (Event, error) {
	var raw binance.AggTradeEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Event{}, err
	}
	if raw.Symbol == "" {
		return Event{}, errMissingSymbol
	}

	return Event{
		Symbol:             raw.Symbol,
		TradeID:            raw.AggTradeID,
		Price:              raw.Price,
		Quantity:           raw.Quantity,
		FirstTradeID:       raw.FirstTradeID,
		LastTradeID:        raw.LastTradeID,
		EventTime:          time.UnixMilli(raw.EventTime),
		TradeTime:          time.UnixMilli(raw.TradeTime),
		IsBuyerMarketMaker: raw.IsBuyerMarketMaker,
	}, nil
}
