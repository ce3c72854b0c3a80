package binance

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Request is the outbound control frame shared by the stream socket and the WebSocket API.
type Request struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
	ID     uint64 `json:"id"`
}

// Response is a correlated reply. Result keeps the raw bytes so callers can tell
// a missing field (nil) from an explicit null ("null").
type Response struct {
	ID     uint64          `json:"id"`
	Status int             `json:"status,omitempty"` // WebSocket API only
	Result json.RawMessage `json:"result"`
	Error  *APIError       `json:"error,omitempty"`
}

// HasResult reports whether the response carries a non-null result.
func (r Response) HasResult() bool {
	return len(r.Result) > 0 && !bytes.Equal(bytes.TrimSpace(r.Result), []byte("null"))
}

// APIError is the error object returned by both sockets.
type APIError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// envelope is decoded first to route a message to the registry or the correlator.
type envelope struct {
	ID     *uint64         `json:"id"`
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// PriceLevel decodes a ["price", "qty"] pair.
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

func (p *PriceLevel) UnmarshalJSON(b []byte) error {
	var raw [2]decimal.Decimal
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("price level %s: %w", b, err)
	}
	p.Price, p.Quantity = raw[0], raw[1]
	return nil
}

func (p PriceLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{p.Price.String(), p.Quantity.String()})
}

// DepthSnapshot is the result of the "depth" WebSocket API method.
type DepthSnapshot struct {
	LastUpdateID int64        `json:"lastUpdateId"`
	Bids         []PriceLevel `json:"bids"`
	Asks         []PriceLevel `json:"asks"`
}

// DepthUpdateEvent is the payload of a <symbol>@depth push.
//
//	{"e":"depthUpdate","E":1672515782136,"s":"BNBBTC","U":157,"u":160,
//	 "b":[["0.0024","10"]],"a":[["0.0026","100"]]}
type DepthUpdateEvent struct {
	EventType     string       `json:"e"`
	EventTime     int64        `json:"E"`
	Symbol        string       `json:"s"`
	FirstUpdateID int64        `json:"U"`
	LastUpdateID  int64        `json:"u"`
	Bids          []PriceLevel `json:"b"`
	Asks          []PriceLevel `json:"a"`
}

// AggTradeEvent is the payload of a <symbol>@aggTrade push.
//
//	{"e":"aggTrade","E":123456789,"s":"BNBBTC","a":12345,"p":"0.001","q":"100",
//	 "f":100,"l":105,"T":123456785,"m":true,"M":true}
type AggTradeEvent struct {
	EventType          string          `json:"e"`
	EventTime          int64           `json:"E"`
	Symbol             string          `json:"s"`
	AggTradeID         int64           `json:"a"`
	Price              decimal.Decimal `json:"p"`
	Quantity           decimal.Decimal `json:"q"`
	FirstTradeID       int64           `json:"f"`
	LastTradeID        int64           `json:"l"`
	TradeTime          int64           `json:"T"`
	IsBuyerMarketMaker bool            `json:"m"`
}
