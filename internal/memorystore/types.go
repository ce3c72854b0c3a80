package memorystore

import (
	"time"

	"wsbook/internal/orderbook"

	"github.com/shopspring/decimal"
)

// BookView is the top of a book, flattened for JSON and logs.
type BookView struct {
	Symbol       string            `json:"symbol"`
	LastUpdateID int64             `json:"lastUpdateId"`
	EventTime    time.Time         `json:"eventTime"`
	Bids         []orderbook.Level `json:"bids"` // best first
	Asks         []orderbook.Level `json:"asks"` // best first
	Spread       *decimal.Decimal  `json:"spread,omitempty"`
	Mid          *decimal.Decimal  `json:"mid,omitempty"`
}

func NewBookView(st orderbook.State, depth int) BookView {
	bids, asks := st.Top(depth)
	v := BookView{
		Symbol:       st.Symbol,
		LastUpdateID: st.LastUpdateID,
		EventTime:    st.EventTime,
		Bids:         bids,
		Asks:         asks,
	}
	if bid, ask, ok := st.BestBidAsk(); ok {
		spread := ask.Price.Sub(bid.Price)
		mid := ask.Price.Add(bid.Price).Div(decimal.NewFromInt(2))
		v.Spread, v.Mid = &spread, &mid
	}
	return v
}

// TradeStats summarizes the trades kept for one symbol.
type TradeStats struct {
	Symbol        string          `json:"symbol"`
	Total         int64           `json:"total"` // all trades seen, not only the kept ones
	LastPrice     decimal.Decimal `json:"lastPrice"`
	LastTradeTime time.Time       `json:"lastTradeTime"`
	BuyVolume     decimal.Decimal `json:"buyVolume"`
	SellVolume    decimal.Decimal `json:"sellVolume"`
}
