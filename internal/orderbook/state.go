package orderbook

import (
	"time"

	"wsbook/pkg/binance"
)

// Status is the synchronizer's position in the snapshot/diff handshake.
type Status int

const (
	Uninitialized Status = iota
	SyncPending
	Initialized
)

func (s Status) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case SyncPending:
		return "sync_pending"
	case Initialized:
		return "initialized"
	default:
		return "unknown"
	}
}

// DiffUpdate is one depth diff covering update ids [FirstUpdateID, LastUpdateID].
type DiffUpdate struct {
	Symbol        string
	FirstUpdateID int64
	LastUpdateID  int64
	Bids          []Level
	Asks          []Level
	EventTime     time.Time
}

// State is an immutable view of a book as published on the bus.
// Bids and Asks are copy-on-write copies; consumers must not call Apply on them.
type State struct {
	Symbol       string
	LastUpdateID int64
	EventTime    time.Time
	Bids         *Side
	Asks         *Side
}

// Top returns up to depth levels per side.
func (s State) Top(depth int) (bids, asks []Level) {
	return s.Bids.Levels(depth), s.Asks.Levels(depth)
}

// BestBidAsk returns the top of both sides, or false when either side is empty.
func (s State) BestBidAsk() (Level, Level, bool) {
	bid, okBid := s.Bids.Best()
	ask, okAsk := s.Asks.Best()
	return bid, ask, okBid && okAsk
}

func toDiff(ev binance.DepthUpdateEvent) DiffUpdate {
	return DiffUpdate{
		Symbol:        ev.Symbol,
		FirstUpdateID: ev.FirstUpdateID,
		LastUpdateID:  ev.LastUpdateID,
		Bids:          toLevels(ev.Bids),
		Asks:          toLevels(ev.Asks),
		EventTime:     time.UnixMilli(ev.EventTime),
	}
}

func toLevels(in []binance.PriceLevel) []Level {
	out := make([]Level, len(in))
	for i, p := range in {
		out[i] = Level{Price: p.Price, Quantity: p.Quantity}
	}
	return out
}
