package memorystore

import (
	"strings"
	"sync"

	"wsbook/internal/trade"
)

// MemoryTradeStore keeps the most recent trades per symbol.
type MemoryTradeStore struct {
	globalMu sync.RWMutex
	data     map[string]*symbolTradeStore
	limit    int
}

type symbolTradeStore struct {
	mu     sync.Mutex
	trades []trade.Event // oldest first, at most limit entries
	total  int64
}

func NewTradeStore(limit int) *MemoryTradeStore {
	if limit <= 0 {
		limit = 100
	}
	return &MemoryTradeStore{
		data:  make(map[string]*symbolTradeStore),
		limit: limit,
	}
}

func (s *MemoryTradeStore) Add(e trade.Event) {
	key := strings.ToUpper(e.Symbol)

	// Fast path: lock per-symbol store only
	s.globalMu.RLock()
	store, ok := s.data[key]
	s.globalMu.RUnlock()

	if !ok {
		s.globalMu.Lock()
		if store, ok = s.data[key]; !ok {
			store = &symbolTradeStore{trades: make([]trade.Event, 0, s.limit)}
			s.data[key] = store
		}
		s.globalMu.Unlock()
	}

	store.mu.Lock()
	if len(store.trades) == s.limit {
		copy(store.trades, store.trades[1:])
		store.trades = store.trades[:len(store.trades)-1]
	}
	store.trades = append(store.trades, e)
	store.total++
	store.mu.Unlock()
}

// Recent returns up to n trades for symbol, newest first. n <= 0 returns all kept trades.
func (s *MemoryTradeStore) Recent(symbol string, n int) []trade.Event {
	s.globalMu.RLock()
	store, ok := s.data[strings.ToUpper(symbol)]
	s.globalMu.RUnlock()
	if !ok {
		return nil
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if n <= 0 || n > len(store.trades) {
		n = len(store.trades)
	}
	out := make([]trade.Event, 0, n)
	for i := len(store.trades) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, store.trades[i])
	}
	return out
}

// Stats summarizes the kept trades of symbol.
func (s *MemoryTradeStore) Stats(symbol string) (TradeStats, bool) {
	s.globalMu.RLock()
	store, ok := s.data[strings.ToUpper(symbol)]
	s.globalMu.RUnlock()
	if !ok {
		return TradeStats{}, false
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	st := TradeStats{Symbol: strings.ToUpper(symbol), Total: store.total}
	for _, e := range store.trades {
		if e.Side() == "buy" {
			st.BuyVolume = st.BuyVolume.Add(e.Quantity)
		} else {
			st.SellVolume = st.SellVolume.Add(e.Quantity)
		}
	}
	if n := len(store.trades); n > 0 {
		st.LastPrice = store.trades[n-1].Price
		st.LastTradeTime = store.trades[n-1].TradeTime
	}
	return st, true
}

// CountAll returns the total number of trades seen across all symbols.
func (s *MemoryTradeStore) CountAll() int64 {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	var total int64
	for _, store := range s.data {
		store.mu.Lock()
		total += store.total
		store.mu.Unlock()
	}
	return total
}
