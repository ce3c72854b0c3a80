package memorystore

import (
	"sort"
	"strings"
	"sync"

	"wsbook/internal/orderbook"
)

// MemoryBookStore holds the latest published state per symbol.
// States are copy-on-write snapshots, so readers share them without copying.
type MemoryBookStore struct {
	mu     sync.RWMutex
	states map[string]orderbook.State
}

func NewBookStore() *MemoryBookStore {
	return &MemoryBookStore{
		states: make(map[string]orderbook.State),
	}
}

func (s *MemoryBookStore) Set(st orderbook.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[strings.ToUpper(st.Symbol)] = st
}

func (s *MemoryBookStore) Get(symbol string) (orderbook.State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[strings.ToUpper(symbol)]
	return st, ok
}

// View returns the top depth levels of symbol.
func (s *MemoryBookStore) View(symbol string, depth int) (BookView, bool) {
	st, ok := s.Get(symbol)
	if !ok {
		return BookView{}, false
	}
	return NewBookView(st, depth), true
}

// Symbols returns the symbols with a book, sorted.
func (s *MemoryBookStore) Symbols() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.states))
	for sym := range s.states {
		out = append(out, sym)
	}
	s.mu.RUnlock()

	sort.Strings(out)
	return out
}
