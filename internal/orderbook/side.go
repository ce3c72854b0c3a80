package orderbook

import (
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
)

// Level is one price level. Quantity is never zero inside a Side.
type Level struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Side is one side of the book, iterated best price first.
type Side struct {
	tree *btree.BTreeG[Level]
	desc bool
}

// NewBids returns a side ordered by descending price.
func NewBids() *Side {
	return &Side{
		tree: btree.NewBTreeG(func(a, b Level) bool { return a.Price.GreaterThan(b.Price) }),
		desc: true,
	}
}

// NewAsks returns a side ordered by ascending price.
func NewAsks() *Side {
	return &Side{
		tree: btree.NewBTreeG(func(a, b Level) bool { return a.Price.LessThan(b.Price) }),
	}
}

// Apply sets the quantity at price. A zero quantity removes the level.
func (s *Side) Apply(price, qty decimal.Decimal) {
	if qty.IsZero() {
		s.tree.Delete(Level{Price: price})
		return
	}
	s.tree.Set(Level{Price: price, Quantity: qty})
}

// Get returns the quantity resting at price.
func (s *Side) Get(price decimal.Decimal) (decimal.Decimal, bool) {
	lvl, ok := s.tree.Get(Level{Price: price})
	return lvl.Quantity, ok
}

func (s *Side) Len() int {
	return s.tree.Len()
}

// Best returns the top of this side.
func (s *Side) Best() (Level, bool) {
	return s.tree.Min() // the less func already puts the best price first
}

// Levels returns up to n levels best first. n <= 0 returns all of them.
func (s *Side) Levels(n int) []Level {
	size := s.tree.Len()
	if n <= 0 || n > size {
		n = size
	}
	out := make([]Level, 0, n)
	s.tree.Scan(func(lvl Level) bool {
		out = append(out, lvl)
		return len(out) < n
	})
	return out
}

// Clear removes every level.
func (s *Side) Clear() {
	s.tree.Clear()
}

// Copy returns a copy-on-write clone. Writes to either side never show in the other.
func (s *Side) Copy() *Side {
	return &Side{tree: s.tree.Copy(), desc: s.desc}
}

// Descending reports whether this is a bid side.
func (s *Side) Descending() bool {
	return s.desc
}
