package binance

import (
	"sync"

	"go.uber.org/zap"
)

// Correlator hands out request ids and completes exactly one waiter per id.
type Correlator struct {
	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan Response
	logger  *zap.Logger
}

func NewCorrelator(logger *zap.Logger) *Correlator {
	return &Correlator{
		pending: make(map[uint64]chan Response),
		logger:  logger,
	}
}

// Register allocates the next id (starting at 1) and its completion slot.
// The request must only be sent after Register returns.
func (c *Correlator) Register() (uint64, <-chan Response) {
	ch := make(chan Response, 1)

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.pending[id] = ch
	c.mu.Unlock()

	return id, ch
}

// Resolve completes the waiter for id. It returns false and drops resp when
// nothing is pending under id (duplicate or late response).
func (c *Correlator) Resolve(id uint64, resp Response) bool {
	c.mu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("no pending request for response", zap.Uint64("id", id))
		return false
	}

	ch <- resp // cap 1, never blocks
	return true
}

// Abandon forgets id without completing it. Unknown ids are ignored.
func (c *Correlator) Abandon(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Pending returns the number of outstanding requests.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
