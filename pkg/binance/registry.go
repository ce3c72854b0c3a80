package binance

import (
	"encoding/json"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Handler consumes the data part of one push stream.
type Handler interface {
	// StreamSuffix is appended to the market, e.g. "depth" for "btcusdt@depth".
	StreamSuffix() string
	Handle(payload json.RawMessage)
}

// Registry maps stream names to their single handler.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

func (r *Registry) Subscribe(stream string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[stream]; ok {
		return ErrAlreadySubscribed
	}
	r.handlers[stream] = h
	return nil
}

func (r *Registry) Unsubscribe(stream string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[stream]; !ok {
		return ErrNotSubscribed
	}
	delete(r.handlers, stream)
	return nil
}

// Dispatch runs the handler for stream outside the lock. Pushes for unknown
// streams are expected while a subscription is being confirmed and are dropped.
func (r *Registry) Dispatch(stream string, payload json.RawMessage) bool {
	r.mu.RLock()
	h, ok := r.handlers[stream]
	r.mu.RUnlock()

	if !ok {
		r.logger.Debug("no handler for stream", zap.String("stream", stream))
		return false
	}

	h.Handle(payload)
	return true
}

// Streams returns the registered stream names in sorted order.
func (r *Registry) Streams() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	r.mu.RUnlock()

	sort.Strings(out)
	return out
}
