package binance

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadySubscribed = errors.New("stream already subscribed")
	ErrNotSubscribed     = errors.New("stream not subscribed")
	ErrInvalidMarket     = errors.New("invalid market symbol")
	ErrMissingResult     = errors.New("response has no result")
)

// ProtocolError is returned when the venue answers a control request with a failure.
type ProtocolError struct {
	Method string
	ID     uint64
	Code   int
	Msg    string
	Result string
}

func (e *ProtocolError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s (id %d) failed: code=%d msg=%s", e.Method, e.ID, e.Code, e.Msg)
	}
	return fmt.Sprintf("%s (id %d) failed: result=%s", e.Method, e.ID, e.Result)
}

// ValidationError rejects input before anything is sent.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidMarket
}
