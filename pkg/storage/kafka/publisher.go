package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wsbook/internal/trade"

	"github.com/segmentio/kafka-go"
)

// TradePublisher writes normalized trades to a Kafka topic, keyed by symbol so
// each market stays ordered within its partition.
type TradePublisher struct {
	writer *kafka.Writer
}

func NewTradePublisher(brokers []string, topic string) *TradePublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &TradePublisher{writer: w}
}

// TradeMessage builds the Kafka message for e.
func TradeMessage(e trade.Event) (kafka.Message, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("json marshal failed: %w", err)
	}
	return kafka.Message{
		Key:   []byte(e.Symbol),
		Value: b,
		Time:  e.TradeTime,
		Headers: []kafka.Header{
			{Key: "side", Value: []byte(e.Side())},
		},
	}, nil
}

// Publish sends trades in one batch.
func (p *TradePublisher) Publish(ctx context.Context, trades ...trade.Event) error {
	msgs := make([]kafka.Message, 0, len(trades))
	for _, e := range trades {
		m, err := TradeMessage(e)
		if err != nil {
			return err
		}
		msgs = append(msgs, m)
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka publish: %w", err)
	}
	return nil
}

func (p *TradePublisher) Close() error {
	return p.writer.Close()
}
