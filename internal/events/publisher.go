// Package events publishes payment-status-change notifications for downstream
// consumers (fulfilment, notifications).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/fairyhunter13/payment-webhook-reconciler/internal/model"
)

// StatusChange is the message emitted after a successful reconciliation.
type StatusChange struct {
	OrderID        uint                 `json:"order_id"`
	PaymentID      uint                 `json:"payment_id"`
	ProviderStatus model.ProviderStatus `json:"provider_status"`
	PaymentStatus  model.PaymentStatus  `json:"payment_status"`
	OrderStatus    model.OrderStatus    `json:"order_status"`
	StockReversed  bool                 `json:"stock_reversed"`
	OccurredAt     time.Time            `json:"occurred_at"`
}

// Publisher emits status-change events. Publishing is best effort: the
// reconciliation result is already persisted when Publish runs.
type Publisher interface {
	Publish(ctx context.Context, ev StatusChange) error
	Close() error
}

// Nop is the Publisher used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, StatusChange) error { return nil }
func (Nop) Close() error                                { return nil }

// Kafka publishes status changes to a Kafka topic, keyed by order id so one
// order's events stay in partition order.
type Kafka struct {
	w *kafka.Writer
}

// NewKafka builds a Kafka publisher for the given brokers and topic.
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

func (k *Kafka) Publish(ctx context.Context, ev StatusChange) error {
	val, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal status change: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(ev.OrderID), 10)),
		Value: val,
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish status change: %w", err)
	}
	return nil
}

func (k *Kafka) Close() error { return k.w.Close() }
