// Package kafka publishes the one-way fulfillment handoff event.
package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/ordersaga/orderflow/internal/order/domain"
	"github.com/ordersaga/orderflow/pkg/tracing"
)

// Notifier writes FulfillmentRequested events to the wms topic, keyed by
// order id so one order's events stay on one partition.
type Notifier struct {
	writer *kafka.Writer
}

func NewNotifier(brokers []string, topic string) *Notifier {
	return &Notifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (n *Notifier) OrderReady(ctx context.Context, evt domain.FulfillmentRequested) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	headers := tracing.InjectKafkaHeaders(ctx, []kafka.Header{
		{Key: "event_type", Value: []byte("fulfillment.created")},
	})
	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(evt.OrderID),
		Value:   payload,
		Headers: headers,
	})
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}
