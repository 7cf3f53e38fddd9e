// Package fulfillment drains the wms topic: each FulfillmentRequested
// event becomes a pick task. The worker is idempotent per message, so a
// redelivered event never creates a second task.
package fulfillment

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ordersaga/orderflow/internal/audit"
	"github.com/ordersaga/orderflow/internal/order/domain"
	"github.com/ordersaga/orderflow/pkg/idempotency"
	"github.com/ordersaga/orderflow/pkg/tracing"
)

const auditService = "wms"

type Consumer struct {
	log    *slog.Logger
	reader *kafka.Reader
	idem   *idempotency.Store
	audit  audit.Logger
	tracer trace.Tracer
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, idem *idempotency.Store, auditLog audit.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Consumer{
		log:    log,
		reader: r,
		idem:   idem,
		audit:  auditLog,
		tracer: otel.Tracer("fulfillment-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		key := c.idem.MessageKey(msg.Topic, msg.Partition, msg.Offset)
		seen, err := c.idem.Seen(ctx, key)
		if err != nil {
			c.log.Error("idempotency check failed", "err", err)
			continue
		}
		if seen {
			c.log.Info("duplicate message skipped", "key", key)
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
		msgCtx, span := c.tracer.Start(msgCtx, "ConsumeFulfillmentRequested")
		c.handle(msgCtx, msg.Value)
		span.End()

		_ = c.reader.CommitMessages(ctx, msg)
	}
}

func (c *Consumer) handle(_ context.Context, value []byte) {
	var evt domain.FulfillmentRequested
	if err := json.Unmarshal(value, &evt); err != nil {
		c.log.Error("unmarshal failed", "err", err)
		return
	}

	var units int
	for _, item := range evt.Items {
		units += item.Quantity
	}

	c.log.Info("pick task created",
		"order_id", evt.OrderID,
		"reservation_id", evt.ReservationID,
		"units", units,
		"customer", evt.Customer.LastName,
	)
	c.audit.Log(auditService, "info", "fulfillment accepted", map[string]any{
		"orderId":       evt.OrderID,
		"reservationId": evt.ReservationID,
		"units":         units,
	})
}
