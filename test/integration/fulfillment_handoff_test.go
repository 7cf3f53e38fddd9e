package integration

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	segkafka "github.com/segmentio/kafka-go"

	"github.com/ordersaga/orderflow/internal/order/domain"
	orderkafka "github.com/ordersaga/orderflow/internal/order/infrastructure/kafka"
)

func TestFulfillmentHandoffOverKafka(t *testing.T) {
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("set INTEGRATION to run container tests")
	}

	ctx := context.Background()
	env, err := Setup(ctx)
	if err != nil {
		t.Fatalf("container setup failed: %v", err)
	}
	defer env.Teardown(ctx)

	const topic = "wms.fulfillment"

	notifier := orderkafka.NewNotifier(env.KAddr, topic)
	defer notifier.Close()

	evt := domain.FulfillmentRequested{
		OrderID:       "order-it-1",
		ReservationID: "res-it-1",
		Items:         []domain.LineItem{{ProductID: 123, Quantity: 2, PriceCents: 1_999}},
		Customer:      domain.Customer{FirstName: "Max", LastName: "Mustermann"},
		OccurredAt:    time.Now().UTC(),
	}

	writeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := notifier.OrderReady(writeCtx, evt); err != nil {
		t.Fatalf("publish: %v", err)
	}

	reader := segkafka.NewReader(segkafka.ReaderConfig{
		Brokers:  env.KAddr,
		Topic:    topic,
		GroupID:  "handoff-test",
		MinBytes: 1,
		MaxBytes: 1e6,
	})
	defer reader.Close()

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	msg, err := reader.ReadMessage(readCtx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if string(msg.Key) != evt.OrderID {
		t.Errorf("expected key %s, got %s", evt.OrderID, msg.Key)
	}

	var got domain.FulfillmentRequested
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.OrderID != evt.OrderID || got.ReservationID != evt.ReservationID {
		t.Errorf("event mismatch: %+v", got)
	}
	if len(got.Items) != 1 || got.Items[0].Quantity != 2 {
		t.Errorf("items mismatch: %+v", got.Items)
	}
}
