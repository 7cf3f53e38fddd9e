package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ordersaga/orderflow/internal/audit"
	"github.com/ordersaga/orderflow/internal/fulfillment"
	"github.com/ordersaga/orderflow/pkg/idempotency"
	"github.com/ordersaga/orderflow/pkg/logging"
	"github.com/ordersaga/orderflow/pkg/shutdown"
	"github.com/ordersaga/orderflow/pkg/tracing"
)

func main() {
	log := logging.New("fulfillment-worker")

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	kafkaAddr := env("KAFKA_ADDR", "localhost:9092")
	wmsTopic := env("WMS_TOPIC", "wms.fulfillment")
	group := env("CONSUMER_GROUP", "fulfillment-worker")
	redisAddr := env("REDIS_ADDR", "localhost:6379")
	otlpEndpoint := env("OTLP_ENDPOINT", "")

	tp, err := tracing.Init(ctx, "fulfillment-worker", otlpEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()
	idem := idempotency.NewStore(rdb, 10*time.Minute)

	consumer := fulfillment.NewConsumer(log, []string{kafkaAddr}, wmsTopic, group, idem, audit.NewSlogLogger(log))

	log.Info("consuming", "topic", wmsTopic, "group", group)
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("consumer stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("fulfillment-worker shutdown complete")
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
