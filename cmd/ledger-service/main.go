package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/segmentio/kafka-go"

	"github.com/ordersaga/orderflow/internal/audit"
	"github.com/ordersaga/orderflow/internal/ledger"
	ledgerhttp "github.com/ordersaga/orderflow/internal/ledger/http"
	"github.com/ordersaga/orderflow/pkg/logging"
	"github.com/ordersaga/orderflow/pkg/shutdown"
	"github.com/ordersaga/orderflow/pkg/tracing"
)

func main() {
	log := logging.New("ledger")

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	httpAddr := env("HTTP_ADDR", ":8082")
	kafkaAddr := env("KAFKA_ADDR", "localhost:9092")
	logsTopic := env("LOGS_TOPIC", "logs.events")
	otlpEndpoint := env("OTLP_ENDPOINT", "")
	stockSeed := env("STOCK", "SKU-123=20,SKU-456=15,SKU-789=8")

	tp, err := tracing.Init(ctx, "ledger-service", otlpEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	var auditLog audit.Logger = audit.NewSlogLogger(log)
	var auditWriter *kafka.Writer
	if kafkaAddr != "" {
		auditWriter = &kafka.Writer{
			Addr:         kafka.TCP(kafkaAddr),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		}
		bus := audit.NewBus(log, auditWriter, logsTopic)
		go bus.Run(ctx)
		auditLog = bus
	}

	l := ledger.New(parseStock(stockSeed, log))
	handler := ledgerhttp.NewHandler(log, l, auditLog)

	r := chi.NewRouter()
	r.Mount("/", handler.Routes())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	srv := &http.Server{
		Addr:         httpAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http listening", "addr", httpAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	if auditWriter != nil {
		_ = auditWriter.Close()
	}
	log.Info("ledger-service shutdown complete")
}

func parseStock(s string, log *slog.Logger) map[string]int {
	out := make(map[string]int)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		sku, qty, ok := strings.Cut(pair, "=")
		if !ok {
			log.Warn("malformed stock seed entry skipped", "entry", pair)
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(qty))
		if err != nil || n < 0 {
			log.Warn("malformed stock quantity skipped", "entry", pair)
			continue
		}
		out[strings.TrimSpace(sku)] = n
	}
	return out
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
