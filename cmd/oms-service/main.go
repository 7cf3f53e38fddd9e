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
	"github.com/ordersaga/orderflow/internal/order/application"
	"github.com/ordersaga/orderflow/internal/order/domain"
	orderhttp "github.com/ordersaga/orderflow/internal/order/infrastructure/http"
	orderkafka "github.com/ordersaga/orderflow/internal/order/infrastructure/kafka"
	"github.com/ordersaga/orderflow/internal/order/infrastructure/ledgerclient"
	"github.com/ordersaga/orderflow/internal/order/infrastructure/memstore"
	"github.com/ordersaga/orderflow/internal/order/infrastructure/paymentclient"
	"github.com/ordersaga/orderflow/pkg/logging"
	"github.com/ordersaga/orderflow/pkg/metrics"
	"github.com/ordersaga/orderflow/pkg/shutdown"
	"github.com/ordersaga/orderflow/pkg/tracing"
)

func main() {
	log := logging.New("oms")

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	httpAddr := env("HTTP_ADDR", ":8080")
	ledgerURL := env("LEDGER_URL", "")
	paymentURL := env("PAYMENT_URL", "http://localhost:8081")
	kafkaAddr := env("KAFKA_ADDR", "localhost:9092")
	wmsTopic := env("WMS_TOPIC", "wms.fulfillment")
	logsTopic := env("LOGS_TOPIC", "logs.events")
	otlpEndpoint := env("OTLP_ENDPOINT", "")
	stockSeed := env("STOCK", "SKU-123=20,SKU-456=15,SKU-789=8")
	callTimeout := envDuration("CALL_TIMEOUT", 5*time.Second, log)

	tp, err := tracing.Init(ctx, "oms-service", otlpEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	// Audit bus: kafka-backed when brokers are configured, the process
	// logger otherwise.
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

	// Ledger: remote when LEDGER_URL points at a ledger-service, local
	// otherwise.
	var stockLedger application.StockLedger
	if ledgerURL != "" {
		stockLedger = ledgerclient.NewHTTP(ledgerURL)
		log.Info("using remote ledger", "url", ledgerURL)
	} else {
		stockLedger = ledgerclient.NewInProc(ledger.New(parseStock(stockSeed, log)))
		log.Info("using in-process ledger", "seed", stockSeed)
	}

	gateway := paymentclient.NewHTTP(paymentURL)

	var notifier application.FulfillmentNotifier
	if kafkaAddr != "" {
		kn := orderkafka.NewNotifier([]string{kafkaAddr}, wmsTopic)
		defer kn.Close()
		notifier = kn
	} else {
		notifier = logNotifier{log: log}
	}

	sagaMetrics := metrics.NewSagaMetrics("oms")
	saga := application.NewOrchestrator(
		log,
		memstore.New(),
		stockLedger,
		gateway,
		notifier,
		auditLog,
		application.WithMetrics(sagaMetrics),
		application.WithCallTimeout(callTimeout),
	)
	handler := orderhttp.NewHandler(log, saga)

	r := chi.NewRouter()
	r.Mount("/", handler.Routes())
	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	srv := &http.Server{
		Addr:         httpAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
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
	log.Info("oms-service shutdown complete")
}

// logNotifier stands in for the wms bus when kafka is disabled.
type logNotifier struct {
	log *slog.Logger
}

func (n logNotifier) OrderReady(_ context.Context, evt domain.FulfillmentRequested) error {
	n.log.Info("fulfillment requested (kafka disabled)", "order_id", evt.OrderID, "reservation_id", evt.ReservationID)
	return nil
}

// parseStock reads "SKU-1=5,SKU-2=10" seeds.
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

func envDuration(k string, def time.Duration, log *slog.Logger) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn("invalid duration, using default", "key", k, "value", v)
		return def
	}
	return d
}
