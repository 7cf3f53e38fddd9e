// Package audit isolates the one-way audit-log boundary. Emitting an
// entry never blocks and never fails the caller: entries are buffered and
// dropped under backpressure, and publish errors are only logged.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Entry is the structured audit event shared by every service.
type Entry struct {
	Service    string         `json:"service"`
	Level      string         `json:"level"`
	Message    string         `json:"message"`
	Context    map[string]any `json:"context"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// Logger is the narrow interface business code calls. Implementations
// must be safe to call from the hot path.
type Logger interface {
	Log(service, level, message string, context map[string]any)
}

// Producer matches the kafka writer surface the bus needs.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Bus publishes entries to a log topic from a background goroutine. The
// message key carries the `<service>.<level>` routing key.
type Bus struct {
	log    *slog.Logger
	writer Producer
	topic  string
	ch     chan Entry
}

func NewBus(log *slog.Logger, writer Producer, topic string) *Bus {
	return &Bus{
		log:    log,
		writer: writer,
		topic:  topic,
		ch:     make(chan Entry, 256),
	}
}

// Log enqueues the entry, dropping it if the buffer is full.
func (b *Bus) Log(service, level, message string, context map[string]any) {
	entry := Entry{
		Service:    service,
		Level:      level,
		Message:    message,
		Context:    context,
		OccurredAt: time.Now().UTC(),
	}
	select {
	case b.ch <- entry:
	default:
		b.log.Debug("audit buffer full, entry dropped", "audit_service", service, "message", message)
	}
}

// Run drains the buffer until ctx is cancelled, then flushes what is left.
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case entry := <-b.ch:
					b.publish(entry)
				default:
					b.log.Info("audit bus stopped")
					return
				}
			}
		case entry := <-b.ch:
			b.publish(entry)
		}
	}
}

func (b *Bus) publish(entry Entry) {
	payload, err := json.Marshal(entry)
	if err != nil {
		b.log.Error("audit marshal failed", "err", err)
		return
	}
	msg := kafka.Message{
		Topic: b.topic,
		Key:   []byte(entry.Service + "." + entry.Level),
		Value: payload,
	}
	pubCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.writer.WriteMessages(pubCtx, msg); err != nil {
		b.log.Error("audit publish failed", "err", err)
	}
}

// SlogLogger routes audit entries to the process logger when no bus is
// configured. Used by tests and single-binary deployments.
type SlogLogger struct {
	log *slog.Logger
}

func NewSlogLogger(log *slog.Logger) *SlogLogger {
	return &SlogLogger{log: log}
}

func (s *SlogLogger) Log(service, level, message string, context map[string]any) {
	attrs := []any{"audit_service", service}
	for k, v := range context {
		attrs = append(attrs, k, v)
	}
	switch level {
	case "error":
		s.log.Error(message, attrs...)
	case "warn":
		s.log.Warn(message, attrs...)
	default:
		s.log.Info(message, attrs...)
	}
}
