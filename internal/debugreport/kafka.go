package debugreport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"golang.org/x/time/rate"
)

// KafkaScheduler publishes notifications as JSON to a Kafka topic,
// following the teacher repository's segmentio/kafka-go wiring (its
// Writer was declared in go.mod but never exercised). A token-bucket
// throttle guards the publisher the same way
// internal/api/middleware/ratelimit.go throttles inbound HTTP requests,
// so a pathological invocation that drops thousands of triggers in one
// pass cannot flood the topic.
type KafkaScheduler struct {
	writer  *kafka.Writer
	limiter *rate.Limiter
}

// NewKafkaScheduler builds a scheduler writing to topic on brokers,
// throttled to ratePerSecond notifications per second with a matching
// burst allowance.
func NewKafkaScheduler(brokers []string, topic string, ratePerSecond int) *KafkaScheduler {
	return &KafkaScheduler{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), ratePerSecond),
	}
}

// Schedule publishes n to the configured topic, keyed by trigger id so a
// topic with multiple partitions preserves per-trigger ordering. It waits
// on the throttle before publishing rather than dropping silently,
// because a scheduled debug notification that never gets published would
// be an observable gap in a debugging workflow.
func (s *KafkaScheduler) Schedule(ctx context.Context, n Notification) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("debugreport: rate limiter wait: %w", err)
	}

	payload, err := json.Marshal(n)
	if err != nil {
		slog.Warn("debugreport: failed to marshal notification",
			slog.String("trigger_id", n.TriggerID), slog.String("error", err.Error()))

		return fmt.Errorf("debugreport: marshal notification: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(n.TriggerID),
		Value: payload,
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("debugreport: publish notification: %w", err)
	}

	return nil
}

// Close releases the underlying writer's connections.
func (s *KafkaScheduler) Close() error {
	return s.writer.Close()
}
