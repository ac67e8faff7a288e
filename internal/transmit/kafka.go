package transmit

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/blackwell-systems/worktrack/internal/activity"
)

type messageWriter interface {
	WriteMessages(context.Context, ...kafka.Message) error
	Close() error
}

// KafkaSink publishes payloads to a topic instead of posting them over HTTP.
// Messages are keyed by user id so one user's payloads stay ordered.
type KafkaSink struct {
	writer messageWriter
}

// NewKafkaSink creates a sink writing to topic on the given brokers.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Compression:  kafka.Snappy,
			Async:        false,
		},
	}
}

// Deliver writes one message carrying env.
func (s *KafkaSink) Deliver(ctx context.Context, sess activity.Session, env Envelope) error {
	headers := []kafka.Header{
		{Key: "payload-kind", Value: []byte(env.Kind)},
		{Key: "team-id", Value: []byte(sess.TeamID)},
	}
	if sess.AuthToken != "" {
		headers = append(headers, kafka.Header{Key: "authorization", Value: []byte("Bearer " + sess.AuthToken)})
	}

	msg := kafka.Message{
		Key:     []byte(sess.UserID),
		Value:   env.Body,
		Headers: headers,
		Time:    time.Now().UTC(),
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing %s payload: %w", env.Kind, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
