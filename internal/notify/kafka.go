// FilePath: internal/notify/kafka.go
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	nuts "github.com/vaudience/go-nuts"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes escalations as JSON to a topic keyed by alert id,
// for maintenance systems that consume alerts from the bus.
type KafkaNotifier struct {
	topic  string
	writer messageWriter
}

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		topic: topic,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
			WriteTimeout: 10 * time.Second,
		},
	}
}

func (n *KafkaNotifier) Notify(ctx context.Context, e Escalation) error {
	if e.Alert == nil {
		return fmt.Errorf("escalation without alert")
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode escalation: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.Alert.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "subject", Value: []byte(e.Subject())},
			{Key: "severity", Value: []byte(e.Alert.Severity)},
		},
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish alert to %s: %w", n.topic, err)
	}
	nuts.L.Infof("[Notify] Published leak alert %s to topic %s", e.Alert.ID, n.topic)
	return nil
}

// Close flushes and closes the underlying writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

// LogNotifier only logs escalations. Used when no channel is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, e Escalation) error {
	if e.Alert == nil {
		return fmt.Errorf("escalation without alert")
	}
	nuts.L.Warnf("[Notify] No notification channel configured, alert %s (%s at %s) only logged",
		e.Alert.ID, e.Alert.Severity, e.Alert.LocationLabel)
	return nil
}
