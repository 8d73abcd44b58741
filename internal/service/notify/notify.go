// Package notify delivers "new detection" notifications to the operator.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"trashdetector/internal/logger"
	"trashdetector/internal/model"

	"github.com/segmentio/kafka-go"
)

// Notifier delivers one notification.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// New builds the notification for a freshly logged record.
func New(title string, record model.Record, snapshot string, now time.Time) model.Notification {
	return model.Notification{
		Title:    title,
		Message:  fmt.Sprintf("%d trash detected", record.Count),
		Label:    record.Label,
		Count:    record.Count,
		Snapshot: snapshot,
		Time:     now,
	}
}

// LogNotifier writes notifications to the application log.
type LogNotifier struct {
	logger *logger.Logger
}

func NewLogNotifier(logger *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, n model.Notification) error {
	l.logger.Info("🔔 %s %s (%s)", n.Title, n.Message, n.Label)
	return nil
}

// Broadcaster is satisfied by the websocket hub.
type Broadcaster interface {
	Broadcast(message []byte) bool
}

// HubNotifier pushes notifications as JSON to websocket viewers.
type HubNotifier struct {
	hub Broadcaster
}

func NewHubNotifier(hub Broadcaster) *HubNotifier {
	return &HubNotifier{hub: hub}
}

type hubMessage struct {
	Type string `json:"type"`
	model.Notification
}

func (h *HubNotifier) Notify(_ context.Context, n model.Notification) error {
	msg, err := json.Marshal(hubMessage{Type: "detection", Notification: n})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	if !h.hub.Broadcast(msg) {
		return fmt.Errorf("notification dropped: broadcast queue full")
	}
	return nil
}

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes each notification as a JSON message keyed by label.
type KafkaNotifier struct {
	writer  MessageWriter
	timeout time.Duration
}

// NewKafkaWriter returns a synchronous writer for topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
}

func NewKafkaNotifier(writer MessageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: writer, timeout: 5 * time.Second}
}

// Message renders n as the kafka message that Notify publishes.
func (k *KafkaNotifier) Message(n model.Notification) (kafka.Message, error) {
	value, err := json.Marshal(n)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode notification: %w", err)
	}
	return kafka.Message{Key: []byte(n.Label), Value: value, Time: n.Time}, nil
}

func (k *KafkaNotifier) Notify(ctx context.Context, n model.Notification) error {
	msg, err := k.Message(n)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}

// Multi sends to every notifier and returns the first error.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n model.Notification) error {
	var firstErr error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
