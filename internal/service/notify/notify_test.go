package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"trashdetector/internal/logger"
	"trashdetector/internal/model"

	"github.com/segmentio/kafka-go"
)

func testNotification() model.Notification {
	record := model.Record{Label: "09/01 09:00, 2", Count: 2}
	return New("Trash Detected!!", record, "1700000000.jpg", time.Unix(1700000000, 0))
}

func TestNew(t *testing.T) {
	n := testNotification()
	if n.Message != "2 trash detected" || n.Count != 2 || n.Snapshot != "1700000000.jpg" {
		t.Errorf("Unexpected notification %+v", n)
	}
}

type fakeHub struct {
	messages [][]byte
	full     bool
}

func (f *fakeHub) Broadcast(message []byte) bool {
	if f.full {
		return false
	}
	f.messages = append(f.messages, message)
	return true
}

func TestHubNotifier(t *testing.T) {
	hub := &fakeHub{}
	if err := NewHubNotifier(hub).Notify(context.Background(), testNotification()); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if len(hub.messages) != 1 {
		t.Fatalf("Expected one broadcast, got %d", len(hub.messages))
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(hub.messages[0], &decoded); err != nil {
		t.Fatalf("Broadcast is not JSON: %v", err)
	}
	if decoded["type"] != "detection" || decoded["label"] != "09/01 09:00, 2" || decoded["count"] != float64(2) {
		t.Errorf("Unexpected payload %v", decoded)
	}

	if err := NewHubNotifier(&fakeHub{full: true}).Notify(context.Background(), testNotification()); err == nil {
		t.Error("Expected error when hub drops the message")
	}
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaNotifier(t *testing.T) {
	w := &fakeWriter{}
	k := NewKafkaNotifier(w)

	if err := k.Notify(context.Background(), testNotification()); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("Expected one message, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "09/01 09:00, 2" {
		t.Errorf("Unexpected key %q", w.msgs[0].Key)
	}
	if !strings.Contains(string(w.msgs[0].Value), `"count":2`) {
		t.Errorf("Unexpected value %s", w.msgs[0].Value)
	}

	boom := errors.New("broker down")
	if err := NewKafkaNotifier(&fakeWriter{err: boom}).Notify(context.Background(), testNotification()); !errors.Is(err, boom) {
		t.Errorf("Expected wrapped broker error, got %v", err)
	}
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter([]string{"localhost:9092"}, "trash-detections")
	if w.Topic != "trash-detections" || w.Addr.String() != "localhost:9092" {
		t.Errorf("Unexpected writer %+v", w)
	}
}

type failingNotifier struct{ calls int }

func (f *failingNotifier) Notify(context.Context, model.Notification) error {
	f.calls++
	return errors.New("failed")
}

func TestMulti_AttemptsAll(t *testing.T) {
	var buf bytes.Buffer
	first := &failingNotifier{}
	hub := &fakeHub{}
	m := Multi{first, NewLogNotifier(logger.NewWriterLogger(&buf, logger.LevelInfo)), NewHubNotifier(hub)}

	if err := m.Notify(context.Background(), testNotification()); err == nil {
		t.Error("Expected first error to be returned")
	}
	if first.calls != 1 || len(hub.messages) != 1 {
		t.Error("Every notifier should be called")
	}
	if !strings.Contains(buf.String(), "2 trash detected") {
		t.Errorf("Log notifier output missing: %q", buf.String())
	}
}
