package control

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestKeyReader_Match(t *testing.T) {
	k := NewKeyReader("q", "P")

	tests := []struct {
		key  string
		kind Kind
		ok   bool
	}{
		{"q", Flush, true},
		{"Q", Flush, true},
		{"p", Stop, true},
		{"P", Stop, true},
		{"x", 0, false},
	}

	for _, tt := range tests {
		kind, ok := k.Match(tt.key)
		if ok != tt.ok || (ok && kind != tt.kind) {
			t.Errorf("Match(%q) = %v, %v; expected %v, %v", tt.key, kind, ok, tt.kind, tt.ok)
		}
	}
}

func TestKeyReader_Run(t *testing.T) {
	k := NewKeyReader("q", "p")
	events := make(chan Event, 10)

	input := strings.NewReader("x\nq\n  Q\np\nq\n")
	if err := k.Run(context.Background(), input, events); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	close(events)

	var kinds []Kind
	for ev := range events {
		if ev.Source != "keyboard" {
			t.Errorf("Unexpected source %q", ev.Source)
		}
		kinds = append(kinds, ev.Kind)
	}

	// Input after the stop key is not read.
	expected := []Kind{Flush, Flush, Stop}
	if len(kinds) != len(expected) {
		t.Fatalf("Got events %v, expected %v", kinds, expected)
	}
	for i := range expected {
		if kinds[i] != expected[i] {
			t.Errorf("Event %d = %v, expected %v", i, kinds[i], expected[i])
		}
	}
}

func TestKeyReader_RunCancelled(t *testing.T) {
	k := NewKeyReader("q", "p")
	events := make(chan Event) // nobody receives

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := k.Run(ctx, strings.NewReader("q"), events)
	if err != context.DeadlineExceeded {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestSend_NonBlocking(t *testing.T) {
	events := make(chan Event, 1)

	if !Send(events, Event{Kind: Flush, Source: "http"}) {
		t.Fatal("First send should succeed")
	}
	if Send(events, Event{Kind: Stop, Source: "http"}) {
		t.Error("Send on a full queue should report false")
	}
	if ev := <-events; ev.Kind != Flush {
		t.Errorf("Unexpected event %+v", ev)
	}
}

func TestKind_String(t *testing.T) {
	if Flush.String() != "flush" || Stop.String() != "stop" || Kind(9).String() != "unknown" {
		t.Error("Unexpected Kind strings")
	}
}
