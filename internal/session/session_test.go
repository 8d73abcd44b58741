package session

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"trashdetector/internal/model"
)

func at(month time.Month, day, hour, minute, second int) time.Time {
	return time.Date(2024, month, day, hour, minute, second, 0, time.Local)
}

func sample(ts time.Time, count int) model.Sample {
	boxes := make([]model.Box, count)
	for i := range boxes {
		boxes[i] = model.Box{X1: float64(i), Y1: 1, X2: float64(i) + 10, Y2: 11, Confidence: 0.9}
	}
	return model.Sample{Timestamp: ts, Boxes: boxes}
}

func TestFormatLabel(t *testing.T) {
	tests := []struct {
		ts       time.Time
		count    int
		expected string
	}{
		{at(time.January, 2, 3, 4, 59), 1, "01/02 03:04, 1"},
		{at(time.December, 31, 23, 59, 0), 12, "12/31 23:59, 12"},
		{at(time.September, 1, 9, 0, 30), 3, "09/01 09:00, 3"},
	}

	for _, tt := range tests {
		if got := FormatLabel(tt.ts, tt.count); got != tt.expected {
			t.Errorf("FormatLabel(%v, %d) = %q, expected %q", tt.ts, tt.count, got, tt.expected)
		}
	}
}

func TestParseLabel(t *testing.T) {
	ts, count, err := ParseLabel("09/01 09:05, 3", 2024, time.Local)
	if err != nil {
		t.Fatalf("ParseLabel failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected count 3, got %d", count)
	}
	if !ts.Equal(at(time.September, 1, 9, 5, 0)) {
		t.Errorf("Unexpected time %v", ts)
	}

	for _, bad := range []string{"", "09/01 09:05", "09/01 09:05, x", "13/01 09:05, 1", "09/01 09:05, -1"} {
		if _, _, err := ParseLabel(bad, 2024, time.Local); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestProcess_SameMinuteDifferentCounts(t *testing.T) {
	l := New(PolicyCountChange)

	effects := []Effects{
		l.Process(sample(at(time.September, 1, 9, 0, 1), 1)),
		l.Process(sample(at(time.September, 1, 9, 0, 2), 1)),
		l.Process(sample(at(time.September, 1, 9, 0, 3), 2)),
	}

	expected := []string{"09/01 09:00, 1", "09/01 09:00, 2"}
	if got := l.Labels(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("Labels = %v, expected %v", got, expected)
	}

	fired := 0
	for _, e := range effects {
		if !e.Empty() {
			fired++
		}
	}
	if fired != 2 {
		t.Errorf("Expected 2 side effects, got %d", fired)
	}
	if effects[1].Record != nil {
		t.Error("Repeated count should not produce a record")
	}
	if effects[2].Notify != 2 || effects[2].Snapshot == "" {
		t.Errorf("Unexpected effects for count change: %+v", effects[2])
	}
}

func TestProcess_SameCountNextMinuteIsNoop(t *testing.T) {
	l := New(PolicyCountChange)

	l.Process(sample(at(time.May, 4, 10, 14, 0), 0))
	first := l.Process(sample(at(time.May, 4, 10, 15, 0), 3))
	second := l.Process(sample(at(time.May, 4, 10, 16, 0), 3))

	if first.Empty() {
		t.Fatal("First non-zero sample should be logged")
	}
	if !second.Empty() {
		t.Errorf("Unchanged count should not be logged, got %+v", second)
	}
	if got := l.Labels(); !reflect.DeepEqual(got, []string{"05/04 10:15, 3"}) {
		t.Errorf("Unexpected labels %v", got)
	}
}

func TestProcess_UnchangedCountNeverLogs(t *testing.T) {
	l := New(PolicyCountChange)
	start := at(time.March, 3, 8, 0, 0)

	l.Process(sample(start, 2))
	for i := 1; i < 120; i++ {
		if e := l.Process(sample(start.Add(time.Duration(i)*time.Minute), 2)); !e.Empty() {
			t.Fatalf("Sample %d with unchanged count produced a record", i)
		}
	}
	if l.Len() != 1 {
		t.Errorf("Expected 1 record, got %d", l.Len())
	}
}

func TestProcess_ZeroResetsLastCount(t *testing.T) {
	l := New(PolicyCountChange)

	l.Process(sample(at(time.June, 1, 12, 0, 0), 2))
	if l.LastCount() != 2 {
		t.Fatalf("Expected last count 2, got %d", l.LastCount())
	}
	l.Process(sample(at(time.June, 1, 12, 1, 0), 0))
	if l.LastCount() != 0 {
		t.Fatalf("Expected last count reset to 0, got %d", l.LastCount())
	}

	e := l.Process(sample(at(time.June, 1, 12, 2, 0), 2))
	if e.Empty() {
		t.Error("Same count after a zero frame should be treated as a change")
	}
	if l.Len() != 2 {
		t.Errorf("Expected 2 records, got %d", l.Len())
	}
}

func TestProcess_SeenLabelIsIdempotent(t *testing.T) {
	l := New(PolicyCountChange)
	ts := at(time.July, 7, 7, 7, 0)

	l.Process(sample(ts, 1))
	l.Process(sample(ts.Add(time.Second), 0))
	again := l.Process(sample(ts.Add(2*time.Second), 1))

	if !again.Empty() {
		t.Error("Already logged label should not be logged twice")
	}
	if l.Len() != 1 {
		t.Errorf("Expected 1 record, got %d", l.Len())
	}
	// The label check runs before LastCount is updated.
	if l.LastCount() != 0 {
		t.Errorf("Expected last count to stay 0, got %d", l.LastCount())
	}
}

func TestProcess_TransitionsAtDistinctMinutes(t *testing.T) {
	l := New(PolicyCountChange)
	start := at(time.August, 8, 20, 0, 0)

	events := 0
	for i := 0; i < 10; i++ {
		ts := start.Add(time.Duration(i) * time.Minute)
		if !l.Process(sample(ts, 0)).Empty() {
			t.Fatal("Zero sample produced a record")
		}
		if !l.Process(sample(ts.Add(time.Second), i%3+1)).Empty() {
			events++
		}
	}
	if events != 10 || l.Len() != 10 {
		t.Errorf("Expected 10 events and records, got %d and %d", events, l.Len())
	}
}

func TestProcess_NewLabelPolicy(t *testing.T) {
	l := New(PolicyNewLabel)

	l.Process(sample(at(time.May, 4, 10, 15, 0), 3))
	e := l.Process(sample(at(time.May, 4, 10, 16, 0), 3))
	dup := l.Process(sample(at(time.May, 4, 10, 16, 30), 3))

	if e.Empty() {
		t.Error("New label should be logged regardless of unchanged count")
	}
	if !dup.Empty() {
		t.Error("Seen label should not be logged")
	}
	expected := []string{"05/04 10:15, 3", "05/04 10:16, 3"}
	if got := l.Labels(); !reflect.DeepEqual(got, expected) {
		t.Errorf("Labels = %v, expected %v", got, expected)
	}
}

func TestProcess_SnapshotName(t *testing.T) {
	l := New(PolicyCountChange)
	ts := time.Unix(1700000123, 0)

	e := l.Process(sample(ts, 1))
	if e.Snapshot != "1700000123.jpg" {
		t.Errorf("Unexpected snapshot name %q", e.Snapshot)
	}
	if e.Record.Timestamp.Second() != 0 {
		t.Errorf("Record timestamp should be truncated to the minute, got %v", e.Record.Timestamp)
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy("new-label"); err != nil || p != PolicyNewLabel {
		t.Errorf("ParsePolicy(new-label) = %v, %v", p, err)
	}
	if p, err := ParsePolicy(""); err != nil || p != PolicyCountChange {
		t.Errorf("ParsePolicy(\"\") = %v, %v", p, err)
	}
	if _, err := ParsePolicy("sometimes"); err == nil {
		t.Error("Expected error for unknown policy")
	}
}

type memoryWriter struct {
	written [][]string
	err     error
}

func (m *memoryWriter) WriteRecords(labels []string) error {
	if m.err != nil {
		return m.err
	}
	m.written = append(m.written, append([]string(nil), labels...))
	return nil
}

func (m *memoryWriter) Name() string { return "record.csv" }

func TestFlush_Banner(t *testing.T) {
	l := New(PolicyCountChange)
	l.Process(sample(at(time.September, 1, 9, 0, 0), 1))
	l.Process(sample(at(time.September, 1, 9, 0, 1), 2))

	var out bytes.Buffer
	w := &memoryWriter{}
	if err := Flush(l, w, &out); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	expected := strings.Join([]string{
		Banner,
		"09/01 09:00, 1",
		"09/01 09:00, 2",
		"Saving...",
		"Saved as record.csv",
		Banner,
		"",
	}, "\n")
	if out.String() != expected {
		t.Errorf("Unexpected report:\n%s\nexpected:\n%s", out.String(), expected)
	}

	// Flushing again rewrites the full log.
	if err := Flush(l, w, &out); err != nil {
		t.Fatalf("Second flush failed: %v", err)
	}
	if len(w.written) != 2 || len(w.written[1]) != 2 {
		t.Errorf("Expected two full writes, got %v", w.written)
	}
	if l.Len() != 2 {
		t.Error("Flush must not clear the log")
	}
}

func TestFlush_Empty(t *testing.T) {
	var out bytes.Buffer
	w := &memoryWriter{}
	if err := Flush(New(PolicyCountChange), w, &out); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if !strings.Contains(out.String(), NoDetection) {
		t.Errorf("Expected no-detection marker, got %q", out.String())
	}
	if len(w.written) != 1 || len(w.written[0]) != 0 {
		t.Errorf("Expected one empty write, got %v", w.written)
	}
}

func TestFlush_WriteError(t *testing.T) {
	boom := errors.New("disk full")
	var out bytes.Buffer
	err := Flush(New(PolicyCountChange), &memoryWriter{err: boom}, &out)
	if !errors.Is(err, boom) {
		t.Fatalf("Expected wrapped write error, got %v", err)
	}
	if strings.Contains(out.String(), "Saved as") {
		t.Errorf("Failed flush must not report success: %q", out.String())
	}
}

func TestHourWatch(t *testing.T) {
	start := at(time.October, 1, 9, 59, 0)
	h := NewHourWatch(start)

	if h.Due(start.Add(30 * time.Second)) {
		t.Error("Same hour should not be due")
	}
	next := start.Add(time.Minute)
	if !h.Due(next) {
		t.Error("Next hour should be due")
	}
	h.Mark(next)
	if h.Due(next.Add(time.Minute)) {
		t.Error("Marked hour should not be due again")
	}
	if !h.Due(next.Add(24 * time.Hour)) {
		t.Error("Same hour on another day should be due")
	}
}
