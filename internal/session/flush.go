package session

import (
	"fmt"
	"io"
	"time"
)

const (
	Banner      = "--- Detections Until Now ---"
	NoDetection = "------- No Detection -------"
)

// RecordWriter persists the full label list, replacing any earlier content.
type RecordWriter interface {
	WriteRecords(labels []string) error
	Name() string
}

// Flush writes every label of l through w and prints the report banner to
// out. The log is left intact, so later flushes rewrite the whole run.
func Flush(l *Log, w RecordWriter, out io.Writer) error {
	labels := l.Labels()

	fmt.Fprintln(out, Banner)
	if len(labels) == 0 {
		fmt.Fprintln(out, NoDetection)
	}
	for _, label := range labels {
		fmt.Fprintln(out, label)
	}
	fmt.Fprintln(out, "Saving...")

	if err := w.WriteRecords(labels); err != nil {
		fmt.Fprintf(out, "Failed to save %s: %v\n", w.Name(), err)
		fmt.Fprintln(out, Banner)
		return fmt.Errorf("flush %s: %w", w.Name(), err)
	}

	fmt.Fprintf(out, "Saved as %s\n", w.Name())
	fmt.Fprintln(out, Banner)
	return nil
}

// HourWatch fires once each time the wall-clock hour changes.
type HourWatch struct {
	hour int
	day  int
}

func NewHourWatch(now time.Time) *HourWatch {
	return &HourWatch{hour: now.Hour(), day: now.YearDay()}
}

// Due reports whether now is in a different hour than the last mark.
func (h *HourWatch) Due(now time.Time) bool {
	return now.Hour() != h.hour || now.YearDay() != h.day
}

// Mark records now as the current hour. Callers mark after every
// boundary flush, including flushes of an empty log.
func (h *HourWatch) Mark(now time.Time) {
	h.hour = now.Hour()
	h.day = now.YearDay()
}
