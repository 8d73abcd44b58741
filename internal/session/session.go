// Package session holds the in-memory detection log of one run and decides
// which processed frames become logged detection events.
package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"trashdetector/internal/model"
)

// labelLayout renders the "MM/DD HH:MM" part of a label.
const labelLayout = "01/02 15:04"

// Policy selects when a non-zero sample produces a record.
type Policy int

const (
	// PolicyCountChange logs only when the count differs from the last
	// non-zero count and the label has not been logged yet.
	PolicyCountChange Policy = iota
	// PolicyNewLabel logs whenever the label has not been logged yet.
	PolicyNewLabel
)

func (p Policy) String() string {
	switch p {
	case PolicyCountChange:
		return "count-change"
	case PolicyNewLabel:
		return "new-label"
	default:
		return "unknown"
	}
}

// ParsePolicy maps a DEDUP_POLICY value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "count-change":
		return PolicyCountChange, nil
	case "new-label":
		return PolicyNewLabel, nil
	default:
		return PolicyCountChange, fmt.Errorf("unknown dedup policy %q", s)
	}
}

// FormatLabel renders "MM/DD HH:MM, <count>" in t's location.
func FormatLabel(t time.Time, count int) string {
	return t.Format(labelLayout) + ", " + strconv.Itoa(count)
}

// ParseLabel is the inverse of FormatLabel. Labels carry no year, so the
// caller supplies it.
func ParseLabel(label string, year int, loc *time.Location) (time.Time, int, error) {
	stamp, countText, ok := strings.Cut(label, ", ")
	if !ok {
		return time.Time{}, 0, fmt.Errorf("label %q: missing count separator", label)
	}
	count, err := strconv.Atoi(countText)
	if err != nil || count < 0 {
		return time.Time{}, 0, fmt.Errorf("label %q: invalid count %q", label, countText)
	}
	t, err := time.ParseInLocation(labelLayout, stamp, loc)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("label %q: %w", label, err)
	}
	return time.Date(year, t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, loc), count, nil
}

// SnapshotName is the image file name for a record logged at t.
func SnapshotName(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10) + ".jpg"
}

// Effects is what the caller must do after Process. A zero Effects means
// nothing was logged.
type Effects struct {
	Record   *model.Record
	Snapshot string // file name for the annotated frame
	Notify   int    // object count to announce
}

// Empty reports whether Process logged nothing.
func (e Effects) Empty() bool {
	return e.Record == nil
}

// Log is not safe for concurrent use; one goroutine owns it.
type Log struct {
	policy    Policy
	records   []model.Record
	seen      map[string]struct{}
	lastCount int
}

func New(policy Policy) *Log {
	return &Log{
		policy: policy,
		seen:   make(map[string]struct{}),
	}
}

// Process consumes one processed frame and returns the side effects to run.
func (l *Log) Process(sample model.Sample) Effects {
	count := sample.Count()
	if count == 0 {
		l.lastCount = 0
		return Effects{}
	}

	if l.policy == PolicyCountChange && count == l.lastCount {
		return Effects{}
	}

	label := FormatLabel(sample.Timestamp, count)
	if _, ok := l.seen[label]; ok {
		return Effects{}
	}

	record := model.Record{
		Label:     label,
		Count:     count,
		Timestamp: sample.Timestamp.Truncate(time.Minute),
	}
	l.records = append(l.records, record)
	l.seen[label] = struct{}{}
	l.lastCount = count

	return Effects{
		Record:   &record,
		Snapshot: SnapshotName(sample.Timestamp),
		Notify:   count,
	}
}

// Records returns a copy of the log in insertion order.
func (l *Log) Records() []model.Record {
	out := make([]model.Record, len(l.records))
	copy(out, l.records)
	return out
}

// Labels returns the record labels in insertion order.
func (l *Log) Labels() []string {
	labels := make([]string, len(l.records))
	for i, r := range l.records {
		labels[i] = r.Label
	}
	return labels
}

func (l *Log) Len() int {
	return len(l.records)
}

// LastCount is the count of the latest logged record, or 0 after an empty frame.
func (l *Log) LastCount() int {
	return l.lastCount
}

func (l *Log) Policy() Policy {
	return l.policy
}
