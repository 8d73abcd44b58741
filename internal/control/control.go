// Package control turns operator input into events for the processing loop.
package control

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"unicode"
)

// Kind is the operator request carried by an Event.
type Kind int

const (
	// Flush prints the session report and writes the record file.
	Flush Kind = iota
	// Stop ends the processing loop after a final flush.
	Stop
)

func (k Kind) String() string {
	switch k {
	case Flush:
		return "flush"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

// Event is delivered to the goroutine that owns the session log.
type Event struct {
	Kind   Kind
	Source string // "keyboard", "http", "signal"
}

// Send enqueues ev without blocking. It reports false when the queue is full.
func Send(events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	default:
		return false
	}
}

// KeyReader maps two configured keys to Flush and Stop.
type KeyReader struct {
	flushKey string
	stopKey  string
}

func NewKeyReader(flushKey, stopKey string) *KeyReader {
	return &KeyReader{
		flushKey: strings.ToLower(flushKey),
		stopKey:  strings.ToLower(stopKey),
	}
}

// Match returns the event kind bound to key.
func (k *KeyReader) Match(key string) (Kind, bool) {
	switch strings.ToLower(key) {
	case k.flushKey:
		return Flush, true
	case k.stopKey:
		return Stop, true
	default:
		return 0, false
	}
}

// Run reads keys from r until EOF or ctx is done and forwards matches to
// events. Whitespace and unbound keys are ignored. A Stop key ends Run.
// Terminals deliver input line by line, so "q<Enter>" is one keypress.
func (k *KeyReader) Run(ctx context.Context, r io.Reader, events chan<- Event) error {
	reader := bufio.NewReader(r)
	for {
		ch, _, err := reader.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if unicode.IsSpace(ch) {
			continue
		}

		kind, ok := k.Match(string(ch))
		if !ok {
			continue
		}

		select {
		case events <- Event{Kind: kind, Source: "keyboard"}:
		case <-ctx.Done():
			return ctx.Err()
		}
		if kind == Stop {
			return nil
		}
	}
}
