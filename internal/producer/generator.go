// Package producer writes test events into the unordered queue.
package producer

import (
	"bufio"
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ibs-source/resequencer/internal/event"
)

// Generator creates random events whose timestamps are jittered backwards
// into a window, so consecutive events arrive out of order.
type Generator struct {
	rng      *rand.Rand
	window   time.Duration
	sources  int
	now      func() time.Time
	sequence map[int64]int64
}

// NewGenerator creates a generator over sources machines. A zero seed picks
// one from the clock.
func NewGenerator(seed int64, window time.Duration, sources int, now func() time.Time) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if sources < 1 {
		sources = 1
	}
	if now == nil {
		now = time.Now
	}
	return &Generator{
		rng:      rand.New(rand.NewSource(seed)), // #nosec G404 - test data only
		window:   window,
		sources:  sources,
		now:      now,
		sequence: make(map[int64]int64),
	}
}

// Next returns a new event. Sequences increase per source.
func (g *Generator) Next() event.Event {
	source := int64(g.rng.Intn(g.sources)) + 1
	ts := g.now().UnixMilli()
	if w := g.window.Milliseconds(); w > 0 {
		ts -= g.rng.Int63n(w + 1)
	}
	seq := g.sequence[source]
	g.sequence[source] = seq + 1

	return event.Event{
		Timestamp: ts,
		Sequence:  seq,
		Ack:       g.rng.Intn(10) == 0,
		SourceID:  source,
		Payload:   []byte(uuid.NewString()),
	}
}

// LoadFile reads one encoded event per line. Blank lines are skipped.
func LoadFile(path string) ([]event.Event, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var events []event.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		e, err := event.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input file: %w", err)
	}
	return events, nil
}

// WriteFile writes events to path, one encoded event per line.
func WriteFile(path string, events []event.Event) error {
	var buf bytes.Buffer
	for _, e := range events {
		buf.Write(event.Encode(e))
		buf.WriteByte('\n')
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}
