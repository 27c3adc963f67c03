package log

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type mockLogger struct {
	mu     sync.Mutex
	events []Event
}

func (m *mockLogger) Log(event Event) {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
}

func TestNoopLogger(t *testing.T) {
	var l Logger = NoopLogger{}
	l.Log(Event{})

	var zero NoopLogger
	zero.Log(Event{Message: &MessageEvent{}})
}

func TestMultiLoggerCallsAll(t *testing.T) {
	a, b := &mockLogger{}, &mockLogger{}
	m := NewMultiLogger(a, b)
	m.Log(Event{ConnectionID: "c1"})

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("events = %d, %d; want 1, 1", len(a.events), len(b.events))
	}
	if b.events[0].ConnectionID != "c1" {
		t.Errorf("ConnectionID = %q", b.events[0].ConnectionID)
	}

	NewMultiLogger().Log(Event{})
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.rlog")

	l, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.Log(Event{Timestamp: time.Now(), ConnectionID: "c", Message: &MessageEvent{MessageID: i}})
		}(i)
	}
	wg.Wait()

	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	l.Log(Event{ConnectionID: "after-close"})
	if got := l.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}

	// Reopen appends.
	l2, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger reopen failed: %v", err)
	}
	l2.Log(Event{ConnectionID: "second"})
	_ = l2.Close()

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	count := 0
	last := ""
	for {
		ev, err := r.Next()
		if err != nil {
			break
		}
		count++
		last = ev.ConnectionID
	}
	if count != 11 {
		t.Errorf("read %d events, want 11", count)
	}
	if last != "second" {
		t.Errorf("last ConnectionID = %q, want second", last)
	}
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	a := NewSlogAdapter(logger)

	a.Log(Event{
		ConnectionID: "conn-9",
		ServiceID:    "webOS TV",
		Message: &MessageEvent{
			Type:      MessageTypeRequest,
			MessageID: 3,
			URI:       "ssap://audio/setVolume",
		},
	})

	out := buf.String()
	for _, want := range []string{"conn_id=conn-9", "service_id=\"webOS TV\"", "msg_id=3", "msg_type=REQUEST", "uri=ssap://audio/setVolume"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}

	buf.Reset()
	a.Log(Event{StateChange: &StateChangeEvent{Entity: StateEntitySession, NewState: "REGISTERED"}})
	if !strings.Contains(buf.String(), "new_state=REGISTERED") {
		t.Errorf("state output = %s", buf.String())
	}
}

func TestReaderFilters(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "filter.rlog")
	l, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	in := DirectionIn
	l.Log(Event{Timestamp: base, ConnectionID: "a", Direction: DirectionOut, Message: &MessageEvent{URI: "ssap://audio/setVolume"}})
	l.Log(Event{Timestamp: base.Add(time.Second), ConnectionID: "a", Direction: DirectionIn, Message: &MessageEvent{Type: MessageTypeResponse}})
	l.Log(Event{Timestamp: base.Add(2 * time.Second), ConnectionID: "b", ServiceID: "webOS TV", Direction: DirectionIn, Layer: LayerService})
	_ = l.Close()

	layer := LayerService
	start := base.Add(500 * time.Millisecond)
	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"All", Filter{}, 3},
		{"Connection", Filter{ConnectionID: "a"}, 2},
		{"Direction", Filter{Direction: &in}, 2},
		{"Layer", Filter{Layer: &layer}, 1},
		{"ServiceID", Filter{ServiceID: "webOS TV"}, 1},
		{"URI", Filter{URI: "ssap://audio/setVolume"}, 1},
		{"TimeStart", Filter{TimeStart: &start}, 2},
		{"Combined", Filter{ConnectionID: "a", Direction: &in}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewFilteredReader(path, tt.filter)
			if err != nil {
				t.Fatalf("NewFilteredReader failed: %v", err)
			}
			defer r.Close()
			got := 0
			for {
				if _, err := r.Next(); err != nil {
					break
				}
				got++
			}
			if got != tt.want {
				t.Errorf("got %d events, want %d", got, tt.want)
			}
		})
	}
}

func TestSlogAdapterLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	NewSlogAdapter(logger).Log(Event{ConnectionID: "quiet"})
	if buf.Len() != 0 {
		t.Fatalf("debug event written at info level: %s", buf.String())
	}

	NewSlogAdapter(logger).WithLevel(slog.LevelInfo).Log(Event{ConnectionID: "loud"})
	if !strings.Contains(buf.String(), "conn_id=loud") {
		t.Errorf("output = %s", buf.String())
	}
}

func TestLoggerFunc(t *testing.T) {
	var got []string
	m := NewMultiLogger(nil, LoggerFunc(func(e Event) { got = append(got, e.ConnectionID) }))
	m.Log(Event{ConnectionID: "x"})
	if len(m) != 1 || len(got) != 1 || got[0] != "x" {
		t.Errorf("len(m) = %d, got = %v", len(m), got)
	}
}

func TestReaderAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "all.rlog")
	l, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	for _, id := range []string{"a", "b", "c"} {
		l.Log(Event{ConnectionID: id})
	}
	_ = l.Close()

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	var ids []string
	for e, err := range r.All() {
		if err != nil {
			t.Fatalf("All: %v", err)
		}
		ids = append(ids, e.ConnectionID)
		if e.ConnectionID == "b" {
			break
		}
	}
	if strings.Join(ids, ",") != "a,b" {
		t.Errorf("ids = %v", ids)
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "nope.rlog")); !os.IsNotExist(err) {
		t.Errorf("NewReader error = %v, want not-exist", err)
	}
}
