package commands

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rendercast/rendercast-go/pkg/log"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.rlog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

// sessionEvents is a short volume exchange with the TV.
func sessionEvents() []log.Event {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	latency := 42 * time.Millisecond
	code := 1000
	return []log.Event{
		{
			Timestamp:    ts,
			ConnectionID: "conn-1234-5678",
			Direction:    log.DirectionOut,
			Layer:        log.LayerWire,
			Category:     log.CategoryMessage,
			RemoteAddr:   "192.168.1.20:3001",
			DeviceID:     "dev-1",
			ServiceID:    "webOS TV",
			Message: &log.MessageEvent{
				Type:      log.MessageTypeRequest,
				MessageID: 7,
				URI:       "ssap://audio/setVolume",
				Payload:   map[string]any{"volume": 50},
			},
		},
		{
			Timestamp:    ts.Add(latency),
			ConnectionID: "conn-1234-5678",
			Direction:    log.DirectionIn,
			Layer:        log.LayerWire,
			Category:     log.CategoryMessage,
			Message: &log.MessageEvent{
				Type:      log.MessageTypeResponse,
				MessageID: 7,
				URI:       "ssap://audio/setVolume",
				Payload:   map[string]any{"returnValue": true},
				Latency:   &latency,
			},
		},
		{
			Timestamp:    ts.Add(time.Second),
			ConnectionID: "conn-1234-5678",
			Direction:    log.DirectionIn,
			Layer:        log.LayerWire,
			Category:     log.CategoryMessage,
			Message: &log.MessageEvent{
				Type:      log.MessageTypeError,
				MessageID: 8,
				URI:       "ssap://system/turnOff",
				ErrorText: "401 insufficient permissions",
			},
		},
		{
			Timestamp:    ts.Add(2 * time.Second),
			ConnectionID: "conn-1234-5678",
			Direction:    log.DirectionOut,
			Layer:        log.LayerService,
			Category:     log.CategoryState,
			StateChange: &log.StateChangeEvent{
				Entity:   log.StateEntitySession,
				OldState: "REGISTERED",
				NewState: "DISCONNECTED",
				Reason:   "user request",
			},
		},
		{
			Timestamp:    ts.Add(3 * time.Second),
			ConnectionID: "conn-1234-5678",
			Direction:    log.DirectionOut,
			Layer:        log.LayerTransport,
			Category:     log.CategoryControl,
			ControlMsg:   &log.ControlMsgEvent{Type: log.ControlMsgClose, CloseCode: &code},
		},
	}
}

func TestRunView(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"2026-01-28T10:15:32.123456Z [conn:conn-123] OUT WIRE REQUEST",
		"Peer: 192.168.1.20:3001 webOS TV",
		"URI: ssap://audio/setVolume",
		`Payload: {"volume":50}`,
		"Latency: 42.000ms",
		"Error: 401 insufficient permissions",
		"REGISTERED -> DISCONNECTED",
		"Reason: user request",
		"OUT CTRL CLOSE",
		"CloseCode: 1000",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q\n%s", want, output)
		}
	}
}

func TestRunViewFilters(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	dir := log.DirectionIn
	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{Direction: &dir}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	if got := strings.Count(buf.String(), "[conn:"); got != 2 {
		t.Errorf("expected 2 inbound events, got %d", got)
	}

	buf.Reset()
	if err := RunView(path, ViewFilter{URI: "ssap://system/turnOff"}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	if got := strings.Count(buf.String(), "[conn:"); got != 1 {
		t.Errorf("expected 1 turnOff event, got %d", got)
	}
}

func TestParseFlags(t *testing.T) {
	if l, err := ParseLayerFlag("WIRE"); err != nil || l != log.LayerWire {
		t.Errorf("ParseLayerFlag(WIRE) = %v, %v", l, err)
	}
	if _, err := ParseLayerFlag("session"); err == nil {
		t.Error("expected error for unknown layer")
	}
	if d, err := ParseDirectionFlag("out"); err != nil || d != log.DirectionOut {
		t.Errorf("ParseDirectionFlag(out) = %v, %v", d, err)
	}
	if _, err := ParseDirectionFlag("sideways"); err == nil {
		t.Error("expected error for unknown direction")
	}
	if c, err := ParseCategoryFlag("Control"); err != nil || c != log.CategoryControl {
		t.Errorf("ParseCategoryFlag(Control) = %v, %v", c, err)
	}
	if _, err := ParseCategoryFlag("snapshot"); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestExportToJSONL(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	out := filepath.Join(t.TempDir(), "out.jsonl")

	if err := RunExport(path, "jsonl", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	var lines int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("line %d is not JSON: %v", lines+1, err)
		}
		lines++
	}
	if lines != 5 {
		t.Errorf("expected 5 lines, got %d", lines)
	}
}

func TestExportToCSV(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	out := filepath.Join(t.TempDir(), "out.csv")

	if err := RunExport(path, "csv", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("expected header + 5 rows, got %d", len(rows))
	}
	if rows[0][6] != "service_id" || rows[0][9] != "uri" {
		t.Errorf("unexpected header %v", rows[0])
	}
	first := rows[1]
	if first[6] != "webOS TV" || first[7] != "REQUEST" || first[8] != "7" || first[9] != "ssap://audio/setVolume" {
		t.Errorf("unexpected first row %v", first)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	if err := RunExport(path, "xml", ""); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRunFilter(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())
	out := filepath.Join(t.TempDir(), "filtered.rlog")

	var buf bytes.Buffer
	opts := FilterOptions{Output: out, Layer: "wire", Direction: "in"}
	if err := RunFilter(path, opts, &buf); err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Filtered 2 events") {
		t.Errorf("unexpected summary %q", buf.String())
	}

	reader, err := log.NewReader(out)
	if err != nil {
		t.Fatalf("open filtered: %v", err)
	}
	defer reader.Close()
	var n int
	for {
		e, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read filtered: %v", err)
		}
		if e.Direction != log.DirectionIn || e.Layer != log.LayerWire {
			t.Errorf("unexpected event %+v", e)
		}
		n++
	}
	if n != 2 {
		t.Errorf("expected 2 events, got %d", n)
	}
}

func TestFilterOptionsBuildErrors(t *testing.T) {
	tests := []FilterOptions{
		{TimeStart: "yesterday"},
		{TimeEnd: "2026-13-01"},
		{Layer: "session"},
		{Direction: "up"},
		{Category: "misc"},
	}
	for _, opts := range tests {
		if _, err := opts.Build(); err == nil {
			t.Errorf("Build(%+v) expected error", opts)
		}
	}

	f, err := FilterOptions{TimeStart: "2026-01-28T10:00:00Z", ServiceID: "webOS TV"}.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if f.TimeStart == nil || f.ServiceID != "webOS TV" {
		t.Errorf("unexpected filter %+v", f)
	}
}

func TestRunStats(t *testing.T) {
	path := createTestLogFile(t, sessionEvents())

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"Total Events: 5",
		"WIRE:",
		"SERVICE:",
		"TRANSPORT:",
		"CONTROL:",
		"ssap://audio/setVolume: 1 sent, 0 failed, avg 42.000ms, max 42.000ms",
		"ssap://system/turnOff: 0 sent, 1 failed",
		"Connections: 1",
		"Peer: 192.168.1.20:3001",
		"Service: webOS TV",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q\n%s", want, output)
		}
	}
}

func TestRunStatsEmptyFile(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Errorf("unexpected output %q", buf.String())
	}
}
