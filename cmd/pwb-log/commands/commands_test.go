package commands

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/powerbridge/pwb-go/pkg/log"
	"github.com/powerbridge/pwb-go/pkg/wire"
)

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.plog")

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

func sampleEvents() []log.Event {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	op := wire.OpWrite
	abort := wire.AbortValueTooHigh
	elapsed := 1500 * time.Microsecond
	code := 52
	return []log.Event{
		{
			Timestamp:    ts,
			ConnectionID: "conn-aaaa-bbbb",
			Direction:    log.DirectionOut,
			Layer:        log.LayerSDO,
			Category:     log.CategoryMessage,
			Node:         1,
			Message: &log.MessageEvent{
				Type: log.MessageTypeRequest, MessageID: 7, Operation: &op,
				Index: 0x2404, SubIndex: 0, Data: []byte{0x02},
			},
		},
		{
			Timestamp:    ts.Add(2 * time.Millisecond),
			ConnectionID: "conn-aaaa-bbbb",
			Direction:    log.DirectionIn,
			Layer:        log.LayerSDO,
			Category:     log.CategoryMessage,
			Node:         1,
			Message: &log.MessageEvent{
				Type: log.MessageTypeResponse, MessageID: 7,
				Index: 0x2404, Abort: &abort, ProcessingTime: &elapsed,
			},
		},
		{
			Timestamp: ts.Add(time.Second),
			Layer:     log.LayerUpdate,
			Category:  log.CategoryProgress,
			LocalRole: log.RoleController,
			Node:      1,
			Update:    &log.UpdateEvent{RunID: "run-1234-5678", Phase: "data", Image: 1, BytesSent: 8, BytesTotal: 16},
		},
		{
			Timestamp: ts.Add(2 * time.Second),
			Layer:     log.LayerUpdate,
			Category:  log.CategoryError,
			Node:      1,
			Error:     &log.ErrorEventData{Layer: log.LayerUpdate, Message: "write failure", Code: &code},
		},
	}
}

func TestViewFormatsEvents(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunView(path, log.Filter{}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"2026-01-28T10:15:32.123456Z [conn:conn-aaa] OUT SDO REQUEST node=1",
		"Operation: " + wire.OpWrite.String(),
		"Object: 0x2404:00",
		"Abort: " + wire.AbortValueTooHigh.String(),
		"Duration: 1.500ms",
		"[conn:-]",
		"Phase: data  Image: 1",
		"Bytes: 8/16",
		"Code: 52",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestViewFilter(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	f, err := ViewOptions{Layer: "update", Category: "error"}.Filter()
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := RunView(path, f, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	out := buf.String()
	if strings.Count(out, "UPDATE Error") != 1 {
		t.Errorf("expected one error event:\n%s", out)
	}
	if strings.Contains(out, "SDO") {
		t.Errorf("SDO events not filtered:\n%s", out)
	}

	f, err = ViewOptions{Index: "0x2404", Direction: "in"}.Filter()
	if err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	if err := RunView(path, f, &buf); err != nil {
		t.Fatal(err)
	}
	if strings.Count(buf.String(), "RESPONSE") != 1 || strings.Contains(buf.String(), "REQUEST") {
		t.Errorf("index filter:\n%s", buf.String())
	}
}

func TestViewOptionsInvalid(t *testing.T) {
	for _, o := range []ViewOptions{
		{Layer: "wire"},
		{Direction: "sideways"},
		{Category: "control"},
		{Node: 200},
		{Index: "zz"},
		{TimeStart: "yesterday"},
	} {
		if _, err := o.Filter(); err == nil {
			t.Errorf("%+v: expected error", o)
		}
	}
}

func TestStats(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Total Events: 4",
		"SDO:         2",
		"UPDATE:      2",
		"PROGRESS:    1",
		"0x2404:      1",
		wire.AbortValueTooHigh.String() + ": 1",
		"Connections: 1",
		"[conn-aaa] 2 events, duration 2ms",
		"Update Runs: 1",
		"[run-1234] data",
		"Errors: 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestExportCSV(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "out.csv")

	if err := RunExport(path, "csv", out, log.Filter{}); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 5 {
		t.Fatalf("got %d rows, want header + 4", len(rows))
	}
	if rows[1][6] != "REQUEST" || rows[1][8] != "0x2404" || rows[1][11] != "02" {
		t.Errorf("request row: %v", rows[1])
	}
	if rows[2][10] != wire.AbortValueTooHigh.String() {
		t.Errorf("response row: %v", rows[2])
	}
	if rows[3][6] != "progress" || rows[3][11] != "data" {
		t.Errorf("progress row: %v", rows[3])
	}
}

func TestExportJSONL(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "out.jsonl")

	f, err := ViewOptions{Layer: "sdo"}.Filter()
	if err != nil {
		t.Fatal(err)
	}
	if err := RunExport(path, "jsonl", out, f); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 2 {
		t.Errorf("got %d lines, want 2", lines)
	}
	if err := RunExport(path, "xml", out, log.Filter{}); err == nil {
		t.Error("expected unknown format error")
	}
}
