package logging

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestRingBufferChronologicalOrder(t *testing.T) {
	rb := NewRingBuffer(5)

	for i := 0; i < 3; i++ {
		rb.Write(LogEntry{Message: fmt.Sprintf("entry %d", i)})
	}

	entries := rb.ReadAll()
	if len(entries) != 3 {
		t.Fatalf("ReadAll returned %d entries, want 3", len(entries))
	}
	for i, entry := range entries {
		want := fmt.Sprintf("entry %d", i)
		if entry.Message != want {
			t.Errorf("entries[%d].Message = %q, want %q", i, entry.Message, want)
		}
	}
}

func TestRingBufferWrapAround(t *testing.T) {
	rb := NewRingBuffer(3)

	for i := 0; i < 5; i++ {
		rb.Write(LogEntry{Message: fmt.Sprintf("entry %d", i)})
	}

	if rb.Count() != 3 {
		t.Errorf("Count = %d, want 3", rb.Count())
	}

	entries := rb.ReadAll()
	if len(entries) != 3 {
		t.Fatalf("ReadAll returned %d entries, want 3", len(entries))
	}

	// Oldest entries were overwritten; entries 2..4 remain in order
	for i, entry := range entries {
		want := fmt.Sprintf("entry %d", i+2)
		if entry.Message != want {
			t.Errorf("entries[%d].Message = %q, want %q", i, entry.Message, want)
		}
	}
}

func TestRingBufferEmpty(t *testing.T) {
	rb := NewRingBuffer(4)

	if rb.Count() != 0 {
		t.Errorf("Count = %d, want 0", rb.Count())
	}
	if entries := rb.ReadAll(); entries != nil {
		t.Errorf("ReadAll = %v, want nil", entries)
	}
}

func TestFormatLogLine(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	entry := LogEntry{
		Timestamp: ts,
		Level:     "warn",
		Module:    "camera",
		Message:   "probe slow",
		Attributes: map[string]any{
			"device":  "/dev/video0",
			"elapsed": "2s",
		},
	}

	line := FormatLogLine(entry)

	if !strings.Contains(line, "[WARN]") {
		t.Errorf("line missing level: %s", line)
	}
	if !strings.Contains(line, "[camera]") {
		t.Errorf("line missing module: %s", line)
	}
	if !strings.Contains(line, "probe slow") {
		t.Errorf("line missing message: %s", line)
	}
	// Attributes sorted by key
	deviceIdx := strings.Index(line, "device=/dev/video0")
	elapsedIdx := strings.Index(line, "elapsed=2s")
	if deviceIdx == -1 || elapsedIdx == -1 {
		t.Fatalf("line missing attributes: %s", line)
	}
	if deviceIdx > elapsedIdx {
		t.Errorf("attributes not sorted by key: %s", line)
	}
}
