package alert

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSinkWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "alerts.log")

	sink, err := NewSink(path)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}

	sink.Failure("scheduled-backup", errors.New("upload failed"), map[string]any{
		"db_path": "/data/live.db",
	})
	sink.Notice("retention", "listing failed", nil)

	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read alerts file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 alert lines, got %d", len(lines))
	}

	var failure map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &failure); err != nil {
		t.Fatalf("first line is not JSON: %v", err)
	}
	if failure["operation"] != "scheduled-backup" {
		t.Errorf("unexpected operation %v", failure["operation"])
	}
	if failure["error"] != "upload failed" {
		t.Errorf("unexpected error field %v", failure["error"])
	}
	if failure["db_path"] != "/data/live.db" {
		t.Errorf("unexpected db_path %v", failure["db_path"])
	}

	var notice map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &notice); err != nil {
		t.Fatalf("second line is not JSON: %v", err)
	}
	if notice["operation"] != "retention" {
		t.Errorf("unexpected operation %v", notice["operation"])
	}
}

func TestSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.log")

	first, err := NewSink(path)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	first.Failure("scheduled-backup", errors.New("one"), nil)
	first.Close()

	second, err := NewSink(path)
	if err != nil {
		t.Fatalf("reopen sink: %v", err)
	}
	second.Failure("scheduled-backup", errors.New("two"), nil)
	second.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read alerts file: %v", err)
	}
	if got := strings.Count(string(data), "\n"); got != 2 {
		t.Errorf("expected 2 lines after reopen, got %d", got)
	}
}

func TestDiscardSink(t *testing.T) {
	sink := NewDiscardSink()
	sink.Failure("scheduled-backup", errors.New("dropped"), nil)
	if err := sink.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
