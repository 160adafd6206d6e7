package obs

import (
	"encoding/json"
	"testing"
)

func TestRequestLineStampsService(t *testing.T) {
	line := requestLine(map[string]any{"method": "GET", "path": "/healthz"})
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("not a JSON line: %v (%s)", err, line)
	}
	if entry["service"] != serviceLabel {
		t.Fatalf("service = %v, want %q", entry["service"], serviceLabel)
	}
	if entry["method"] != "GET" || entry["path"] != "/healthz" {
		t.Fatalf("caller fields lost: %v", entry)
	}
}

func TestRequestLineKeepsCallerService(t *testing.T) {
	line := requestLine(map[string]any{"service": "planhub-smoke"})
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("not a JSON line: %v", err)
	}
	if entry["service"] != "planhub-smoke" {
		t.Fatalf("service = %v, caller value must win", entry["service"])
	}
}

func TestRequestLineNilEntry(t *testing.T) {
	line := requestLine(nil)
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("not a JSON line: %v", err)
	}
	if entry["service"] != serviceLabel {
		t.Fatalf("nil entry should still carry the service label, got %v", entry)
	}
}
