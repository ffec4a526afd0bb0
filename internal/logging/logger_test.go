package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesJSONWithSessionFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tchatd.log")

	logger, err := New(path, "desk", true)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Debug("hydrated")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := strings.TrimSpace(string(data))
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %q", line)
	}
	if entry["msg"] != "hydrated" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["session"] != "desk" {
		t.Errorf("session = %v, want desk", entry["session"])
	}
	if int(entry["pid"].(float64)) != os.Getpid() {
		t.Errorf("pid = %v", entry["pid"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Error("missing ts field")
	}
}
