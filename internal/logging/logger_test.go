package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "nchat.log")

	logger, err := New(path, "main", Options{})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hello")
	logger.Debug("hidden")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %s", len(lines), data)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "hello" || entry["profile"] != "main" {
		t.Errorf("entry = %v", entry)
	}
}

func TestBuildTeesToStderrWhenRequested(t *testing.T) {
	var file, stderr bytes.Buffer
	logger := build(&file, &stderr, "main", true)
	logger.Debug("dbg")
	_ = logger.Sync()

	if !strings.Contains(file.String(), "dbg") {
		t.Errorf("file sink missing debug line: %q", file.String())
	}
	if !strings.Contains(stderr.String(), "dbg") {
		t.Errorf("stderr sink missing debug line: %q", stderr.String())
	}
}
