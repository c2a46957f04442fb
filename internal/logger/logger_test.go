package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestConfigure(t *testing.T) {
	defer func() { _ = Configure("info", "json") }()

	tests := []struct {
		level, format string
		wantErr       bool
	}{
		{"debug", "json", false},
		{"warn", "text", false},
		{"error", "", false},
		{"loud", "json", true},
		{"info", "xml", true},
	}
	for _, tt := range tests {
		err := Configure(tt.level, tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("Configure(%q, %q): err=%v, wantErr=%v", tt.level, tt.format, err, tt.wantErr)
		}
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	if err := Configure("debug", "json"); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = Configure("info", "json") }()

	WithFields(logrus.Fields{"tool": "image_load", "bands": 3}).Debug("loaded")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "loaded" || entry["tool"] != "image_load" || entry["level"] != "debug" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	if err := Configure("warn", "text"); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = Configure("info", "json") }()

	Info("hidden")
	Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}
