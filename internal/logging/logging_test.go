package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ironsheep/otsu-mcp/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(NewWithWriter(&buf, config.Config{LogLevel: "info", LogFormat: "json"}), "server")

	logger.Debug().Msg("hidden")
	logger.Info().Str("tool", "threshold_compute").Msg("tool call")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %q", len(lines), buf.String())
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["component"] != "server" || entry["tool"] != "threshold_compute" {
		t.Errorf("unexpected fields: %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("missing timestamp")
	}
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.Config{LogLevel: "debug", LogFormat: "console"})
	logger.Debug().Msg("ready")

	out := buf.String()
	if !strings.Contains(out, "ready") || strings.HasPrefix(out, "{") {
		t.Errorf("expected human-readable output, got %q", out)
	}
}
