package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSecretRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(textHandler(&buf, slog.LevelDebug))

	tests := []struct {
		key    string
		value  string
		should bool
	}{
		{"api_token", "secret123", true},
		{"API_KEY", "key456", true},
		{"password", "pass789", true},
		{"secret", "mysecret", true},
		{"webhook_url", "https://example.com", false},
		{"message", "hello", false},
		{"count", "42", false},
		{"key_id", "warden", false},
		{"idempotency_key", "source:101:3", false},
		{"private_key", "0xdeadbeef", true},
	}

	for _, tt := range tests {
		buf.Reset()
		logger.Info("test", tt.key, tt.value)
		output := buf.String()

		if tt.should {
			if !strings.Contains(output, "[redacted]") {
				t.Errorf("key %q should be redacted, output: %s", tt.key, output)
			}
			if strings.Contains(output, tt.value) {
				t.Errorf("key %q value %q should not appear, output: %s", tt.key, tt.value, output)
			}
		} else {
			if strings.Contains(output, "[redacted]") {
				t.Errorf("key %q should not be redacted, output: %s", tt.key, output)
			}
			if !strings.Contains(output, tt.value) {
				t.Errorf("key %q value %q should appear, output: %s", tt.key, tt.value, output)
			}
		}
	}
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.level); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
		var buf bytes.Buffer
		NewWriter(&buf, tt.level).Debug("debug-line")
		if got := strings.Contains(buf.String(), "debug-line"); got != (tt.want == slog.LevelDebug) {
			t.Errorf("NewWriter(%q) debug output = %v", tt.level, got)
		}
	}
}

func TestAuditFanout(t *testing.T) {
	var console, audit bytes.Buffer
	logger := WithAudit("info", &console, &audit)

	logger.Debug("hidden")
	logger.Info("submitted", "idempotency_key", "source:5:0", "password", "hunter2")

	for name, out := range map[string]string{"console": console.String(), "audit": audit.String()} {
		if strings.Contains(out, "hidden") {
			t.Errorf("%s: debug record leaked: %s", name, out)
		}
		if !strings.Contains(out, "source:5:0") {
			t.Errorf("%s: missing idempotency key: %s", name, out)
		}
		if strings.Contains(out, "hunter2") {
			t.Errorf("%s: password not redacted: %s", name, out)
		}
	}
	if !strings.HasPrefix(strings.TrimSpace(audit.String()), "{") {
		t.Errorf("audit stream should be JSON: %s", audit.String())
	}
}
