package logging

import (
	"io"
	"log/slog"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// NewWriter returns a text logger on w at the given level. Unknown levels
// fall back to info.
func NewWriter(w io.Writer, level string) *slog.Logger {
	return slog.New(textHandler(w, ParseLevel(level)))
}

// WithAudit fans records out to the console and to a JSON audit stream.
// Both sinks redact secrets.
func WithAudit(level string, console, audit io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	return slog.New(slogmulti.Fanout(
		textHandler(console, lvl),
		slog.NewJSONHandler(audit, &slog.HandlerOptions{Level: lvl, ReplaceAttr: redact}),
	))
}

// ParseLevel maps debug/info/warn/warning/error to a slog level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func textHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redact,
	})
}

func redact(groups []string, a slog.Attr) slog.Attr {
	if isSecretKey(a.Key) {
		a.Value = slog.StringValue("[redacted]")
	}
	return a
}

// identifiers that only look like secrets
var allowed = map[string]struct{}{
	"key_id":          {},
	"idempotency_key": {},
}

func isSecretKey(k string) bool {
	k = strings.ToLower(k)
	if _, ok := allowed[k]; ok {
		return false
	}
	return strings.Contains(k, "token") || strings.Contains(k, "secret") || strings.Contains(k, "key") || strings.Contains(k, "pass")
}
