package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name  string
		level string
		log   func(Logger)
		want  bool
	}{
		{"info logs info", "info", func(l Logger) { l.Info("m") }, true},
		{"info drops debug", "info", func(l Logger) { l.Debug("m") }, false},
		{"debug logs debug", "debug", func(l Logger) { l.Debug("m") }, true},
		{"error drops warn", "error", func(l Logger) { l.Warn("m") }, false},
		{"error logs error", "error", func(l Logger) { l.Error("m") }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.log(NewLogger(Config{Level: tt.level, Format: "json", Output: buf}))
			if got := buf.Len() > 0; got != tt.want {
				t.Errorf("logged = %v, want %v (%s)", got, tt.want, buf.String())
			}
		})
	}
}

func TestLoggerTextFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	NewLogger(Config{Level: "info", Format: "text", Output: buf}).Info("hello", "trip", "rome")
	if !strings.Contains(buf.String(), "msg=hello") || !strings.Contains(buf.String(), "trip=rome") {
		t.Errorf("unexpected text output: %s", buf.String())
	}
}

func TestLoggerContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{Level: "debug", Format: "json", Output: buf})

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithUserID(ctx, "user-1")
	ctx = WithComponent(ctx, "chat")
	logger.InfoContext(ctx, "turn")

	entry := decodeLine(t, buf)
	if entry["request_id"] != "req-1" || entry["user_id"] != "user-1" || entry["component"] != "chat" {
		t.Errorf("missing context fields: %v", entry)
	}
}

func TestLoggerWithComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	NewLogger(Config{Level: "info", Output: buf}).WithComponent("gateway").With("kind", "weather").Warn("fallback")
	entry := decodeLine(t, buf)
	if entry["component"] != "gateway" || entry["kind"] != "weather" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestContextHelpers(t *testing.T) {
	//nolint:staticcheck // nil context is handled deliberately
	if RequestIDFromContext(nil) != "" || UserIDFromContext(nil) != "" || ComponentFromContext(nil) != "" {
		t.Error("nil context should yield empty values")
	}
	ctx := context.Background()
	if WithRequestID(ctx, "") != ctx {
		t.Error("empty request id should not wrap the context")
	}
	if got := UserIDFromContext(WithUserID(ctx, "u")); got != "u" {
		t.Errorf("user id = %q", got)
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	base := NewLogger(Config{Level: "info", Output: buf})
	FromContext(WithRequestID(context.Background(), "abc"), base).Info("x")
	if entry := decodeLine(t, buf); entry["request_id"] != "abc" {
		t.Errorf("request id not attached: %v", entry)
	}
	if FromContext(context.Background(), base) != base {
		t.Error("empty context should return the same logger")
	}
	if FromContext(context.Background(), nil) == nil {
		t.Error("nil logger should be replaced by a default")
	}
}

func TestNewLoggerFromSlog(t *testing.T) {
	sl := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	if NewLoggerFromSlog(sl).Slog() != sl {
		t.Error("expected wrapped slog logger")
	}
	if NewLoggerFromSlog(nil).Slog() == nil {
		t.Error("nil slog logger should fall back to default")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug, "INFO": slog.LevelInfo, "warning": slog.LevelWarn,
		"error": slog.LevelError, "bogus": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("TRIPPLANNER_LOG_LEVEL", "debug")
	t.Setenv("TRIPPLANNER_LOG_FORMAT", "text")
	cfg := ConfigFromEnv()
	if cfg.Level != "debug" || cfg.Format != "text" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}
