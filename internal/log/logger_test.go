package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"loud":    slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Format: FormatJSON, Output: &buf, Component: ComponentLedger})

	l.Info("Bill saved", FieldBillID, int64(42))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json log line %q: %v", buf.String(), err)
	}
	if entry[FieldComponent] != ComponentLedger {
		t.Errorf("component = %v", entry[FieldComponent])
	}
	if entry[FieldBillID] != float64(42) {
		t.Errorf("bill_id = %v", entry[FieldBillID])
	}
}

func TestNewHandlerFormats(t *testing.T) {
	for _, format := range []string{FormatText, FormatJSON, FormatTint, "bogus"} {
		var buf bytes.Buffer
		h := NewHandler(format, slog.LevelInfo, &buf)
		slog.New(h).Info("hello")
		if !strings.Contains(buf.String(), "hello") {
			t.Errorf("%s handler did not write message: %q", format, buf.String())
		}
	}
}

func TestMiddlewareStoresLoggerAndLogsStatus(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: FormatJSON, Output: &buf})

	var seen *Logger
	h := Middleware(base, func(*http.Request) string { return "req_1" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bills", nil))

	if seen == nil || seen.Component() != ComponentHTTP {
		t.Fatalf("expected http logger in context, got %+v", seen)
	}
	out := buf.String()
	if !strings.Contains(out, `"status_code":422`) || !strings.Contains(out, `"request_id":"req_1"`) || !strings.Contains(out, `"level":"WARN"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestFromContextFallback(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Fatalf("unexpected fallback logger: %+v", l)
	}
}
