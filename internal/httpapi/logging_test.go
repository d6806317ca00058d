package httpapi

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"":      LevelOff,
		"off":   LevelOff,
		"error": LevelError,
		"info":  LevelInfo,
		"debug": LevelDebug,
		"weird": LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestLogLevel_Overrides(t *testing.T) {
	r := httptest.NewRequest("GET", "/x?log=debug", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("query override failed: %v", got)
	}
	r = httptest.NewRequest("GET", "/x?log=1", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("?log=1 override failed: %v", got)
	}
	r = httptest.NewRequest("GET", "/x", nil)
	r.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(r); got != LevelError {
		t.Fatalf("header override failed: %v", got)
	}
	r = httptest.NewRequest("GET", "/x?log=info", nil)
	r.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(r); got != LevelInfo {
		t.Fatalf("query must win over header: %v", got)
	}
}

func TestFrameLogger_SplitsLines(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf).Level(zerolog.DebugLevel)
	fl := &frameLogger{log: &l, rid: "r1"}
	_, _ = fl.Write([]byte("data: a\n\ndata: par"))
	_, _ = fl.Write([]byte("tial\n\n"))

	out := buf.String()
	if n := strings.Count(out, `"message":"stream"`); n != 2 {
		t.Fatalf("expected 2 logged frames, got %d: %q", n, out)
	}
	if !strings.Contains(out, "data: partial") {
		t.Fatalf("missing joined frame: %q", out)
	}
}

func TestStreamLogsAtDebug(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	defer func() { zlog = nil }()

	w := postJSON(t, NewMux(&mockService{}), "/v1/generate?log=debug", `{"prompt":"hi"}`)
	if w.Code != 200 {
		t.Fatalf("status=%d", w.Code)
	}
	out := buf.String()
	for _, want := range []string{"stream start", "stream end", "data: [DONE]"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %q: %q", want, out)
		}
	}
}

func TestStreamLogsErrorsAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	defer func() { zlog = nil }()

	req := `{"prompt":"hi"}`
	w := postJSON(t, NewMux(&mockService{streamErr: errBoom}), "/v1/generate?log=error", req)
	if w.Code != 500 {
		t.Fatalf("status=%d", w.Code)
	}
	if out := buf.String(); !strings.Contains(out, "boom") || strings.Contains(out, "stream start") {
		t.Fatalf("unexpected log: %q", out)
	}
}
