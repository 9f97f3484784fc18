package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"inquirysync/internal/platform/logger"
	pnet "inquirysync/internal/platform/net"
	"inquirysync/internal/platform/testkit"

	"github.com/rs/zerolog"
)

// captureLogs points the root logger at a buffer for the test
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	l := zerolog.New(&buf)
	testkit.Swap(t, logger.Get(), l)
	return &buf
}

func TestAccessLog(t *testing.T) {
	testkit.Serial(t)
	buf := captureLogs(t)

	var seenID string
	h := RequestID()(AccessLog(AccessLogOptions{Slow: time.Hour})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = pnet.RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})))

	req := httptest.NewRequest("GET", "/v1/sync/logs", nil)
	req.Header.Set("X-Request-Id", "rid-77")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seenID != "rid-77" {
		t.Fatalf("request id %q", seenID)
	}
	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("log line %q: %v", buf.String(), err)
	}
	if line["status"] != float64(http.StatusTeapot) || line["bytes"] != float64(15) || line["request_id"] != "rid-77" {
		t.Fatalf("unexpected log %v", line)
	}
	if line["level"] != "info" || line["path"] != "/v1/sync/logs" {
		t.Fatalf("unexpected log %v", line)
	}
}

func TestAccessLog_Levels(t *testing.T) {
	testkit.Serial(t)
	cases := []struct {
		name   string
		status int
		slow   time.Duration
		level  string
	}{
		{"server error", http.StatusInternalServerError, 0, "error"},
		{"slow", http.StatusOK, time.Nanosecond, "warn"},
		{"fast", http.StatusOK, time.Hour, "info"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := captureLogs(t)
			h := AccessLog(AccessLogOptions{Slow: tc.slow})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				time.Sleep(time.Millisecond)
				w.WriteHeader(tc.status)
			}))
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
			testkit.MustContain(t, buf.String(), `"level":"`+tc.level+`"`)
		})
	}
}

func TestRecoverJSON(t *testing.T) {
	testkit.Serial(t)
	buf := captureLogs(t)

	h := RequestID()(RecoverJSON(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})))
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-Id", "rid-panic")
	rec := httptest.NewRecorder()
	testkit.MustNotPanic(t, func() { h.ServeHTTP(rec, req) })

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") != "rid-panic" {
		t.Fatalf("request id header missing")
	}
	testkit.MustContain(t, rec.Body.String(), `"code":"panic"`)
	testkit.MustContain(t, rec.Body.String(), `"request_id":"rid-panic"`)
	testkit.MustNotContain(t, rec.Body.String(), "kaboom")
	testkit.MustContain(t, buf.String(), "panic recovered")
}

func TestRecoverJSON_AbortHandlerRepanics(t *testing.T) {
	h := RecoverJSON(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	testkit.MustPanic(t, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	})
}

func TestCORS(t *testing.T) {
	h := CORS(CORSOptions{AllowedOrigins: []string{"https://ops.example.com"}})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	pre := httptest.NewRequest(http.MethodOptions, "/v1/sync/runs", nil)
	pre.Header.Set("Origin", "https://ops.example.com")
	pre.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, pre)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://ops.example.com" {
		t.Fatalf("allow origin %q", got)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost) {
		t.Fatalf("allow methods %q", rec.Header().Get("Access-Control-Allow-Methods"))
	}

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("foreign origin allowed")
	}
}

func TestIfEmpty(t *testing.T) {
	if got := ifEmpty(nil, []string{"a"}); len(got) != 1 || got[0] != "a" {
		t.Fatalf("default not applied %v", got)
	}
	if got := ifEmpty([]string{"b"}, []string{"a"}); got[0] != "b" {
		t.Fatalf("input replaced %v", got)
	}
}
