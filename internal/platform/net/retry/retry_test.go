package retry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	perr "inquirysync/internal/platform/errors"
)

func newTestClient(maxRetries int) (*Client, *[]time.Duration) {
	c := New(nil, Options{Name: "test", MaxRetries: maxRetries, RetryBase: 100 * time.Millisecond})
	var slept []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	c.jit = func(d time.Duration) time.Duration { return d }
	return c, &slept
}

func get(url string) func(context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

func TestRetriesTransientThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			if r.Header.Get("User-Agent") != "inquirysync" {
				t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
			}
			_, _ = io.WriteString(w, "ok")
		}
	}))
	defer srv.Close()

	c, slept := newTestClient(3)
	resp, err := c.Do(context.Background(), get(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(b) != "ok" || calls.Load() != 3 {
		t.Fatalf("body=%q calls=%d", b, calls.Load())
	}
	if len(*slept) != 2 || (*slept)[0] != 100*time.Millisecond || (*slept)[1] != 2*time.Second {
		t.Fatalf("slept = %v", *slept)
	}
}

func TestExhaustedRetries(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   perr.ErrorCode
	}{
		{"5xx", http.StatusBadGateway, perr.ErrorCodeUnavailable},
		{"429", http.StatusTooManyRequests, perr.ErrorCodeTooManyRequests},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			c, slept := newTestClient(2)
			_, err := c.Do(context.Background(), get(srv.URL))
			if !perr.IsCode(err, tc.code) {
				t.Fatalf("err = %v, want %v", err, tc.code)
			}
			if calls.Load() != 3 || len(*slept) != 2 || (*slept)[1] != 200*time.Millisecond {
				t.Fatalf("calls=%d slept=%v", calls.Load(), *slept)
			}
			if !perr.Retryable(err) {
				t.Fatal("exhausted transient error should stay retryable for the caller")
			}
		})
	}
}

func TestTerminalStatuses(t *testing.T) {
	tests := []struct {
		status int
		code   perr.ErrorCode
	}{
		{http.StatusUnauthorized, perr.ErrorCodeUnauthorized},
		{http.StatusForbidden, perr.ErrorCodeForbidden},
		{http.StatusNotFound, perr.ErrorCodeNotFound},
		{http.StatusBadRequest, perr.ErrorCodeInvalidArgument},
	}
	for _, tc := range tests {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(tc.status)
			_, _ = io.WriteString(w, `{"error":"nope"}`)
		}))
		c, _ := newTestClient(3)
		_, err := c.Do(context.Background(), get(srv.URL))
		srv.Close()
		if !perr.IsCode(err, tc.code) || calls.Load() != 1 {
			t.Fatalf("%d: err=%v calls=%d", tc.status, err, calls.Load())
		}
	}
}

func TestTransportErrorAndCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, slept := newTestClient(1)
	_, err := c.Do(context.Background(), get(url))
	if !perr.IsCode(err, perr.ErrorCodeUnavailable) || len(*slept) != 1 {
		t.Fatalf("err=%v slept=%v", err, *slept)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Do(ctx, get(url)); err != context.Canceled {
		t.Fatalf("canceled err = %v", err)
	}
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2024, 9, 5, 0, 0, 0, 0, time.UTC)
	h := http.Header{}
	if retryAfter(h, now) != 0 {
		t.Fatal("missing header")
	}
	h.Set("Retry-After", "5")
	if retryAfter(h, now) != 5*time.Second {
		t.Fatal("seconds form")
	}
	h.Set("Retry-After", now.Add(10*time.Second).Format(http.TimeFormat))
	if retryAfter(h, now) != 10*time.Second {
		t.Fatalf("date form = %v", retryAfter(h, now))
	}
	h.Set("Retry-After", "3600")
	if retryAfter(h, now) != maxBackoff {
		t.Fatal("cap")
	}
}

func TestBackoffCapAndJitter(t *testing.T) {
	c, _ := newTestClient(1)
	if got := c.backoff(20); got != maxBackoff {
		t.Fatalf("backoff(20) = %v", got)
	}
	for i := 0; i < 50; i++ {
		if d := jitter(time.Second); d < time.Second || d > 1200*time.Millisecond {
			t.Fatalf("jitter out of range: %v", d)
		}
	}
}

func TestHTTPClientReplaysBody(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		if string(b) != "payload" {
			t.Errorf("attempt %d body = %q", calls.Load()+1, b)
		}
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c, slept := newTestClient(2)
	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader("payload"))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := c.HTTPClient().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if calls.Load() != 2 || len(*slept) != 1 {
		t.Fatalf("calls = %d, sleeps = %v", calls.Load(), *slept)
	}
}

func TestHTTPClientKeepsErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, _ := newTestClient(0)
	_, err := c.HTTPClient().Get(srv.URL)
	if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("err = %v", err)
	}
}
