package http_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"inquirysync/internal/platform/config"
	phttp "inquirysync/internal/platform/net/http"

	"github.com/go-chi/chi/v5"
)

func TestServerOptionsFrom(t *testing.T) {
	t.Setenv("API_ADDR", ":9999")
	t.Setenv("API_WRITE_TIMEOUT", "90s")
	o := phttp.ServerOptionsFrom(config.New())
	if o.Addr != ":9999" || o.WriteTimeout != 90*time.Second {
		t.Fatalf("unexpected %+v", o)
	}
	if o.ReadHeaderTimeout != 10*time.Second || o.ShutdownGrace != 15*time.Second {
		t.Fatalf("defaults not applied %+v", o)
	}
}

func TestRouter_RouteGroupAndMux(t *testing.T) {
	var mwHits int
	srv := phttp.NewServer(phttp.ServerOptions{}, func(m *chi.Mux) {
		m.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mwHits++
				next.ServeHTTP(w, r)
			})
		})
	})
	if srv.Addr() != ":8080" {
		t.Fatalf("default addr %q", srv.Addr())
	}
	r := srv.Router()
	r.Route("/v1", func(v1 phttp.Router) {
		v1.Group(func(g phttp.Router) {
			phttp.GetJSON(g, "/ping", func(*http.Request) (any, error) { return "pong", nil })
		})
		phttp.PostJSON(v1, "/echo", func(_ *http.Request, in struct {
			Msg string `json:"msg" validate:"required"`
		}) (any, error) {
			return in.Msg, nil
		})
	})
	r.Handle("/raw", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "raw")
	}))

	cases := []struct {
		method, path, body string
		status             int
		contains           string
	}{
		{"GET", "/v1/ping", "", 200, `"data":"pong"`},
		{"POST", "/v1/echo", `{"msg":"hi"}`, 200, `"data":"hi"`},
		{"POST", "/v1/echo", `{}`, 400, `"field":"msg"`},
		{"GET", "/raw", "", 200, "raw"},
		{"GET", "/missing", "", 404, ""},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		r.Mux().ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body)))
		if rec.Code != tc.status {
			t.Fatalf("%s %s: status %d want %d", tc.method, tc.path, rec.Code, tc.status)
		}
		if !strings.Contains(rec.Body.String(), tc.contains) {
			t.Fatalf("%s %s: body %q lacks %q", tc.method, tc.path, rec.Body.String(), tc.contains)
		}
	}
	if mwHits != len(cases) {
		t.Fatalf("middleware hits %d want %d", mwHits, len(cases))
	}
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	srv := phttp.NewServer(phttp.ServerOptions{Addr: addr, ShutdownGrace: time.Second})
	phttp.GetJSON(srv.Router(), "/ping", func(*http.Request) (any, error) { return "pong", nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/ping")
		if err == nil {
			_ = resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
