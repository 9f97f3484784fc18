package http

import (
	"context"
	"errors"
	stdhttp "net/http"
	"time"

	"inquirysync/internal/platform/config"
	"inquirysync/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

// ServerOptions are read from API_* env
type ServerOptions struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	ShutdownGrace     time.Duration
}

// ServerOptionsFrom reads API_ADDR, API_READ_HEADER_TIMEOUT, API_WRITE_TIMEOUT and API_SHUTDOWN_GRACE.
// The write timeout has to cover a synchronous sync pass.
func ServerOptionsFrom(cfg config.Conf) ServerOptions {
	c := cfg.Prefix("API_")
	return ServerOptions{
		Addr:              c.MayString("ADDR", ":8080"),
		ReadHeaderTimeout: c.MayDuration("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      c.MayDuration("WRITE_TIMEOUT", 5*time.Minute),
		ShutdownGrace:     c.MayDuration("SHUTDOWN_GRACE", 15*time.Second),
	}
}

// Server is a thin wrapper over chi + stdlib http.Server
type Server struct {
	opt ServerOptions
	mux *chi.Mux
	srv *stdhttp.Server
}

// NewServer builds a server; opts receive the *chi.Mux so callers can mount routes and middleware
func NewServer(opt ServerOptions, opts ...func(*chi.Mux)) *Server {
	if opt.Addr == "" {
		opt.Addr = ":8080"
	}
	if opt.ShutdownGrace <= 0 {
		opt.ShutdownGrace = 15 * time.Second
	}
	m := chi.NewRouter()
	for _, o := range opts {
		o(m)
	}
	return &Server{
		opt: opt,
		mux: m,
		srv: &stdhttp.Server{
			Addr:              opt.Addr,
			Handler:           m,
			ReadHeaderTimeout: opt.ReadHeaderTimeout,
			WriteTimeout:      opt.WriteTimeout,
		},
	}
}

// Router returns a Router facade over the internal chi mux
func (s *Server) Router() Router { return AdaptChi(s.mux) }

// Addr returns the listening address
func (s *Server) Addr() string { return s.opt.Addr }

// Run serves until ctx is done, then drains in-flight requests
func (s *Server) Run(ctx context.Context) error {
	log := logger.Named("http")
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.opt.Addr).Msg("http listening")
		errc <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, stdhttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opt.ShutdownGrace)
	defer cancel()
	log.Info().Dur("grace", s.opt.ShutdownGrace).Msg("http shutting down")
	if err := s.srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
