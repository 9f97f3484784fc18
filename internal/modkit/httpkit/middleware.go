package httpkit

import (
	"net/http"
	"time"

	"inquirysync/internal/platform/config"
	"inquirysync/internal/platform/net/middleware"
)

// StackOptions tune CommonStack
type StackOptions struct {
	CORS    middleware.CORSOptions
	Slow    time.Duration
	Timeout time.Duration
}

// StackOptionsFrom reads API_CORS_ORIGINS, API_SLOW_REQUEST and API_REQUEST_TIMEOUT
func StackOptionsFrom(cfg config.Conf) StackOptions {
	c := cfg.Prefix("API_")
	return StackOptions{
		CORS:    middleware.CORSOptions{AllowedOrigins: c.MayCSV("CORS_ORIGINS", nil)},
		Slow:    c.MayDuration("SLOW_REQUEST", 500*time.Millisecond),
		Timeout: c.MayDuration("REQUEST_TIMEOUT", 5*time.Minute),
	}
}

// CommonStack returns the baseline middleware for the API root
func CommonStack(o StackOptions) []func(http.Handler) http.Handler {
	mw := []func(http.Handler) http.Handler{
		middleware.RequestID(),
		middleware.RealIP(),
		middleware.AccessLog(middleware.AccessLogOptions{Slow: o.Slow}),
		middleware.RecoverJSON,
		middleware.NoCache(),
		middleware.CORS(o.CORS),
		middleware.StripSlashes(),
	}
	if o.Timeout > 0 {
		mw = append(mw, middleware.Timeout(o.Timeout))
	}
	return mw
}
