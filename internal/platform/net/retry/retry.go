// Package retry is the outbound HTTP client the adapters share: bounded
// exponential backoff on transport errors, 429 and 5xx, honoring Retry-After.
package retry

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	perr "inquirysync/internal/platform/errors"
	"inquirysync/internal/platform/logger"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultMaxRetry  = 4
	defaultRetryBase = 500 * time.Millisecond
	maxBackoff       = 30 * time.Second
)

// Options configures a Client
type Options struct {
	Name       string // upstream name used in logs and errors
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	RetryBase  time.Duration
}

// Client wraps an *http.Client with the retry policy
type Client struct {
	http  *http.Client
	opts  Options
	log   logger.Logger
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
	jit   func(time.Duration) time.Duration
}

// New returns a Client over hc; a nil hc gets a plain client with opts.Timeout
func New(hc *http.Client, o Options) *Client {
	if o.Name == "" {
		o.Name = "upstream"
	}
	if o.UserAgent == "" {
		o.UserAgent = "inquirysync"
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	} else if o.MaxRetries == 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	if hc == nil {
		hc = &http.Client{}
	}
	if hc.Timeout == 0 {
		hc.Timeout = o.Timeout
	}
	return &Client{
		http:  hc,
		opts:  o,
		log:   *logger.Named(o.Name),
		now:   time.Now,
		sleep: sleepCtx,
		jit:   jitter,
	}
}

// Do sends the request newReq builds, rebuilding it for every attempt.
// The caller owns the body of a returned response; it is always 2xx.
func (c *Client) Do(ctx context.Context, newReq func(context.Context) (*http.Request, error)) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req, err := newReq(ctx)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "%s: build request", c.opts.Name)
		}
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", c.opts.UserAgent)
		}

		start := c.now()
		resp, err := c.http.Do(req)
		lat := c.now().Sub(start)

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt >= c.opts.MaxRetries {
				return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "%s: request failed after %d attempts", c.opts.Name, attempt+1)
			}
			if err := c.wait(ctx, attempt, c.backoff(attempt), "transport error"); err != nil {
				return nil, err
			}
			continue
		}

		c.log.Debug().
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Int("status", resp.StatusCode).
			Int("attempt", attempt).
			Dur("latency", lat).
			Msg("http response")

		switch code := resp.StatusCode; {
		case code >= 200 && code < 300:
			return resp, nil

		case code == http.StatusTooManyRequests || code >= 500:
			wait := retryAfter(resp.Header, c.now())
			if wait <= 0 {
				wait = c.backoff(attempt)
			}
			body := tail(resp.Body)
			if attempt >= c.opts.MaxRetries {
				ec := perr.ErrorCodeUnavailable
				if code == http.StatusTooManyRequests {
					ec = perr.ErrorCodeTooManyRequests
				}
				return nil, perr.Newf(ec, "%s: status %d after %d attempts: %s", c.opts.Name, code, attempt+1, body)
			}
			if err := c.wait(ctx, attempt, wait, "status "+strconv.Itoa(code)); err != nil {
				return nil, err
			}

		default:
			return nil, perr.Newf(statusCode(code), "%s: status %d: %s", c.opts.Name, code, tail(resp.Body))
		}
	}
}

// HTTPClient exposes the retry policy as a plain *http.Client for SDKs that
// take one. Requests with a body must set GetBody to be retried.
func (c *Client) HTTPClient() *http.Client {
	return &http.Client{Transport: roundTripper{c}}
}

type roundTripper struct{ c *Client }

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	first := true
	return rt.c.Do(req.Context(), func(ctx context.Context) (*http.Request, error) {
		out := req.Clone(ctx)
		if first || req.Body == nil || req.Body == http.NoBody {
			first = false
			return out, nil
		}
		if req.GetBody == nil {
			return nil, perr.Newf(perr.ErrorCodeInvalidArgument, "%s: request body cannot be replayed", rt.c.opts.Name)
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		out.Body = body
		return out, nil
	})
}

func (c *Client) wait(ctx context.Context, attempt int, d time.Duration, why string) error {
	c.log.Warn().Str("reason", why).Int("attempt", attempt).Dur("retry_in", d).Msg("retrying")
	return c.sleep(ctx, d)
}

// backoff is base<<attempt capped at 30s, plus jitter
func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.RetryBase << uint(attempt)
	if d <= 0 || d > maxBackoff {
		d = maxBackoff
	}
	return c.jit(d)
}

func statusCode(code int) perr.ErrorCode {
	switch code {
	case http.StatusUnauthorized:
		return perr.ErrorCodeUnauthorized
	case http.StatusForbidden:
		return perr.ErrorCodeForbidden
	case http.StatusNotFound:
		return perr.ErrorCodeNotFound
	case http.StatusConflict:
		return perr.ErrorCodeConflict
	}
	return perr.ErrorCodeInvalidArgument
}

// retryAfter reads Retry-After as seconds or an HTTP date
func retryAfter(h http.Header, now time.Time) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if s, err := strconv.Atoi(v); err == nil && s > 0 {
		return min(time.Duration(s)*time.Second, maxBackoff)
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return min(t.Sub(now), maxBackoff)
	}
	return 0
}

// jitter adds up to 20% on top of d
func jitter(d time.Duration) time.Duration {
	return d + time.Duration(rand.Int64N(int64(d)/5+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// tail reads a short diagnostic prefix of body and closes it
func tail(rc io.ReadCloser) string {
	b, _ := io.ReadAll(io.LimitReader(rc, 512))
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 4096))
	_ = rc.Close()
	return string(b)
}
