// Package bind decodes and validates request payloads for handlers
package bind

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	perr "inquirysync/internal/platform/errors"
	"inquirysync/internal/platform/logger"
	"inquirysync/internal/platform/validate"
)

var jsonMore = func(dec *json.Decoder) bool { return dec.More() } // seam

// JSONOptions controls parsing behavior
type JSONOptions struct {
	MaxBytes        int64 // default 1MB
	DisallowUnknown bool  // default true
	AllowEmptyBody  bool  // default false
}

func defaultJSONOptions() JSONOptions {
	return JSONOptions{
		MaxBytes:        1 << 20,
		DisallowUnknown: true,
	}
}

// ParseJSON decodes JSON into T, validates it, and maps failures to project errors.
// An empty body on a POST is a JSON error unless AllowEmptyBody is set, in which case the zero T is validated.
func ParseJSON[T any](r *http.Request, opts ...JSONOptions) (T, error) {
	var zero T
	o := defaultJSONOptions()
	if len(opts) > 0 {
		o = opts[0]
	}
	if r.Body == nil {
		r.Body = http.NoBody
	}
	defer func() {
		if err := r.Body.Close(); err != nil {
			logger.C(r.Context()).Warn().Err(err).Msg("close request body")
		}
	}()

	body := io.Reader(r.Body)
	if o.MaxBytes > 0 {
		body = io.LimitReader(body, o.MaxBytes)
	}

	buf := make([]byte, 1)
	n, _ := io.ReadFull(body, buf)
	var dst T
	if n == 0 {
		switch {
		case r.Method == http.MethodGet || r.Method == http.MethodHead:
			return zero, nil
		case !o.AllowEmptyBody:
			return zero, perr.JSONErrf("empty body")
		}
		return dst, check(dst)
	}

	dec := json.NewDecoder(io.MultiReader(bytes.NewReader(buf[:n]), body))
	if o.DisallowUnknown {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&dst); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return zero, perr.JSONErrf("truncated JSON")
		}
		return zero, perr.JSONErrf("invalid JSON: %v", err)
	}
	if jsonMore(dec) {
		return zero, perr.JSONErrf("unexpected trailing data")
	}
	if err := check(dst); err != nil {
		return zero, err
	}
	return dst, nil
}

// check runs struct validation and maps the first failure to a field scoped validation error
func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	if validate.IsInternal(err) {
		logger.Named("bind").Error().Err(err).Msg("validator internal error")
		return perr.JSONErrf("validation error")
	}
	field, msg := validate.FieldAndMessage(err)
	return perr.WithField(perr.Validationf("%s", msg), field)
}

// QueryInt reads an integer query parameter, def when absent
func QueryInt(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, perr.WithField(perr.InvalidArgf("%s must be an integer", key), key)
	}
	return n, nil
}

// QueryString reads a trimmed query parameter
func QueryString(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}
