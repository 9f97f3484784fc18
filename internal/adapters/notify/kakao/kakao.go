// Package kakao sends new records to the KakaoTalk "send to me" memo API.
// The OAuth refresh token lives in a JSON file that is rewritten whenever
// the token endpoint rotates it.
package kakao

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"inquirysync/internal/adapters/notify"
	"inquirysync/internal/core/record"
	perr "inquirysync/internal/platform/errors"
	"inquirysync/internal/platform/logger"
	"inquirysync/internal/platform/net/retry"
)

const (
	defaultAPIURL  = "https://kapi.kakao.com/v2/api/talk/memo/default/send"
	defaultAuthURL = "https://kauth.kakao.com/oauth/token"
	defaultLink    = "https://developers.kakao.com"

	// MaxRecords caps the memos sent for one batch
	MaxRecords = 3
)

// Options configures the memo channel
type Options struct {
	ClientID   string // REST API key
	TokenFile  string
	LinkURL    string
	APIURL     string
	AuthURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryBase  time.Duration
	MaxRecords int
}

// tokens is the token file layout
type tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

type memoReply struct {
	ResultCode *int `json:"result_code"`
}

// Channel is a notify.Channel that sends one memo per record
type Channel struct {
	rc  *retry.Client
	o   Options
	fmt notify.Formatter
	log logger.Logger

	mu  sync.Mutex
	tok *tokens
}

// New validates o; the token file is read on first use
func New(hc *http.Client, o Options, f notify.Formatter) (*Channel, error) {
	switch {
	case o.ClientID == "":
		return nil, perr.WithField(perr.InvalidArgf("kakao: client id is required"), "KAKAO_CLIENT_ID")
	case o.TokenFile == "":
		return nil, perr.WithField(perr.InvalidArgf("kakao: token file is required"), "KAKAO_TOKEN_FILE")
	}
	if o.APIURL == "" {
		o.APIURL = defaultAPIURL
	}
	if o.AuthURL == "" {
		o.AuthURL = defaultAuthURL
	}
	if o.LinkURL == "" {
		o.LinkURL = defaultLink
	}
	if o.MaxRecords <= 0 {
		o.MaxRecords = MaxRecords
	}
	return &Channel{
		rc: retry.New(hc, retry.Options{
			Name:       "kakao",
			Timeout:    o.Timeout,
			MaxRetries: o.MaxRetries,
			RetryBase:  o.RetryBase,
		}),
		o:   o,
		fmt: f,
		log: *logger.Named("kakao"),
	}, nil
}

// Name implements notify.Channel
func (c *Channel) Name() string { return "kakao" }

// Notify sends a memo for each of the first MaxRecords records of b
func (c *Channel) Notify(ctx context.Context, b notify.Batch) error {
	recs := pick(b, c.o.MaxRecords)
	if skipped := b.Total() - len(recs); skipped > 0 {
		c.log.Info().Int("sent", len(recs)).Int("skipped", skipped).Msg("memo cap reached")
	}
	var errs []error
	for _, r := range recs {
		if err := c.send(ctx, c.fmt.Record(r)); err != nil {
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
		}
	}
	return errors.Join(errs...)
}

// Text sends one memo
func (c *Channel) Text(ctx context.Context, subject, body string) error {
	if subject != "" && !strings.HasPrefix(body, subject) {
		body = subject + "\n\n" + body
	}
	return c.send(ctx, body)
}

func pick(b notify.Batch, n int) []record.Record {
	var out []record.Record
	for _, s := range b.Summaries {
		for _, r := range s.Latest {
			if len(out) == n {
				return out
			}
			out = append(out, r)
		}
	}
	return out
}

// send posts text, refreshing the access token once on 401
func (c *Channel) send(ctx context.Context, text string) error {
	tok, err := c.access(ctx, false)
	if err != nil {
		return err
	}
	err = c.memo(ctx, tok, text)
	if perr.IsCode(err, perr.ErrorCodeUnauthorized) {
		c.log.Info().Msg("access token rejected, refreshing")
		if tok, err = c.access(ctx, true); err != nil {
			return err
		}
		err = c.memo(ctx, tok, text)
	}
	return err
}

func (c *Channel) memo(ctx context.Context, token, text string) error {
	tmpl, err := json.Marshal(map[string]any{
		"object_type": "text",
		"text":        text,
		"link": map[string]string{
			"web_url":        c.o.LinkURL,
			"mobile_web_url": c.o.LinkURL,
		},
	})
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "kakao: encode template")
	}
	form := url.Values{"template_object": {string(tmpl)}}.Encode()

	resp, err := c.rc.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.o.APIURL, strings.NewReader(form))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out memoReply
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "kakao: decode memo reply")
	}
	if out.ResultCode == nil || *out.ResultCode != 0 {
		code := -1
		if out.ResultCode != nil {
			code = *out.ResultCode
		}
		return perr.Newf(perr.ErrorCodeUnavailable, "kakao: memo rejected, result_code %d", code)
	}
	return nil
}

// access returns the current access token, refreshing when there is none
// or when force is set
func (c *Channel) access(ctx context.Context, force bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tok == nil {
		t, err := readTokens(c.o.TokenFile)
		if err != nil {
			return "", err
		}
		c.tok = t
	}
	if c.tok.AccessToken != "" && !force {
		return c.tok.AccessToken, nil
	}
	if err := c.refresh(ctx); err != nil {
		return "", err
	}
	return c.tok.AccessToken, nil
}

// refresh exchanges the refresh token and persists the result; c.mu is held
func (c *Channel) refresh(ctx context.Context) error {
	if c.tok.RefreshToken == "" {
		return perr.WithField(perr.Newf(perr.ErrorCodeUnauthorized, "kakao: no refresh token in %s", c.o.TokenFile), "KAKAO_TOKEN_FILE")
	}
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.o.ClientID},
		"refresh_token": {c.tok.RefreshToken},
	}.Encode()

	resp, err := c.rc.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.o.AuthURL, strings.NewReader(form))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return perr.WithOp(err, "kakao.refresh")
	}
	defer resp.Body.Close()

	var fresh tokens
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&fresh); err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "kakao: decode token reply")
	}
	if fresh.AccessToken == "" {
		return perr.Newf(perr.ErrorCodeUnauthorized, "kakao: token reply without access_token")
	}
	c.tok.AccessToken = fresh.AccessToken
	c.tok.ExpiresIn = fresh.ExpiresIn
	if fresh.RefreshToken != "" {
		c.tok.RefreshToken = fresh.RefreshToken
	}
	if err := writeTokens(c.o.TokenFile, c.tok); err != nil {
		// the new token still works for this process
		c.log.Error().Err(err).Str("file", c.o.TokenFile).Msg("token file not updated")
	}
	return nil
}

func readTokens(path string) (*tokens, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, perr.WithField(perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "kakao: read token file %s", path), "KAKAO_TOKEN_FILE")
	}
	var t tokens
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, perr.WithField(perr.Wrapf(err, perr.ErrorCodeJSON, "kakao: parse token file %s", path), "KAKAO_TOKEN_FILE")
	}
	return &t, nil
}

// writeTokens replaces path through a temp file in the same directory
func writeTokens(path string, t *tokens) error {
	b, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".kakao-token-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
