// Package sheets reads spreadsheet tabs through the Google Sheets v4 API with
// a service account
package sheets

import (
	"context"
	"encoding/json"
	stderrs "errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	perr "inquirysync/internal/platform/errors"
	"inquirysync/internal/platform/logger"
	"inquirysync/internal/platform/net/retry"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// Scopes requested for the service account
var Scopes = []string{
	sheetsapi.SpreadsheetsReadonlyScope,
	sheetsapi.DriveReadonlyScope,
}

// Options configures the Client
type Options struct {
	BaseURL         string // endpoint override, tests and proxies
	Spreadsheet     string // URL or bare id
	CredentialsFile string
	Timeout         time.Duration
	MaxRetries      int
	RetryBase       time.Duration
}

// Client reads one spreadsheet
type Client struct {
	svc *sheetsapi.Service
	id  string
	log logger.Logger
}

// New authenticates with the service account key in o.CredentialsFile
func New(ctx context.Context, o Options) (*Client, error) {
	key, err := os.ReadFile(o.CredentialsFile)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "sheets: read credentials %s", o.CredentialsFile)
	}
	cfg, err := google.JWTConfigFromJSON(key, Scopes...)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "sheets: parse credentials")
	}
	return NewWithHTTP(cfg.Client(ctx), o)
}

// NewWithHTTP uses hc as is; hc must already authorize requests. Every call
// goes through the shared retry policy.
func NewWithHTTP(hc *http.Client, o Options) (*Client, error) {
	id, err := ExtractSpreadsheetID(o.Spreadsheet)
	if err != nil {
		return nil, err
	}
	rc := retry.New(hc, retry.Options{
		Name:       "sheets",
		Timeout:    o.Timeout,
		MaxRetries: o.MaxRetries,
		RetryBase:  o.RetryBase,
	})
	opts := []option.ClientOption{option.WithHTTPClient(rc.HTTPClient())}
	if base := strings.TrimRight(o.BaseURL, "/"); base != "" {
		opts = append(opts, option.WithEndpoint(base+"/"))
	}
	// the http client is already authorized, NewService does no I/O here
	svc, err := sheetsapi.NewService(context.Background(), opts...)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "sheets: build service")
	}
	return &Client{svc: svc, id: id, log: *logger.Named("sheets")}, nil
}

// SpreadsheetID is the resolved spreadsheet id
func (c *Client) SpreadsheetID() string { return c.id }

// ListSheetNames returns the tab titles in spreadsheet order
func (c *Client) ListSheetNames(ctx context.Context) ([]string, error) {
	ss, err := c.svc.Spreadsheets.Get(c.id).
		Fields(googleapi.Field("sheets.properties.title")).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(err, "list sheets")
	}
	out := make([]string, 0, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			out = append(out, s.Properties.Title)
		}
	}
	return out, nil
}

// FetchValues returns every formatted cell of sheet, row major. Rows are
// ragged: trailing empty cells are omitted by the API.
func (c *Client) FetchValues(ctx context.Context, sheet string) ([][]string, error) {
	vr, err := c.svc.Spreadsheets.Values.Get(c.id, a1(sheet)).
		ValueRenderOption("FORMATTED_VALUE").
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, perr.WithField(classify(err, "fetch values"), sheet)
	}
	out := make([][]string, len(vr.Values))
	for i, row := range vr.Values {
		out[i] = make([]string, len(row))
		for j, v := range row {
			out[i][j] = text(v)
		}
	}
	c.log.Debug().Str("sheet", sheet).Int("rows", len(out)).Msg("fetched values")
	return out, nil
}

// classify keeps the code the retry transport assigned; whatever reaches here
// without one failed while decoding a 2xx body
func classify(err error, op string) error {
	if e, ok := perr.As(err); ok {
		return e
	}
	if stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return err
	}
	var gerr *googleapi.Error
	if stderrs.As(err, &gerr) {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "sheets: %s: status %d", op, gerr.Code)
	}
	return perr.Wrapf(err, perr.ErrorCodeJSON, "sheets: %s: decode response", op)
}

// a1 quotes a sheet title as a whole-sheet A1 range
func a1(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}
