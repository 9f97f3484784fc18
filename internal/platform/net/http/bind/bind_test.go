package bind

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	perr "inquirysync/internal/platform/errors"
	"inquirysync/internal/platform/testkit"
)

type payload struct {
	Name  string `json:"name" validate:"required"`
	Limit int    `json:"limit" validate:"omitempty,min=1,max=500"`
}

func TestParseJSON(t *testing.T) {
	cases := []struct {
		name   string
		method string
		body   string
		opts   []JSONOptions
		code   perr.ErrorCode
		field  string
	}{
		{name: "ok", method: "POST", body: `{"name":"a","limit":5}`},
		{name: "missing required", method: "POST", body: `{"limit":5}`, code: perr.ErrorCodeValidation, field: "name"},
		{name: "max", method: "POST", body: `{"name":"a","limit":501}`, code: perr.ErrorCodeValidation, field: "limit"},
		{name: "bad json", method: "POST", body: `{"name":`, code: perr.ErrorCodeJSON},
		{name: "unknown field", method: "POST", body: `{"name":"a","x":1}`, code: perr.ErrorCodeJSON},
		{name: "unknown field allowed", method: "POST", body: `{"name":"a","x":1}`, opts: []JSONOptions{{}}},
		{name: "empty post", method: "POST", body: ``, code: perr.ErrorCodeJSON},
		{name: "empty get", method: "GET", body: ``},
		{name: "empty allowed still validates", method: "POST", body: ``, opts: []JSONOptions{{AllowEmptyBody: true}}, code: perr.ErrorCodeValidation, field: "name"},
		{name: "over max bytes", method: "POST", body: `{"name":"abcdefgh"}`, opts: []JSONOptions{{MaxBytes: 8}}, code: perr.ErrorCodeJSON},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(tc.method, "/", strings.NewReader(tc.body))
			_, err := ParseJSON[payload](r, tc.opts...)
			if tc.code == 0 {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if !perr.IsCode(err, tc.code) {
				t.Fatalf("want code %v got %v", tc.code, err)
			}
			if tc.field != "" {
				if got := perr.WireFrom(err).Field; got != tc.field {
					t.Fatalf("field %q want %q", got, tc.field)
				}
			}
		})
	}
}

func TestParseJSON_TrailingDataSeam(t *testing.T) {
	testkit.Swap(t, &jsonMore, func(*json.Decoder) bool { return true })
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"a"}`))
	if _, err := ParseJSON[payload](r); !perr.IsCode(err, perr.ErrorCodeJSON) {
		t.Fatalf("want json error, got %v", err)
	}
}

func TestParseJSON_NilBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Body = nil
	if _, err := ParseJSON[payload](r); !perr.IsCode(err, perr.ErrorCodeJSON) {
		t.Fatalf("want json error, got %v", err)
	}
}

func TestQuery(t *testing.T) {
	r := httptest.NewRequest("GET", "/?limit=20&status=+ERROR+&bad=x", nil)
	if n, err := QueryInt(r, "limit", 50); err != nil || n != 20 {
		t.Fatalf("limit %d %v", n, err)
	}
	if n, err := QueryInt(r, "absent", 50); err != nil || n != 50 {
		t.Fatalf("default %d %v", n, err)
	}
	_, err := QueryInt(r, "bad", 1)
	if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) || perr.WireFrom(err).Field != "bad" {
		t.Fatalf("bad int: %v", err)
	}
	if s := QueryString(r, "status"); s != "ERROR" {
		t.Fatalf("status %q", s)
	}
}
