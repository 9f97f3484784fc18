package sheets

import (
	"net/url"
	"regexp"
	"strings"

	perr "inquirysync/internal/platform/errors"
)

var (
	pathID = regexp.MustCompile(`/spreadsheets/d/([A-Za-z0-9_-]+)`)
	bareID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// ExtractSpreadsheetID accepts a spreadsheet URL (/spreadsheets/d/<id>/... or
// ?id=<id>) or a bare id
func ExtractSpreadsheetID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", perr.WithField(perr.InvalidArgf("spreadsheet id is empty"), "spreadsheet")
	}
	if m := pathID.FindStringSubmatch(s); m != nil {
		return m[1], nil
	}
	if u, err := url.Parse(s); err == nil && u.Scheme != "" {
		if id := u.Query().Get("id"); bareID.MatchString(id) {
			return id, nil
		}
		return "", perr.WithField(perr.InvalidArgf("no spreadsheet id in %q", s), "spreadsheet")
	}
	if bareID.MatchString(s) {
		return s, nil
	}
	return "", perr.WithField(perr.InvalidArgf("invalid spreadsheet id %q", s), "spreadsheet")
}
