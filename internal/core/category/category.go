// Package category is the closed set of inbound record categories. Each one
// carries its own data row (tables, phone columns, source headers, extra
// fields) so callers look a category up once instead of branching on names.
package category

import "strings"

// Category is one inbound record bucket
type Category uint8

// Known categories, in pass processing order
const (
	Unknown Category = iota
	Estimate
	Consultation
	Inquiry
	CCTVManagement
	CareonApplication
)

// Canonical identity fields and the name column every table shares
const (
	NameField  = "name"
	PhoneField = "phone"
	NameColumn = "name"
)

var keys = [...]string{"unknown", "estimate", "consultation", "inquiry", "cctv_management", "careon_application"}

// All lists every known category in processing order
func All() []Category {
	return []Category{Estimate, Consultation, Inquiry, CCTVManagement, CareonApplication}
}

// Keys lists the wire keys of All
func Keys() []string {
	out := make([]string, 0, len(keys)-1)
	for _, c := range All() {
		out = append(out, c.String())
	}
	return out
}

// Valid reports whether c is a known category
func (c Category) Valid() bool { return c > Unknown && int(c) < len(keys) }

// String returns the wire key, e.g. careon_application
func (c Category) String() string {
	if !c.Valid() {
		return keys[Unknown]
	}
	return keys[c]
}

// Parse maps a wire key to its category; matching ignores case and padding
func Parse(s string) (Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range All() {
		if keys[c] == s {
			return c, true
		}
	}
	return Unknown, false
}

// MarshalText encodes the wire key
func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText decodes a wire key; unknown keys decode to Unknown
func (c *Category) UnmarshalText(b []byte) error {
	*c, _ = Parse(string(b))
	return nil
}
