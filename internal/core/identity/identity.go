// Package identity derives the deduplication key of a record. The same
// function must run on sheet rows and on stored rows or dedup silently fails.
package identity

import (
	"fmt"
	"strconv"
	"strings"

	"inquirysync/internal/core/normalize"
)

// Key is the (name, digits only phone) pair
type Key struct {
	Name  string
	Phone string
}

// Of builds the key of an already normalized record
func Of(name, phoneDigits string) Key {
	return Key{Name: strings.TrimSpace(name), Phone: phoneDigits}
}

// FromStored builds the key of a persisted row. Values may come back typed
// (numbers, nil) so both sides are coerced to strings first.
func FromStored(name, phone any) Key {
	return Of(Text(name), normalize.Digits(Text(phone)))
}

// Text coerces a stored value to its string form; nil and null sentinels are empty
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return normalize.Cell(x)
	case *string:
		if x == nil {
			return ""
		}
		return normalize.Cell(*x)
	case []byte:
		return normalize.Cell(string(x))
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case fmt.Stringer:
		return normalize.Cell(x.String())
	default:
		return normalize.Cell(fmt.Sprint(x))
	}
}

// String renders the key for logs
func (k Key) String() string { return k.Name + "/" + k.Phone }

// Set is a membership set of keys
type Set map[Key]struct{}

// NewSet returns a set holding keys
func NewSet(keys ...Key) Set {
	s := make(Set, len(keys))
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

// Has reports membership
func (s Set) Has(k Key) bool {
	_, ok := s[k]
	return ok
}

// Add inserts k and reports whether it was new
func (s Set) Add(k Key) bool {
	if s.Has(k) {
		return false
	}
	s[k] = struct{}{}
	return true
}

// Clone copies s
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}
