// Package record turns one raw sheet row into the canonical record of a category
package record

import (
	"time"

	"inquirysync/internal/core/category"
	"inquirysync/internal/core/headermap"
	"inquirysync/internal/core/normalize"
	"inquirysync/internal/core/sheet"
	"inquirysync/internal/platform/logger"
)

// Record is a canonical record; Name and Phone are never empty and Phone is digits only
type Record struct {
	Category  category.Category
	SheetName string
	Name      string
	Phone     string
	Fields    map[string]string // category extras, canonical field -> value
}

// Field returns an extra field value, empty when absent
func (r Record) Field(f string) string { return r.Fields[f] }

// Normalizer builds records against one category table
type Normalizer struct {
	tab *category.Table
	log logger.Logger
}

// NewNormalizer returns a Normalizer over tab
func NewNormalizer(tab *category.Table, log logger.Logger) *Normalizer {
	return &Normalizer{tab: tab, log: log.With().Str("component", "record").Logger()}
}

// Normalize maps row through m into a record of category c. It reports false
// for rows missing a name or phone and for categories the table does not know.
func (n *Normalizer) Normalize(row sheet.RawRow, m headermap.Mapping, c category.Category, sheetName string) (Record, bool) {
	spec, ok := n.Lookup(c, sheetName)
	if !ok {
		return Record{}, false
	}
	return Build(row, m, spec, sheetName)
}

// Lookup resolves the spec of c, logging unknown categories
func (n *Normalizer) Lookup(c category.Category, sheetName string) (category.Spec, bool) {
	spec, ok := n.tab.Get(c)
	if !ok {
		n.log.Warn().Str("category", c.String()).Str("sheet", sheetName).Msg("unknown category, rows skipped")
	}
	return spec, ok
}

// Build is Normalize for an already resolved spec
func Build(row sheet.RawRow, m headermap.Mapping, spec category.Spec, sheetName string) (Record, bool) {
	vals := resolve(row, m)

	name, found := declared(row, spec.NameHeaders)
	if !found {
		name = first(vals, headermap.NameAliases)
	}
	phone, found := declared(row, spec.PhoneHeaders)
	if !found {
		phone = first(vals, headermap.PhoneAliases)
	}
	phone = normalize.Digits(phone)
	if name == "" || phone == "" {
		return Record{}, false
	}

	r := Record{
		Category:  spec.Category,
		SheetName: sheetName,
		Name:      name,
		Phone:     phone,
		Fields:    make(map[string]string, len(spec.Extras)),
	}
	for _, x := range spec.Extras {
		if v := vals[x.Field]; v != "" {
			r.Fields[x.Field] = v
		}
	}
	return r, true
}

// resolve returns field -> value where the first non blank cell in row order wins
func resolve(row sheet.RawRow, m headermap.Mapping) map[string]string {
	out := make(map[string]string, row.Len())
	for i := 0; i < row.Len(); i++ {
		c := row.At(i)
		if c.Value == "" {
			continue
		}
		f, ok := m.FieldOf(c.Header)
		if !ok {
			continue
		}
		if _, taken := out[f]; !taken {
			out[f] = c.Value
		}
	}
	return out
}

// declared returns the first non blank value under the headers the category
// names for an identity field, trying them in listed order
func declared(row sheet.RawRow, headers []string) (string, bool) {
	for _, h := range headers {
		want := normalize.Header(h)
		for i := 0; i < row.Len(); i++ {
			if c := row.At(i); c.Value != "" && normalize.Header(c.Header) == want {
				return c.Value, true
			}
		}
	}
	return "", false
}

func first(vals map[string]string, fields []string) string {
	for _, f := range fields {
		if v := vals[f]; v != "" {
			return v
		}
	}
	return ""
}

// Columns lists the insert columns of spec in the order Values fills them
func Columns(spec category.Spec) []string {
	cols := []string{category.NameColumn, spec.PhoneColumn}
	if spec.TypeColumn != "" {
		cols = append(cols, spec.TypeColumn)
	}
	for _, x := range spec.Extras {
		cols = append(cols, x.Column)
	}
	cols = append(cols, "sheet_name")
	if spec.Status != "" {
		cols = append(cols, "status")
	}
	return append(cols, spec.StampColumns...)
}

// Values returns the insert values of r for spec; absent extras are empty strings
func (r Record) Values(spec category.Spec, now time.Time) []any {
	vals := []any{r.Name, r.Phone}
	if spec.TypeColumn != "" {
		vals = append(vals, spec.Key)
	}
	for _, x := range spec.Extras {
		vals = append(vals, r.Fields[x.Field])
	}
	vals = append(vals, r.SheetName)
	if spec.Status != "" {
		vals = append(vals, spec.Status)
	}
	for range spec.StampColumns {
		vals = append(vals, now)
	}
	return vals
}
