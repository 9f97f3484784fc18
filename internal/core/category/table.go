package category

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	perr "inquirysync/internal/platform/errors"
	"inquirysync/internal/platform/validate"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var embedded []byte

// Field binds a canonical field to the physical column it is written to
type Field struct {
	Field  string `yaml:"field" validate:"required"`
	Column string `yaml:"column" validate:"required,sqlident"`
}

// Spec is the data row of one category. Slices are shared; treat as read only.
type Spec struct {
	Category Category `yaml:"-"`
	Key      string   `yaml:"key" validate:"required"`
	Display  string   `yaml:"display" validate:"required"`

	// Table receives inserts, View is read for existing identifiers.
	// Their phone columns differ for the shared customer_inquiries table.
	Table           string `yaml:"table" validate:"required,sqlident"`
	View            string `yaml:"view" validate:"required,sqlident"`
	PhoneColumn     string `yaml:"phone_column" validate:"required,sqlident"`
	ViewPhoneColumn string `yaml:"view_phone_column" validate:"required,sqlident"`

	// TypeColumn stores the category key when several categories share a table
	TypeColumn   string   `yaml:"type_column" validate:"omitempty,sqlident"`
	Status       string   `yaml:"status"`
	StampColumns []string `yaml:"stamp_columns" validate:"dive,sqlident"`

	// NameHeaders and PhoneHeaders are the sheet headers this category is expected to carry
	NameHeaders   []string `yaml:"name_headers" validate:"min=1,dive,required"`
	PhoneHeaders  []string `yaml:"phone_headers" validate:"min=1,dive,required"`
	SheetKeywords []string `yaml:"sheet_keywords"`
	Extras        []Field  `yaml:"extras" validate:"dive"`

	Enabled bool `yaml:"-"`
}

// Table is the immutable category table a process runs with
type Table struct {
	specs []Spec // indexed by Category-1
}

type defaultsFile struct {
	Categories []Spec `yaml:"categories"`
}

// Override is the operator editable subset of a Spec
type Override struct {
	Table           *string  `yaml:"table" validate:"omitempty,sqlident"`
	View            *string  `yaml:"view" validate:"omitempty,sqlident"`
	PhoneColumn     *string  `yaml:"phone_column" validate:"omitempty,sqlident"`
	ViewPhoneColumn *string  `yaml:"view_phone_column" validate:"omitempty,sqlident"`
	SheetKeywords   []string `yaml:"sheet_keywords" validate:"omitempty,dive,required"`
	Enabled         *bool    `yaml:"enabled"`
}

type overrideFile struct {
	Categories map[string]Override `yaml:"categories"`
}

// Default returns the built in table with every category enabled
func Default() *Table {
	t, err := parseDefaults(embedded)
	if err != nil {
		panic(fmt.Sprintf("category: embedded defaults: %v", err))
	}
	return t
}

func parseDefaults(b []byte) (*Table, error) {
	var f defaultsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	if len(f.Categories) != len(All()) {
		return nil, fmt.Errorf("want %d categories, got %d", len(All()), len(f.Categories))
	}
	t := &Table{specs: make([]Spec, len(All()))}
	for i, s := range f.Categories {
		c, ok := Parse(s.Key)
		if !ok || int(c) != i+1 {
			return nil, fmt.Errorf("entry %d: key %q out of order or unknown", i, s.Key)
		}
		if err := validate.Struct(s); err != nil {
			_, msg := validate.FieldAndMessage(err)
			return nil, fmt.Errorf("%s: %s", s.Key, msg)
		}
		s.Category = c
		s.Enabled = true
		t.specs[i] = s
	}
	return t, nil
}

// Load returns Default with the override file at path applied; an empty path is Default
func Load(path string) (*Table, error) {
	t := Default()
	if path == "" {
		return t, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "read categories file %s", path)
	}
	return t.apply(b)
}

func (t *Table) apply(b []byte) (*Table, error) {
	var f overrideFile
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, perr.Wrapf(err, perr.ErrorCodeValidation, "parse categories file")
	}

	out := t.clone()
	for key, o := range f.Categories {
		c, ok := Parse(key)
		if !ok {
			return nil, perr.WithField(perr.Validationf("unknown category %q, want one of %s", key, strings.Join(Keys(), ", ")), key)
		}
		if err := validate.Struct(o); err != nil {
			field, msg := validate.FieldAndMessage(err)
			return nil, perr.WithField(perr.Validationf("%s: %s", key, msg), key+"."+field)
		}
		s := &out.specs[c-1]
		setIf(&s.Table, o.Table)
		setIf(&s.View, o.View)
		setIf(&s.PhoneColumn, o.PhoneColumn)
		setIf(&s.ViewPhoneColumn, o.ViewPhoneColumn)
		if o.SheetKeywords != nil {
			s.SheetKeywords = o.SheetKeywords
		}
		if o.Enabled != nil {
			s.Enabled = *o.Enabled
		}
	}
	return out, nil
}

func setIf(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func (t *Table) clone() *Table {
	return &Table{specs: slices.Clone(t.specs)}
}

// Get returns the spec of c; unknown categories report false
func (t *Table) Get(c Category) (Spec, bool) {
	if !c.Valid() {
		return Spec{}, false
	}
	return t.specs[c-1], true
}

// Specs returns every spec in processing order, enabled or not
func (t *Table) Specs() []Spec { return slices.Clone(t.specs) }

// Enabled returns the enabled specs in processing order
func (t *Table) Enabled() []Spec {
	out := make([]Spec, 0, len(t.specs))
	for _, s := range t.specs {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// Restrict returns a copy where only the listed categories stay enabled.
// An empty list keeps the table as is.
func (t *Table) Restrict(only []Category) *Table {
	if len(only) == 0 {
		return t
	}
	out := t.clone()
	for i := range out.specs {
		out.specs[i].Enabled = out.specs[i].Enabled && slices.Contains(only, out.specs[i].Category)
	}
	return out
}

// MatchKeyword returns the first category, in processing order, whose sheet
// keywords occur in name. Matching is case insensitive.
func (t *Table) MatchKeyword(name string) (Category, bool) {
	lname := strings.ToLower(name)
	for _, s := range t.specs {
		for _, kw := range s.SheetKeywords {
			if kw != "" && strings.Contains(lname, strings.ToLower(kw)) {
				return s.Category, true
			}
		}
	}
	return Unknown, false
}

// ParseList parses comma separated keys; unknown keys are a validation error
func ParseList(keys []string) ([]Category, error) {
	var out []Category
	for _, k := range keys {
		if strings.TrimSpace(k) == "" {
			continue
		}
		c, ok := Parse(k)
		if !ok {
			return nil, perr.WithField(perr.Validationf("unknown category %q", k), "categories")
		}
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out, nil
}
