// Package reconcile finds the sheet records not yet represented in storage.
// It is pure: the caller fetches existing identities and performs the insert.
package reconcile

import (
	"strings"

	"inquirysync/internal/core/category"
	"inquirysync/internal/core/headermap"
	"inquirysync/internal/core/identity"
	"inquirysync/internal/core/record"
	"inquirysync/internal/core/sheet"
	"inquirysync/internal/platform/logger"
)

// LatestK caps the records a summary carries for notifications
const LatestK = 3

// Input is one shaped sheet routed to a category
type Input struct {
	Sheet    sheet.Sheet
	Advisory map[string]string // classifier suggested header -> field
}

// Summary describes the new records of one category for notification
type Summary struct {
	Category     category.Category
	SheetName    string
	NewRecords   int
	TotalRecords int             // valid rows read, before dedup
	Latest       []record.Record // last LatestK of the new records
}

// Stats counts why rows were not new
type Stats struct {
	Dropped   int // missing name or phone
	Existing  int // already stored
	Duplicate int // repeated within this pass
}

// Result is the outcome of one category
type Result struct {
	Category category.Category
	New      []record.Record
	Summary  Summary
	Stats    Stats
}

// Reconciler runs the delta for one category at a time
type Reconciler struct {
	norm *record.Normalizer
	k    int
	log  logger.Logger
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithLatest overrides LatestK
func WithLatest(k int) Option {
	return func(r *Reconciler) {
		if k > 0 {
			r.k = k
		}
	}
}

// New returns a Reconciler
func New(norm *record.Normalizer, log logger.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{norm: norm, k: LatestK, log: log.With().Str("component", "reconcile").Logger()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Reconcile maps and normalizes every row of inputs, in order, and keeps the
// records whose identity is neither in existing nor seen earlier in this call.
// existing is not modified. An unknown category yields an empty result.
func (r *Reconciler) Reconcile(c category.Category, inputs []Input, existing identity.Set) Result {
	res := Result{Category: c, Summary: Summary{Category: c, SheetName: sheetNames(inputs)}}

	spec, ok := r.norm.Lookup(c, res.Summary.SheetName)
	if !ok {
		return res
	}

	seen := identity.Set{}
	for _, in := range inputs {
		m := headermap.Map(in.Sheet.Headers, in.Advisory)
		for _, row := range in.Sheet.Rows {
			rec, ok := record.Build(row, m, spec, in.Sheet.Name)
			if !ok {
				res.Stats.Dropped++
				continue
			}
			res.Summary.TotalRecords++

			key := identity.Of(rec.Name, rec.Phone)
			switch {
			case existing.Has(key):
				res.Stats.Existing++
			case !seen.Add(key):
				res.Stats.Duplicate++
			default:
				res.New = append(res.New, rec)
			}
		}
	}

	res.Summary.NewRecords = len(res.New)
	res.Summary.Latest = latest(res.New, r.k)

	r.log.Debug().
		Str("category", c.String()).
		Int("new", len(res.New)).
		Int("total", res.Summary.TotalRecords).
		Int("dropped", res.Stats.Dropped).
		Int("existing", res.Stats.Existing).
		Int("duplicate", res.Stats.Duplicate).
		Msg("reconciled")
	return res
}

func latest(recs []record.Record, k int) []record.Record {
	if len(recs) > k {
		recs = recs[len(recs)-k:]
	}
	out := make([]record.Record, len(recs))
	copy(out, recs)
	return out
}

func sheetNames(inputs []Input) string {
	names := make([]string, 0, len(inputs))
	for _, in := range inputs {
		names = append(names, in.Sheet.Name)
	}
	return strings.Join(names, ", ")
}
