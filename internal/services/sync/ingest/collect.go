// Package ingest picks the spreadsheet tabs a pass reads and fetches them
package ingest

import (
	"context"
	"time"

	"inquirysync/internal/core/sheet"
	perr "inquirysync/internal/platform/errors"
	"inquirysync/internal/platform/logger"
	"inquirysync/internal/services/sync/domain"
)

// Selection modes
const (
	SelectAll   = "all"
	SelectToday = "today"
)

// Options configures a Collector
type Options struct {
	Select string   // all | today
	Ignore []string // tab names never read
	// Keep marks tabs always read in today mode, such as standing application sheets
	Keep func(name string) bool
	Now  func() time.Time
}

// Collector reads the selected tabs of one spreadsheet
type Collector struct {
	src  domain.SheetSource
	opts Options
}

// NewCollector returns a Collector over src
func NewCollector(src domain.SheetSource, o Options) *Collector {
	if o.Select == "" {
		o.Select = SelectAll
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return &Collector{src: src, opts: o}
}

// Select applies the ignore list and the selection mode to names
func (c *Collector) Select(names []string) []string {
	names = sheet.Without(names, c.opts.Ignore)
	if c.opts.Select == SelectToday {
		return sheet.SelectToday(names, c.opts.Now(), c.opts.Keep)
	}
	return names
}

// Collect lists, selects and fetches tabs in spreadsheet order. Any fetch
// failure fails the whole collection.
func (c *Collector) Collect(ctx context.Context) ([]domain.Tab, error) {
	names, err := c.src.ListSheetNames(ctx)
	if err != nil {
		return nil, perr.WithOp(err, "ingest.list")
	}
	picked := c.Select(names)
	logger.C(ctx).Info().
		Int("sheets", len(names)).
		Strs("selected", picked).
		Str("mode", c.opts.Select).
		Msg("sheets selected")

	tabs := make([]domain.Tab, 0, len(picked))
	for _, n := range picked {
		vals, err := c.src.FetchValues(ctx, n)
		if err != nil {
			return nil, perr.WithOp(err, "ingest.fetch")
		}
		tabs = append(tabs, domain.Tab{Name: n, Values: vals})
	}
	return tabs, nil
}
