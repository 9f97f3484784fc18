// Package notify delivers one batched message per sync pass to every enabled
// channel. Delivery failures are returned to the caller, which only logs them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inquirysync/internal/core/reconcile"
	"inquirysync/internal/platform/logger"
)

// Batch is the notification payload of one pass
type Batch struct {
	RunID     string
	At        time.Time
	Summaries []reconcile.Summary // only categories with new records
}

// Total counts the new records across summaries
func (b Batch) Total() int {
	n := 0
	for _, s := range b.Summaries {
		n += s.NewRecords
	}
	return n
}

// Empty reports a batch with nothing to announce
func (b Batch) Empty() bool { return b.Total() == 0 }

// Channel is one delivery target
type Channel interface {
	Name() string
	Notify(ctx context.Context, b Batch) error
	// Text sends a free form message, used by notify-test
	Text(ctx context.Context, subject, body string) error
}

// Fanout sends to every channel in order and joins their errors
type Fanout struct {
	channels []Channel
	log      logger.Logger
	now      func() time.Time
}

// NewFanout returns a Fanout over chs; nil channels are skipped
func NewFanout(chs ...Channel) *Fanout {
	f := &Fanout{log: *logger.Named("notify"), now: time.Now}
	for _, c := range chs {
		if c != nil {
			f.channels = append(f.channels, c)
		}
	}
	return f
}

// Channels lists the channel names
func (f *Fanout) Channels() []string {
	out := make([]string, len(f.channels))
	for i, c := range f.channels {
		out[i] = c.Name()
	}
	return out
}

// Notify delivers b to every channel; an empty batch sends nothing
func (f *Fanout) Notify(ctx context.Context, b Batch) error {
	if b.Empty() || len(f.channels) == 0 {
		return nil
	}
	var errs []error
	for _, c := range f.channels {
		if err := c.Notify(ctx, b); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
			continue
		}
		logger.C(ctx).Info().Str("channel", c.Name()).Int("records", b.Total()).Msg("notification sent")
	}
	return errors.Join(errs...)
}

// Test sends a fixed test message through every channel
func (f *Fanout) Test(ctx context.Context) error {
	if len(f.channels) == 0 {
		f.log.Warn().Msg("no notification channel enabled")
		return nil
	}
	body := TestMessage(f.now())
	var errs []error
	for _, c := range f.channels {
		if err := c.Text(ctx, TestSubject, body); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
			continue
		}
		f.log.Info().Str("channel", c.Name()).Msg("test message sent")
	}
	return errors.Join(errs...)
}
