// Package guardrails holds the budgets and locks that keep passes bounded
// and exclusive
package guardrails

import (
	"context"
	"time"
)

// Timeouts bounds each collaborator call of a pass.
// Zero values mean no extra timeout at that level
type Timeouts struct {
	// Fetch caps listing and reading the spreadsheet
	Fetch time.Duration

	// DB caps each identifier fetch, insert and log write
	DB time.Duration

	// Notify caps the batched notification
	Notify time.Duration

	// Classify caps one classifier call
	Classify time.Duration
}

// ForFetch returns a sub context for the fetch phase
func ForFetch(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Fetch)
}

// ForDB returns a sub context for one storage call
func ForDB(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.DB)
}

// ForNotify returns a sub context for the notification
func ForNotify(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Notify)
}

// ForClassify returns a sub context for one classification
func ForClassify(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Classify)
}

// Remaining returns the time until the deadline on ctx or zero when none is set or already expired
func Remaining(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
	}
	return 0
}

// withChildTimeout takes the tighter of d and the parent remainder; it never
// extends the parent deadline
func withChildTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	if rem := Remaining(parent); rem > 0 && rem < d {
		return context.WithTimeout(parent, rem)
	}
	return context.WithTimeout(parent, d)
}
