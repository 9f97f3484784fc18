package domain

import (
	"context"
	"time"

	"inquirysync/internal/adapters/classifier"
	"inquirysync/internal/adapters/notify"
	"inquirysync/internal/core/identity"
)

// RunnerPort is what the binaries and the status API call
type RunnerPort interface {
	RunPass(ctx context.Context, opts PassOptions) (PassReport, error)
	Schedule(ctx context.Context, every time.Duration) error
}

// SheetSource lists and reads spreadsheet tabs
type SheetSource interface {
	ListSheetNames(ctx context.Context) ([]string, error)
	FetchValues(ctx context.Context, sheet string) ([][]string, error)
}

// TabSource yields the tabs selected for one pass
type TabSource interface {
	Collect(ctx context.Context) ([]Tab, error)
}

// Classifier routes a shaped sheet to a category
type Classifier = classifier.Classifier

// Notifier delivers the pass batch
type Notifier interface {
	Notify(ctx context.Context, b notify.Batch) error
}

// StorageRepo is the Postgres surface of a pass
type StorageRepo interface {
	// FetchIdentifiers returns the identity of every stored row in view
	FetchIdentifiers(ctx context.Context, view, nameColumn, phoneColumn string) ([]identity.Key, error)

	// BulkInsert writes rows positionally against columns, returning rows written
	BulkInsert(ctx context.Context, table string, columns []string, rows [][]any) (int, error)

	// AppendLog inserts one sync_log row
	AppendLog(ctx context.Context, e LogEntry) error
}

// Mirror copies log entries to a secondary store
type Mirror interface {
	Mirror(ctx context.Context, e LogEntry) error
}
