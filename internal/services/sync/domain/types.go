// Package domain holds the types and ports of the sync pass
package domain

import (
	"time"

	"inquirysync/internal/core/category"
)

// Status of a sync log entry
type Status string

// Log statuses
const (
	StatusSuccess Status = "SUCCESS"
	StatusError   Status = "ERROR"
)

// AllCategories is the category value of entries not tied to one category
const AllCategories = "ALL"

// LogEntry is one append only sync_log row
type LogEntry struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Category  string    `json:"category"` // category key or ALL
	SheetName string    `json:"sheet_name"`
	Status    Status    `json:"status"`
	Count     int       `json:"records_count"`
	Message   string    `json:"error_message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Tab is one fetched spreadsheet tab before shaping
type Tab struct {
	Name   string
	Values [][]string
}

// PassOptions narrows a pass; an empty Categories means every enabled category
type PassOptions struct {
	Categories []category.Category
}

// Outcome is the result of one category within a pass
type Outcome struct {
	Category  string   `json:"category"`
	Sheets    []string `json:"sheets"`
	Status    Status   `json:"status"`
	Read      int      `json:"read"` // valid records before dedup
	Inserted  int      `json:"inserted"`
	Dropped   int      `json:"dropped"`
	Existing  int      `json:"existing"`
	Duplicate int      `json:"duplicate"`
	Error     string   `json:"error,omitempty"`
}

// PassReport summarizes a pass
type PassReport struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Sheets      []string  `json:"sheets"`
	Skipped     []string  `json:"skipped,omitempty"` // sheets that failed shaping
	Outcomes    []Outcome `json:"outcomes"`
	Inserted    int       `json:"inserted"`
	Notified    bool      `json:"notified"`
	NotifyError string    `json:"notify_error,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Failed reports whether any category or the pass itself failed
func (r PassReport) Failed() bool {
	if r.Error != "" {
		return true
	}
	for _, o := range r.Outcomes {
		if o.Status == StatusError {
			return true
		}
	}
	return false
}
