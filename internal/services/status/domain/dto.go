// Package domain holds the types the status API reads and returns
package domain

import (
	"time"

	"inquirysync/internal/core/category"
	"inquirysync/internal/core/record"
	syncdomain "inquirysync/internal/services/sync/domain"
)

// Log listing bounds
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// LogEntry is one sync_log row
type LogEntry = syncdomain.LogEntry

// LogStatus is SUCCESS or ERROR
type LogStatus = syncdomain.Status

// PassReport is the result of a manual pass
type PassReport = syncdomain.PassReport

// LogQuery filters the recent sync log; zero values mean no filter
type LogQuery struct {
	Limit    int    `json:"limit" validate:"min=1,max=500"`
	Category string `json:"category" validate:"omitempty,oneof=ALL estimate consultation inquiry cctv_management careon_application"`
	Status   string `json:"status" validate:"omitempty,oneof=SUCCESS ERROR"`
}

// RunRequest narrows a manual pass; no categories means every enabled one
type RunRequest struct {
	Categories []string `json:"categories" validate:"max=5,unique,dive,oneof=estimate consultation inquiry cctv_management careon_application"`
}

// CategoryView is the public shape of one category table row
type CategoryView struct {
	Key           string   `json:"key"`
	Display       string   `json:"display"`
	Table         string   `json:"table"`
	View          string   `json:"view"`
	NameHeaders   []string `json:"name_headers"`
	PhoneHeaders  []string `json:"phone_headers"`
	SheetKeywords []string `json:"sheet_keywords,omitempty"`
	Columns       []string `json:"columns"`
	Enabled       bool     `json:"enabled"`
}

// ViewOf flattens a category spec
func ViewOf(s category.Spec) CategoryView {
	return CategoryView{
		Key:           s.Key,
		Display:       s.Display,
		Table:         s.Table,
		View:          s.View,
		NameHeaders:   s.NameHeaders,
		PhoneHeaders:  s.PhoneHeaders,
		SheetKeywords: s.SheetKeywords,
		Columns:       record.Columns(s),
		Enabled:       s.Enabled,
	}
}

// Health reports backend reachability
type Health struct {
	Status     string    `json:"status"`
	Postgres   string    `json:"postgres"`
	Clickhouse string    `json:"clickhouse"`
	CheckedAt  time.Time `json:"checked_at"`
}

// Health states
const (
	StateOK       = "ok"
	StateDown     = "down"
	StateDisabled = "disabled"
)
