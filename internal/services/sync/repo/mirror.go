package repo

import (
	"context"

	"inquirysync/internal/platform/store"
	"inquirysync/internal/services/sync/domain"
)

// DefaultMirrorTable is the ClickHouse table sync log entries are copied to
const DefaultMirrorTable = "sync_log"

// MirrorDDL creates the mirror table
const MirrorDDL = `
CREATE TABLE IF NOT EXISTS sync_log (
    run_id         String,
    category       LowCardinality(String),
    sheet_name     String,
    status         LowCardinality(String),
    records_count  UInt32,
    error_message  String,
    sync_timestamp DateTime64(3, 'UTC')
) ENGINE = MergeTree
ORDER BY (sync_timestamp, category)`

// CHMirror appends log entries to ClickHouse
type CHMirror struct {
	ch    store.Clickhouse
	table string
}

// NewCHMirror returns a mirror over ch; an empty table uses DefaultMirrorTable
func NewCHMirror(ch store.Clickhouse, table string) *CHMirror {
	if table == "" {
		table = DefaultMirrorTable
	}
	return &CHMirror{ch: ch, table: table}
}

// Mirror implements domain.Mirror
func (m *CHMirror) Mirror(ctx context.Context, e domain.LogEntry) error {
	return m.ch.Insert(ctx, m.table, [][]any{{
		e.RunID,
		e.Category,
		e.SheetName,
		string(e.Status),
		uint32(max(e.Count, 0)),
		e.Message,
		e.CreatedAt.UTC(),
	}})
}
