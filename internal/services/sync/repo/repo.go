// Package repo provides Postgres access for the sync pass
package repo

import (
	"context"
	_ "embed"
	"strconv"
	"strings"

	"inquirysync/internal/core/identity"
	"inquirysync/internal/modkit/repokit"
	perr "inquirysync/internal/platform/errors"
	"inquirysync/internal/services/sync/domain"

	"github.com/jackc/pgx/v5"
)

// Schema creates every table and view the pass writes or reads
//
//go:embed schema.sql
var Schema string

// maxParams is the Postgres bind parameter limit of one statement
const maxParams = 65535

type (
	// PG is a Postgres binder for domain.StorageRepo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a Postgres binder for domain.StorageRepo
func NewPG() repokit.Binder[domain.StorageRepo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.StorageRepo { return &queries{q: q} }

// Migrate applies Schema
func Migrate(ctx context.Context, q repokit.Queryer) error {
	if _, err := q.Exec(ctx, Schema); err != nil {
		return perr.Wrap(err, perr.ErrorCodeDB, "sync: apply schema")
	}
	return nil
}

// FetchIdentifiers reads name and phone of every row in view as text; NULL reads as empty
func (r *queries) FetchIdentifiers(ctx context.Context, view, nameColumn, phoneColumn string) ([]identity.Key, error) {
	sql := "SELECT coalesce(" + ident(nameColumn) + "::text, ''), coalesce(" + ident(phoneColumn) + "::text, '') FROM " + ident(view)
	rows, err := r.q.Query(ctx, sql)
	if err != nil {
		return nil, perr.FromPostgresf(err, "sync: read identifiers from %s", view)
	}
	defer rows.Close()

	var out []identity.Key
	for rows.Next() {
		var name, phone string
		if err := rows.Scan(&name, &phone); err != nil {
			return nil, perr.FromPostgresf(err, "sync: read identifiers from %s", view)
		}
		out = append(out, identity.FromStored(name, phone))
	}
	if err := rows.Err(); err != nil {
		return nil, perr.FromPostgresf(err, "sync: read identifiers from %s", view)
	}
	return out, nil
}

// BulkInsert writes rows with multi row INSERTs, split only when a statement
// would exceed the bind parameter limit. Run it inside a transaction so the
// category commits atomically.
func (r *queries) BulkInsert(ctx context.Context, table string, columns []string, rows [][]any) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, perr.WithField(perr.InvalidArgf("sync: insert into %s without columns", table), table)
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, perr.WithField(perr.InvalidArgf("sync: row %d has %d values for %d columns", i, len(row), len(columns)), table)
		}
	}

	head := insertHead(table, columns)
	per := max(maxParams/len(columns), 1)
	total := 0
	for start := 0; start < len(rows); start += per {
		chunk := rows[start:min(start+per, len(rows))]
		sql, args := insertStatement(head, len(columns), chunk)
		tag, err := r.q.Exec(ctx, sql, args...)
		if err != nil {
			return total, perr.FromPostgresf(err, "sync: insert into %s", table)
		}
		total += int(tag.RowsAffected())
	}
	return total, nil
}

// AppendLog inserts one sync_log row
func (r *queries) AppendLog(ctx context.Context, e domain.LogEntry) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO sync_log (run_id, category, sheet_name, status, records_count, error_message, sync_timestamp)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
	`, e.RunID, e.Category, e.SheetName, string(e.Status), e.Count, e.Message, e.CreatedAt.UTC())
	if err != nil {
		return perr.FromPostgres(err, "sync: append sync_log")
	}
	return nil
}

func insertHead(table string, columns []string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(ident(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ident(c))
	}
	b.WriteString(") VALUES ")
	return b.String()
}

func insertStatement(head string, width int, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString(head)
	args := make([]any, 0, width*len(rows))
	n := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
		}
		b.WriteByte(')')
		args = append(args, row...)
	}
	return b.String(), args
}

// ident quotes a possibly schema qualified identifier
func ident(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}
