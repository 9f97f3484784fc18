// Package repo reads the sync log for the status API
package repo

import (
	"context"
	"time"

	"inquirysync/internal/modkit/repokit"
	perr "inquirysync/internal/platform/errors"
	"inquirysync/internal/services/status/domain"
)

// Repo is the persistence surface of the status API
type Repo interface {
	RecentLogs(ctx context.Context, q domain.LogQuery) ([]domain.LogEntry, error)
	Ping(ctx context.Context) error
}

type (
	// PG binds the repo to a Queryer
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a binder for the Postgres repo
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind wires a Queryer to the repo
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

func (r *queries) RecentLogs(ctx context.Context, q domain.LogQuery) ([]domain.LogEntry, error) {
	const sql = `
select id, run_id, category, sheet_name, status, records_count,
       coalesce(error_message, ''), sync_timestamp
from sync_log
where ($1 = '' or category = $1)
and ($2 = '' or status = $2)
order by sync_timestamp desc, id desc
limit $3`
	rows, err := r.q.Query(ctx, sql, q.Category, q.Status, q.Limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "status: read sync_log")
	}
	defer rows.Close()

	out := make([]domain.LogEntry, 0, q.Limit)
	for rows.Next() {
		var (
			e  domain.LogEntry
			st string
			at time.Time
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Category, &e.SheetName, &st, &e.Count, &e.Message, &at); err != nil {
			return nil, perr.FromPostgres(err, "status: scan sync_log")
		}
		e.Status = domain.LogStatus(st)
		e.CreatedAt = at.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, perr.FromPostgres(err, "status: iterate sync_log")
	}
	return out, nil
}

func (r *queries) Ping(ctx context.Context) error {
	var one int
	if err := r.q.QueryRow(ctx, "select 1").Scan(&one); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "status: postgres ping")
	}
	return nil
}
