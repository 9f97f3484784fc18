// Package service contains the status API workflows
package service

import (
	"context"
	"time"

	"inquirysync/internal/core/category"
	"inquirysync/internal/modkit/repokit"
	perr "inquirysync/internal/platform/errors"
	"inquirysync/internal/platform/logger"
	"inquirysync/internal/platform/store"
	"inquirysync/internal/platform/validate"
	"inquirysync/internal/services/status/domain"
	"inquirysync/internal/services/status/repo"
	syncdomain "inquirysync/internal/services/sync/domain"
)

// Service defines the status service contract
type Service interface {
	domain.ServicePort
}

// Svc implements the status service
type Svc struct {
	Repo   repo.Repo
	Runner syncdomain.RunnerPort
	Table  *category.Table

	// CH is pinged when set
	CH store.Pinger

	// PingTimeout bounds each store ping
	PingTimeout time.Duration

	now func() time.Time
}

// New constructs a status service. runner may be nil for a read only API.
func New(db repokit.TxRunner, binder repokit.Binder[repo.Repo], runner syncdomain.RunnerPort, tab *category.Table) *Svc {
	if db == nil {
		panic("status.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("status.Service requires a non nil Repo binder")
	}
	if tab == nil {
		tab = category.Default()
	}
	return &Svc{
		Repo:        repokit.MustBind(binder, db),
		Runner:      runner,
		Table:       tab,
		PingTimeout: 2 * time.Second,
		now:         time.Now,
	}
}

// Health pings Postgres and, when configured, ClickHouse. Postgres down is an
// Unavailable error carrying the report; ClickHouse down only degrades it.
func (s *Svc) Health(ctx context.Context) (domain.Health, error) {
	h := domain.Health{
		Status:     domain.StateOK,
		Postgres:   domain.StateOK,
		Clickhouse: domain.StateDisabled,
		CheckedAt:  s.now().UTC(),
	}
	log := logger.C(ctx)

	pctx, cancel := context.WithTimeout(ctx, s.PingTimeout)
	err := s.Repo.Ping(pctx)
	cancel()
	if err != nil {
		log.Warn().Err(err).Msg("health: postgres down")
		h.Postgres, h.Status = domain.StateDown, domain.StateDown
	}

	if s.CH != nil {
		cctx, cancel := context.WithTimeout(ctx, s.PingTimeout)
		cerr := s.CH.Ping(cctx)
		cancel()
		h.Clickhouse = domain.StateOK
		if cerr != nil {
			log.Warn().Err(cerr).Msg("health: clickhouse down")
			h.Clickhouse = domain.StateDown
			if h.Status == domain.StateOK {
				h.Status = "degraded"
			}
		}
	}

	if err != nil {
		return h, perr.Unavailablef("postgres unreachable")
	}
	return h, nil
}

// Logs returns recent sync_log rows, newest first. A zero limit means the default.
func (s *Svc) Logs(ctx context.Context, q domain.LogQuery) ([]domain.LogEntry, error) {
	if q.Limit == 0 {
		q.Limit = domain.DefaultLimit
	}
	if err := validate.Struct(q); err != nil {
		field, msg := validate.FieldAndMessage(err)
		return nil, perr.WithField(perr.Validationf("%s", msg), field)
	}
	return s.Repo.RecentLogs(ctx, q)
}

// Categories lists the effective category table in processing order
func (s *Svc) Categories() []domain.CategoryView {
	specs := s.Table.Specs()
	out := make([]domain.CategoryView, 0, len(specs))
	for _, sp := range specs {
		out = append(out, domain.ViewOf(sp))
	}
	return out
}

// Run executes one pass synchronously. A pass already in flight surfaces as Conflict.
func (s *Svc) Run(ctx context.Context, in domain.RunRequest) (domain.PassReport, error) {
	if s.Runner == nil {
		return domain.PassReport{}, perr.Unavailablef("sync runner not configured")
	}
	only, err := category.ParseList(in.Categories)
	if err != nil {
		return domain.PassReport{}, err
	}
	logger.C(ctx).Info().Strs("categories", in.Categories).Msg("manual pass requested")
	return s.Runner.RunPass(ctx, syncdomain.PassOptions{Categories: only})
}
