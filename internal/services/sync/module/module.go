// Package module wires the sync service from configuration
package module

import (
	"context"
	"time"

	"inquirysync/internal/adapters/classifier"
	"inquirysync/internal/adapters/notify"
	"inquirysync/internal/adapters/notify/email"
	"inquirysync/internal/adapters/notify/kakao"
	"inquirysync/internal/adapters/notify/slack"
	"inquirysync/internal/adapters/sheets"
	"inquirysync/internal/core/category"
	"inquirysync/internal/core/reconcile"
	"inquirysync/internal/core/record"
	"inquirysync/internal/modkit"
	"inquirysync/internal/modkit/repokit"
	perr "inquirysync/internal/platform/errors"
	phttp "inquirysync/internal/platform/net/http"
	"inquirysync/internal/services/sync/domain"
	"inquirysync/internal/services/sync/guardrails"
	"inquirysync/internal/services/sync/ingest"
	"inquirysync/internal/services/sync/repo"
	"inquirysync/internal/services/sync/service"
)

// Ports defines the sync module ports
type Ports struct {
	Runner   domain.RunnerPort
	Notifier *notify.Fanout
	Table    *category.Table
}

// Module implements the sync module
type Module struct {
	deps  modkit.Deps
	opts  Options
	ports Ports
}

// New builds the adapters and the service. Configuration problems are
// returned; the binaries treat them as fatal.
func New(ctx context.Context, deps modkit.Deps) (*Module, error) {
	return NewWithOptions(ctx, deps, FromConfig(deps.Cfg))
}

// NewWithOptions is New with explicit options
func NewWithOptions(ctx context.Context, deps modkit.Deps, opts Options) (*Module, error) {
	if deps.PG == nil {
		return nil, perr.InvalidArgf("sync: postgres store is required")
	}
	tab, err := category.Load(opts.CategoriesFile)
	if err != nil {
		return nil, err
	}
	only, err := category.ParseList(opts.Categories)
	if err != nil {
		return nil, err
	}

	src, err := sheets.New(ctx, opts.Sheets)
	if err != nil {
		return nil, err
	}
	tabs := ingest.NewCollector(src, ingest.Options{
		Select: opts.Select,
		Ignore: opts.Ignore,
		Keep: func(name string) bool {
			_, ok := tab.MatchKeyword(name)
			return ok
		},
	})

	var cls domain.Classifier = classifier.Heuristic{Table: tab}
	if opts.ClassifierEnabled {
		cls = classifier.NewModel(opts.Classifier, tab)
	}

	fan, err := NewNotifier(opts.Notify, tab)
	if err != nil {
		return nil, err
	}

	recon := reconcile.New(
		record.NewNormalizer(tab, deps.Log),
		deps.Log,
		reconcile.WithLatest(opts.Notify.PerCategory),
	)

	if opts.Migrate {
		if err := repo.Migrate(ctx, deps.PG); err != nil {
			return nil, err
		}
	}

	db := repokit.WithBeginHooks(deps.PG, repokit.StatementTimeout(opts.Timeouts.DB))
	svc := service.New(db, repo.NewPG(), tabs, cls, fan, tab, recon, service.Config{
		Timeouts:   opts.Timeouts,
		Categories: only,
	}).WithLock(guardrails.AdvisoryLock(deps.PG, opts.LockKey))

	if deps.CH != nil && opts.MirrorTable != "" {
		svc.WithMirror(repo.NewCHMirror(deps.CH, opts.MirrorTable))
	}

	m := &Module{deps: deps, opts: opts}
	m.ports = Ports{Runner: svc, Notifier: fan, Table: tab.Restrict(only)}
	return m, nil
}

// NewNotifier builds the fan-out over every enabled channel
func NewNotifier(o NotifyOptions, tab *category.Table) (*notify.Fanout, error) {
	f := notify.Formatter{Table: tab, PerCategory: o.PerCategory, DashboardURL: o.DashboardURL}
	var chs []notify.Channel
	if o.SlackEnabled {
		c, err := slack.New(o.Slack, f)
		if err != nil {
			return nil, err
		}
		chs = append(chs, c)
	}
	if o.KakaoEnabled {
		c, err := kakao.New(nil, o.Kakao, f)
		if err != nil {
			return nil, err
		}
		chs = append(chs, c)
	}
	if o.EmailEnabled {
		c, err := email.New(o.Email, f)
		if err != nil {
			return nil, err
		}
		chs = append(chs, c)
	}
	return notify.NewFanout(chs...), nil
}

// Name returns the module name
func (m *Module) Name() string { return "sync" }

// MountRoutes mounts nothing; the status module exposes the runner over http
func (m *Module) MountRoutes(_ phttp.Router) {}

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Interval is the configured schedule interval
func (m *Module) Interval() time.Duration { return m.opts.Interval }
