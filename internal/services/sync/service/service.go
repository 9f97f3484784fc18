// Package service runs sync passes: read the spreadsheet, route each sheet to
// a category, insert the records storage has not seen and announce them once
package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"inquirysync/internal/adapters/classifier"
	"inquirysync/internal/adapters/notify"
	"inquirysync/internal/core/category"
	"inquirysync/internal/core/headermap"
	"inquirysync/internal/core/identity"
	"inquirysync/internal/core/reconcile"
	"inquirysync/internal/core/record"
	"inquirysync/internal/core/sheet"
	"inquirysync/internal/modkit/repokit"
	perr "inquirysync/internal/platform/errors"
	"inquirysync/internal/platform/logger"
	"inquirysync/internal/services/sync/domain"
	"inquirysync/internal/services/sync/guardrails"

	"github.com/google/uuid"
)

// sampleRows is how many data rows a classifier sees
const sampleRows = 5

// Config holds the pass settings
type Config struct {
	Timeouts guardrails.Timeouts

	// Categories restricts every pass; empty means all enabled categories
	Categories []category.Category
}

// Service implements domain.RunnerPort
type Service struct {
	DB       repokit.TxRunner
	Binder   repokit.Binder[domain.StorageRepo]
	Tabs     domain.TabSource
	Classify domain.Classifier
	Notify   domain.Notifier
	Table    *category.Table
	Recon    *reconcile.Reconciler
	Cfg      Config

	// Lock keeps passes exclusive; nil uses an in process lock
	Lock guardrails.LockFunc

	// Mirror optionally copies log entries, failures are only logged
	Mirror domain.Mirror

	fallback classifier.Heuristic
	now      func() time.Time
	newID    func() string
}

// New constructs the sync service
func New(
	db repokit.TxRunner,
	binder repokit.Binder[domain.StorageRepo],
	tabs domain.TabSource,
	cls domain.Classifier,
	n domain.Notifier,
	tab *category.Table,
	recon *reconcile.Reconciler,
	cfg Config,
) *Service {
	if db == nil {
		panic("sync.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("sync.Service requires a non nil Repo binder")
	}
	if tabs == nil || tab == nil || recon == nil {
		panic("sync.Service requires a tab source, category table and reconciler")
	}
	fb := classifier.Heuristic{Table: tab}
	if cls == nil {
		cls = fb
	}
	return &Service{
		DB: db, Binder: binder,
		Tabs: tabs, Classify: cls, Notify: n,
		Table: tab, Recon: recon, Cfg: cfg,
		Lock:     guardrails.LocalLock(),
		fallback: fb,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

// WithMirror sets the log mirror
func (s *Service) WithMirror(m domain.Mirror) *Service {
	s.Mirror = m
	return s
}

// WithLock replaces the pass lock
func (s *Service) WithLock(l guardrails.LockFunc) *Service {
	if l != nil {
		s.Lock = l
	}
	return s
}

// RunPass runs one pass. A concurrent pass yields ErrorCodeConflict and
// writes nothing. A failed spreadsheet read logs one ALL entry and returns
// the error; per category failures are reported in the PassReport only.
func (s *Service) RunPass(ctx context.Context, opts domain.PassOptions) (domain.PassReport, error) {
	rep := domain.PassReport{RunID: s.newID(), StartedAt: s.now()}
	ctx = logger.WithRun(ctx, rep.RunID)
	log := logger.C(ctx)

	cats, err := s.categories(opts)
	if err != nil {
		return rep, err
	}

	err = s.Lock(ctx, func(ctx context.Context) error {
		return s.pass(ctx, cats, &rep)
	})
	rep.FinishedAt = s.now()
	if guardrails.IsBusy(err) {
		log.Warn().Msg("pass skipped, another pass is running")
		return rep, err
	}
	if err != nil {
		if rep.Error == "" {
			rep.Error = err.Error()
		}
		log.Error().Err(err).Msg("pass failed")
		return rep, err
	}

	log.Info().
		Int("inserted", rep.Inserted).
		Int("categories", len(rep.Outcomes)).
		Bool("notified", rep.Notified).
		Dur("elapsed", rep.FinishedAt.Sub(rep.StartedAt)).
		Msg("pass done")
	return rep, nil
}

// Schedule runs a pass now and then every interval until ctx ends. Ticks that
// fire while a pass runs are dropped.
func (s *Service) Schedule(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		return perr.WithField(perr.InvalidArgf("sync: interval must be positive"), "SYNC_INTERVAL")
	}
	log := logger.C(ctx)
	log.Info().Dur("interval", every).Msg("scheduler started")

	t := time.NewTicker(every)
	defer t.Stop()

	for {
		if _, err := s.RunPass(ctx, domain.PassOptions{}); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("scheduled pass did not complete")
		}
		select {
		case <-t.C:
			log.Debug().Msg("tick dropped, pass overran the interval")
		default:
		}
		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler stopped")
			return nil
		case <-t.C:
		}
	}
}

// categories resolves the pass categories in table order
func (s *Service) categories(opts domain.PassOptions) ([]category.Category, error) {
	want := func(list []category.Category, c category.Category) bool {
		return len(list) == 0 || slices.Contains(list, c)
	}
	var out []category.Category
	for _, spec := range s.Table.Enabled() {
		if want(s.Cfg.Categories, spec.Category) && want(opts.Categories, spec.Category) {
			out = append(out, spec.Category)
		}
	}
	if len(out) == 0 {
		return nil, perr.WithField(perr.Validationf("sync: no enabled category selected"), "categories")
	}
	return out, nil
}

func (s *Service) pass(ctx context.Context, cats []category.Category, rep *domain.PassReport) error {
	log := logger.C(ctx)

	fctx, cancel := guardrails.ForFetch(ctx, s.Cfg.Timeouts)
	tabs, err := s.Tabs.Collect(fctx)
	cancel()
	if err != nil {
		rep.Error = err.Error()
		s.appendLog(ctx, domain.LogEntry{
			RunID:    rep.RunID,
			Category: domain.AllCategories,
			Status:   domain.StatusError,
			Message:  err.Error(),
		})
		return err
	}

	routed := make(map[category.Category][]reconcile.Input, len(cats))
	for _, tab := range tabs {
		sh, cls, err := s.shape(ctx, tab)
		if err != nil {
			log.Warn().Err(err).Str("sheet", tab.Name).Msg("sheet skipped")
			rep.Skipped = append(rep.Skipped, tab.Name)
			continue
		}
		rep.Sheets = append(rep.Sheets, sh.Name)
		log.Info().
			Str("sheet", sh.Name).
			Str("category", cls.Category.String()).
			Float64("confidence", cls.Confidence).
			Str("source", string(cls.Source)).
			Int("rows", len(sh.Rows)).
			Msg("sheet routed")
		routed[cls.Category] = append(routed[cls.Category], reconcile.Input{Sheet: sh, Advisory: cls.Advisory})
	}

	var summaries []reconcile.Summary
	for _, c := range cats {
		inputs := routed[c]
		if len(inputs) == 0 {
			// no sheet for this category, nothing to log
			continue
		}
		out, sum := s.syncCategory(ctx, c, inputs, rep.RunID)
		rep.Outcomes = append(rep.Outcomes, out)
		rep.Inserted += out.Inserted
		if sum.NewRecords > 0 {
			summaries = append(summaries, sum)
		}
	}
	for c := range routed {
		if !slices.Contains(cats, c) {
			log.Debug().Str("category", c.String()).Msg("routed sheets ignored, category not selected")
		}
	}

	if len(summaries) > 0 && s.Notify != nil {
		nctx, cancel := guardrails.ForNotify(ctx, s.Cfg.Timeouts)
		err := s.Notify.Notify(nctx, notify.Batch{RunID: rep.RunID, At: s.now(), Summaries: summaries})
		cancel()
		if err != nil {
			rep.NotifyError = err.Error()
			log.Error().Err(err).Msg("notification failed")
		} else {
			rep.Notified = true
		}
	}
	return nil
}

// shape locates the header row with the static table first. When that fails
// the classifier's advisory mapping gets a chance to name the identity columns
// of each candidate header row.
func (s *Service) shape(ctx context.Context, tab domain.Tab) (sheet.Sheet, classifier.Classification, error) {
	sh, err := sheet.Shape(tab.Name, tab.Values)
	if err == nil {
		return sh, s.classify(ctx, sh), nil
	}
	for _, cand := range sheet.Candidates(tab.Name, tab.Values) {
		cls := s.classify(ctx, cand)
		if len(cls.Advisory) > 0 && headermap.Map(cand.Headers, cls.Advisory).HasIdentity() {
			logger.C(ctx).Info().Str("sheet", tab.Name).Int("header_row", cand.HeaderRow).Msg("header row found through advisory mapping")
			return cand, cls, nil
		}
	}
	return sheet.Sheet{}, classifier.Classification{}, err
}

func (s *Service) classify(ctx context.Context, sh sheet.Sheet) classifier.Classification {
	sample := sh.Rows
	if len(sample) > sampleRows {
		sample = sample[:sampleRows]
	}
	cctx, cancel := guardrails.ForClassify(ctx, s.Cfg.Timeouts)
	defer cancel()
	cls, err := s.Classify.Classify(cctx, sh.Name, sh.Headers, sample)
	if err != nil || !cls.Category.Valid() {
		logger.C(ctx).Warn().Err(err).Str("sheet", sh.Name).Msg("classifier failed, using sheet name")
		cls, _ = s.fallback.Classify(ctx, sh.Name, sh.Headers, sample)
	}
	return cls
}

// syncCategory reconciles, inserts and logs one category; failures stay local
func (s *Service) syncCategory(ctx context.Context, c category.Category, inputs []reconcile.Input, runID string) (domain.Outcome, reconcile.Summary) {
	log := logger.C(ctx).With().Str("category", c.String()).Logger()
	out := domain.Outcome{Category: c.String(), Status: domain.StatusSuccess}
	for _, in := range inputs {
		out.Sheets = append(out.Sheets, in.Sheet.Name)
	}
	entry := domain.LogEntry{RunID: runID, Category: c.String(), SheetName: strings.Join(out.Sheets, ", ")}

	fail := func(err error) (domain.Outcome, reconcile.Summary) {
		log.Error().Err(err).Msg("category failed")
		out.Status, out.Error = domain.StatusError, err.Error()
		entry.Status, entry.Message = domain.StatusError, err.Error()
		s.appendLog(ctx, entry)
		return out, reconcile.Summary{}
	}

	spec, ok := s.Table.Get(c)
	if !ok {
		return fail(perr.NotFoundf("sync: category %s not configured", c))
	}

	dctx, cancel := guardrails.ForDB(ctx, s.Cfg.Timeouts)
	keys, err := s.Binder.Bind(s.DB).FetchIdentifiers(dctx, spec.View, category.NameColumn, spec.ViewPhoneColumn)
	cancel()
	if err != nil {
		return fail(err)
	}

	res := s.Recon.Reconcile(c, inputs, identity.NewSet(keys...))
	out.Read = res.Summary.TotalRecords
	out.Dropped, out.Existing, out.Duplicate = res.Stats.Dropped, res.Stats.Existing, res.Stats.Duplicate

	if len(res.New) > 0 {
		now := s.now()
		rows := make([][]any, len(res.New))
		for i, r := range res.New {
			rows[i] = r.Values(spec, now)
		}
		cols := record.Columns(spec)

		dctx, cancel := guardrails.ForDB(ctx, s.Cfg.Timeouts)
		err := s.DB.Tx(dctx, func(q repokit.Queryer) error {
			n, err := s.Binder.Bind(q).BulkInsert(dctx, spec.Table, cols, rows)
			out.Inserted = n
			return err
		})
		cancel()
		if err != nil {
			out.Inserted = 0
			return fail(err)
		}
	}

	entry.Status, entry.Count = domain.StatusSuccess, out.Inserted
	s.appendLog(ctx, entry)
	log.Info().
		Int("read", out.Read).
		Int("inserted", out.Inserted).
		Int("dropped", out.Dropped).
		Int("existing", out.Existing).
		Int("duplicate", out.Duplicate).
		Msg("category synced")
	return out, res.Summary
}

// appendLog writes e to sync_log and the mirror; failures are logged only
func (s *Service) appendLog(ctx context.Context, e domain.LogEntry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	log := logger.C(ctx)

	dctx, cancel := guardrails.ForDB(ctx, s.Cfg.Timeouts)
	err := s.Binder.Bind(s.DB).AppendLog(dctx, e)
	cancel()
	if err != nil {
		log.Error().Err(err).Str("category", e.Category).Msg("sync_log write failed")
	}

	if s.Mirror != nil {
		dctx, cancel := guardrails.ForDB(ctx, s.Cfg.Timeouts)
		err := s.Mirror.Mirror(dctx, e)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("sync_log mirror failed")
		}
	}
}
