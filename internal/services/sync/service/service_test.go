package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"inquirysync/internal/adapters/classifier"
	"inquirysync/internal/adapters/notify"
	"inquirysync/internal/core/category"
	"inquirysync/internal/core/identity"
	"inquirysync/internal/core/reconcile"
	"inquirysync/internal/core/record"
	"inquirysync/internal/core/sheet"
	"inquirysync/internal/modkit/repokit"
	perr "inquirysync/internal/platform/errors"
	"inquirysync/internal/platform/store"
	"inquirysync/internal/platform/testkit"
	"inquirysync/internal/services/sync/domain"
	"inquirysync/internal/services/sync/guardrails"

	"github.com/rs/zerolog"
)

// fakeDB runs Tx inline; the repo fake ignores the querier
type fakeDB struct{ txs int }

func (d *fakeDB) Exec(context.Context, string, ...any) (store.CommandTag, error) { return nil, nil }
func (d *fakeDB) Query(context.Context, string, ...any) (store.Rows, error)      { return nil, nil }
func (d *fakeDB) QueryRow(context.Context, string, ...any) store.Row             { return nil }
func (d *fakeDB) Tx(_ context.Context, fn func(store.RowQuerier) error) error {
	d.txs++
	return fn(d)
}
func (d *fakeDB) Session(_ context.Context, fn func(store.RowQuerier) error) error { return fn(d) }

// memRepo keeps inserted identities per view
type memRepo struct {
	mu        sync.Mutex
	tab       *category.Table
	stored    map[string][]identity.Key
	logs      []domain.LogEntry
	inserts   map[string]int
	fetchErr  map[string]error
	insertErr map[string]error
}

func newMemRepo() *memRepo {
	return &memRepo{
		tab:       category.Default(),
		stored:    map[string][]identity.Key{},
		inserts:   map[string]int{},
		fetchErr:  map[string]error{},
		insertErr: map[string]error{},
	}
}

func (m *memRepo) FetchIdentifiers(_ context.Context, view, _, _ string) ([]identity.Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fetchErr[view]; err != nil {
		return nil, err
	}
	return append([]identity.Key(nil), m.stored[view]...), nil
}

func (m *memRepo) BulkInsert(_ context.Context, table string, _ []string, rows [][]any) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.insertErr[table]; err != nil {
		return 0, err
	}
	for _, r := range rows {
		view := m.viewOf(table, r)
		m.stored[view] = append(m.stored[view], identity.FromStored(r[0], r[1]))
		m.inserts[view]++
	}
	return len(rows), nil
}

func (m *memRepo) viewOf(table string, row []any) string {
	for _, s := range m.tab.Specs() {
		if s.Table == table && (s.TypeColumn == "" || row[2] == s.Key) {
			return s.View
		}
	}
	return table
}

func (m *memRepo) AppendLog(_ context.Context, e domain.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, e)
	return nil
}

type fakeTabs struct {
	tabs []domain.Tab
	err  error
	hook func()
}

func (f *fakeTabs) Collect(context.Context) ([]domain.Tab, error) {
	if f.hook != nil {
		f.hook()
	}
	return f.tabs, f.err
}

// byName routes sheets by a fixed table
type byName map[string]category.Category

func (b byName) Classify(_ context.Context, name string, _ []string, _ []sheet.RawRow) (classifier.Classification, error) {
	c, ok := b[name]
	if !ok {
		return classifier.Classification{}, errors.New("model unavailable")
	}
	return classifier.Classification{Category: c, Confidence: 0.9, Source: classifier.SourceModel}, nil
}

type fakeNotifier struct {
	batches []notify.Batch
	err     error
}

func (f *fakeNotifier) Notify(_ context.Context, b notify.Batch) error {
	f.batches = append(f.batches, b)
	return f.err
}

type fixture struct {
	svc   *Service
	db    *fakeDB
	repo  *memRepo
	tabs  *fakeTabs
	notif *fakeNotifier
}

func newFixture(t *testing.T, cls domain.Classifier, tabs ...domain.Tab) *fixture {
	t.Helper()
	f := &fixture{db: &fakeDB{}, repo: newMemRepo(), tabs: &fakeTabs{tabs: tabs}, notif: &fakeNotifier{}}
	tab := category.Default()
	recon := reconcile.New(record.NewNormalizer(tab, zerolog.Nop()), zerolog.Nop())
	binder := repokit.BindFunc[domain.StorageRepo](func(repokit.Queryer) domain.StorageRepo { return f.repo })
	f.svc = New(f.db, binder, f.tabs, cls, f.notif, tab, recon, Config{})
	f.svc.now = func() time.Time { return time.Date(2025, 7, 17, 9, 0, 0, 0, time.UTC) }
	n := 0
	f.svc.newID = func() string { n++; return "run-" + string(rune('0'+n)) }
	return f
}

var estimateTab = domain.Tab{Name: "견적 7.17", Values: [][]string{
	{"이름", "전화번호", "지역"},
	{"홍길동", "010-1234-5678", "서울"},
	{"김철수", "010 2222 3333", "부산"},
	{"홍길동", "01012345678", "서울"}, // duplicate within the pass
	{"", "010-9999-0000", ""},    // dropped
}}

var careonTab = domain.Tab{Name: "케어온 신청", Values: [][]string{
	{"신청 현황"},
	{"이름", "연락처", "설치장소"},
	{"박민수", "010-5555-6666", "매장"},
}}

func TestRunPassInsertsAndNotifies(t *testing.T) {
	f := newFixture(t, byName{estimateTab.Name: category.Estimate, careonTab.Name: category.CareonApplication}, estimateTab, careonTab)
	f.repo.stored["estimates"] = []identity.Key{identity.Of("김철수", "01022223333")}

	rep, err := f.svc.RunPass(context.Background(), domain.PassOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if rep.RunID != "run-1" || rep.Inserted != 2 || rep.Failed() || !rep.Notified {
		t.Fatalf("report %+v", rep)
	}
	if len(rep.Outcomes) != 2 {
		t.Fatalf("outcomes %+v", rep.Outcomes)
	}
	est := rep.Outcomes[0]
	if est.Category != "estimate" || est.Read != 3 || est.Inserted != 1 || est.Dropped != 1 || est.Existing != 1 || est.Duplicate != 1 {
		t.Fatalf("estimate outcome %+v", est)
	}
	if f.repo.inserts["estimates"] != 1 || f.repo.inserts["careon_applications"] != 1 {
		t.Fatalf("inserts %v", f.repo.inserts)
	}

	if len(f.repo.logs) != 2 {
		t.Fatalf("logs %+v", f.repo.logs)
	}
	if l := f.repo.logs[0]; l.Category != "estimate" || l.Status != domain.StatusSuccess || l.Count != 1 || l.SheetName != estimateTab.Name || l.RunID != "run-1" {
		t.Fatalf("log %+v", l)
	}

	if len(f.notif.batches) != 1 {
		t.Fatalf("batches %d", len(f.notif.batches))
	}
	b := f.notif.batches[0]
	if b.RunID != "run-1" || b.Total() != 2 || len(b.Summaries) != 2 {
		t.Fatalf("batch %+v", b)
	}
	if b.Summaries[0].Latest[0].Name != "홍길동" {
		t.Fatalf("latest %+v", b.Summaries[0].Latest)
	}
}

func TestRunPassIsIdempotent(t *testing.T) {
	f := newFixture(t, byName{estimateTab.Name: category.Estimate}, estimateTab)
	if _, err := f.svc.RunPass(context.Background(), domain.PassOptions{}); err != nil {
		t.Fatal(err)
	}
	rep, err := f.svc.RunPass(context.Background(), domain.PassOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Inserted != 0 || rep.Notified {
		t.Fatalf("second pass %+v", rep)
	}
	if len(f.notif.batches) != 1 {
		t.Fatalf("notified %d times", len(f.notif.batches))
	}
	last := f.repo.logs[len(f.repo.logs)-1]
	if last.Status != domain.StatusSuccess || last.Count != 0 {
		t.Fatalf("last log %+v", last)
	}
	if f.db.txs != 1 {
		t.Fatalf("empty pass opened a transaction: %d", f.db.txs)
	}
}

func TestRunPassFetchFailure(t *testing.T) {
	f := newFixture(t, byName{})
	f.tabs.err = perr.Unavailablef("sheets: status 503 after 5 attempts")

	rep, err := f.svc.RunPass(context.Background(), domain.PassOptions{})
	if !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("want unavailable, got %v", err)
	}
	if !rep.Failed() || len(rep.Outcomes) != 0 {
		t.Fatalf("report %+v", rep)
	}
	if len(f.repo.logs) != 1 || f.repo.logs[0].Category != domain.AllCategories || f.repo.logs[0].Status != domain.StatusError {
		t.Fatalf("logs %+v", f.repo.logs)
	}
	testkit.MustContain(t, f.repo.logs[0].Message, "503")
	if len(f.notif.batches) != 0 {
		t.Fatal("notified on failed pass")
	}
}

func TestRunPassIsolatesCategoryFailure(t *testing.T) {
	f := newFixture(t, byName{estimateTab.Name: category.Estimate, careonTab.Name: category.CareonApplication}, estimateTab, careonTab)
	f.repo.insertErr["customer_inquiries"] = perr.DBf("insert failed")

	rep, err := f.svc.RunPass(context.Background(), domain.PassOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !rep.Failed() || rep.Inserted != 1 {
		t.Fatalf("report %+v", rep)
	}
	if rep.Outcomes[0].Status != domain.StatusError || rep.Outcomes[0].Inserted != 0 || rep.Outcomes[1].Status != domain.StatusSuccess {
		t.Fatalf("outcomes %+v", rep.Outcomes)
	}
	if f.repo.logs[0].Status != domain.StatusError || f.repo.logs[0].Message == "" || f.repo.logs[1].Status != domain.StatusSuccess {
		t.Fatalf("logs %+v", f.repo.logs)
	}
	b := f.notif.batches[0]
	if len(b.Summaries) != 1 || b.Summaries[0].Category != category.CareonApplication {
		t.Fatalf("batch %+v", b)
	}
}

func TestRunPassFetchIdentifiersFailure(t *testing.T) {
	f := newFixture(t, byName{estimateTab.Name: category.Estimate}, estimateTab)
	f.repo.fetchErr["estimates"] = perr.DBf("timeout")
	rep, err := f.svc.RunPass(context.Background(), domain.PassOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Outcomes[0].Status != domain.StatusError || f.repo.inserts["estimates"] != 0 {
		t.Fatalf("report %+v", rep)
	}
}

func TestRunPassSkipsUnshapedSheets(t *testing.T) {
	junk := domain.Tab{Name: "메모", Values: [][]string{{"아무거나"}, {"내용"}, {"x"}}}
	empty := domain.Tab{Name: "빈 시트"}
	f := newFixture(t, byName{estimateTab.Name: category.Estimate, empty.Name: category.Inquiry}, junk, estimateTab, empty)

	rep, err := f.svc.RunPass(context.Background(), domain.PassOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Skipped) != 1 || rep.Skipped[0] != "메모" {
		t.Fatalf("skipped %v", rep.Skipped)
	}
	// the empty sheet still logs SUCCESS with count 0
	var inquiry *domain.LogEntry
	for i := range f.repo.logs {
		if f.repo.logs[i].Category == "inquiry" {
			inquiry = &f.repo.logs[i]
		}
	}
	if inquiry == nil || inquiry.Status != domain.StatusSuccess || inquiry.Count != 0 {
		t.Fatalf("inquiry log %+v", inquiry)
	}
	if len(f.notif.batches[0].Summaries) != 1 {
		t.Fatalf("empty category announced: %+v", f.notif.batches[0].Summaries)
	}
}

func TestRunPassFallsBackToHeuristic(t *testing.T) {
	// the classifier knows nothing, so the sheet name decides
	f := newFixture(t, byName{}, careonTab, estimateTab)
	rep, err := f.svc.RunPass(context.Background(), domain.PassOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if f.repo.inserts["careon_applications"] != 1 || f.repo.inserts["cctv_management"] != 2 {
		t.Fatalf("inserts %v report %+v", f.repo.inserts, rep)
	}
}

func TestRunPassCategorySubset(t *testing.T) {
	f := newFixture(t, byName{estimateTab.Name: category.Estimate, careonTab.Name: category.CareonApplication}, estimateTab, careonTab)
	rep, err := f.svc.RunPass(context.Background(), domain.PassOptions{Categories: []category.Category{category.CareonApplication}})
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Outcomes) != 1 || rep.Outcomes[0].Category != "careon_application" || f.repo.inserts["estimates"] != 0 {
		t.Fatalf("report %+v", rep)
	}

	f.svc.Cfg.Categories = []category.Category{category.Estimate}
	_, err = f.svc.RunPass(context.Background(), domain.PassOptions{Categories: []category.Category{category.CareonApplication}})
	if !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("disjoint subsets: %v", err)
	}
}

func TestRunPassNotifyFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, byName{estimateTab.Name: category.Estimate}, estimateTab)
	f.notif.err = errors.New("slack: 500")
	rep, err := f.svc.RunPass(context.Background(), domain.PassOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Notified || rep.NotifyError == "" || rep.Inserted != 2 {
		t.Fatalf("report %+v", rep)
	}
}

func TestRunPassBusy(t *testing.T) {
	f := newFixture(t, byName{estimateTab.Name: category.Estimate}, estimateTab)
	var inner error
	f.tabs.hook = func() {
		_, inner = f.svc.RunPass(context.Background(), domain.PassOptions{})
	}
	if _, err := f.svc.RunPass(context.Background(), domain.PassOptions{}); err != nil {
		t.Fatal(err)
	}
	if !perr.IsCode(inner, perr.ErrorCodeConflict) || !guardrails.IsBusy(inner) {
		t.Fatalf("nested pass: %v", inner)
	}
	if len(f.repo.logs) != 1 {
		t.Fatalf("busy pass wrote logs: %+v", f.repo.logs)
	}
}

func TestSchedule(t *testing.T) {
	f := newFixture(t, byName{estimateTab.Name: category.Estimate}, estimateTab)
	ctx, cancel := context.WithCancel(context.Background())
	passes := 0
	f.tabs.hook = func() {
		passes++
		if passes == 2 {
			cancel()
		}
	}
	done := make(chan error, 1)
	go func() { done <- f.svc.Schedule(ctx, 10*time.Millisecond) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	if passes < 2 {
		t.Fatalf("passes %d", passes)
	}
	if err := f.svc.Schedule(context.Background(), 0); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("zero interval: %v", err)
	}
}

// advising routes every sheet to one category with a fixed header mapping
type advising struct {
	cat      category.Category
	advisory map[string]string
}

func (a advising) Classify(context.Context, string, []string, []sheet.RawRow) (classifier.Classification, error) {
	return classifier.Classification{Category: a.cat, Confidence: 0.8, Advisory: a.advisory, Source: classifier.SourceModel}, nil
}

func TestRunPassAdvisoryMappingLocatesHeaders(t *testing.T) {
	english := domain.Tab{Name: "web form", Values: [][]string{
		{"Inquiries exported 7/17"},
		{"Customer", "Mobile", "Memo"},
		{"Lee", "010 2222 3333", "call back"},
	}}

	f := newFixture(t, advising{cat: category.Inquiry, advisory: map[string]string{"Customer": "name", "Mobile": "phone"}}, english)
	rep, err := f.svc.RunPass(context.Background(), domain.PassOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Skipped) != 0 || f.repo.inserts["inquiries"] != 1 {
		t.Fatalf("inserts %v report %+v", f.repo.inserts, rep)
	}

	// without a mapping naming both identity columns the sheet is skipped
	f = newFixture(t, advising{cat: category.Inquiry, advisory: map[string]string{"Customer": "name"}}, english)
	rep, err = f.svc.RunPass(context.Background(), domain.PassOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Skipped) != 1 || len(f.repo.inserts) != 0 {
		t.Fatalf("inserts %v report %+v", f.repo.inserts, rep)
	}
}

func TestRunPassLogsOnlyCategoriesWithSheets(t *testing.T) {
	// every category is enabled but only estimate has a routed sheet: the
	// others get neither an outcome nor a sync_log row
	f := newFixture(t, byName{estimateTab.Name: category.Estimate}, estimateTab)
	rep, err := f.svc.RunPass(context.Background(), domain.PassOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Outcomes) != 1 || rep.Outcomes[0].Category != "estimate" {
		t.Fatalf("outcomes %+v", rep.Outcomes)
	}
	if len(f.repo.logs) != 1 || f.repo.logs[0].Category != "estimate" {
		t.Fatalf("logs %+v", f.repo.logs)
	}
}

func TestRunPassCareonIdentityFromDeclaredHeader(t *testing.T) {
	both := domain.Tab{Name: "케어온 9월", Values: [][]string{
		{"이름", "전화번호", "연락처"},
		{"홍길동", "02-555-0000", "010-1234-5678"},
	}}
	f := newFixture(t, byName{both.Name: category.CareonApplication}, both)
	if _, err := f.svc.RunPass(context.Background(), domain.PassOptions{}); err != nil {
		t.Fatal(err)
	}
	got := f.repo.stored["careon_applications"]
	if len(got) != 1 || got[0] != identity.Of("홍길동", "01012345678") {
		t.Fatalf("stored %+v", got)
	}
}
