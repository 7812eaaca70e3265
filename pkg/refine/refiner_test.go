package refine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ems-analytics-be/internal/pkg/logger"
	"ems-analytics-be/pkg/refine/catalog"
	"ems-analytics-be/pkg/refine/classify"
	"ems-analytics-be/pkg/refine/scope"
	"ems-analytics-be/pkg/store"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }
func (nopLogger) GetLogs(level string, limit, offset int) ([]logger.LogEntry, error) {
	return nil, nil
}
func (nopLogger) GetLogById(id string) (*logger.LogEntry, error) { return nil, nil }

func newTestRefiner() *Refiner {
	cat := catalog.NewMemory(map[scope.EntityType][]string{
		scope.EntityVendor:    {"Deo Corp", "Gaurav Traders", "KBR Logistics"},
		scope.EntityAccount:   {"Office Rent", "Freight & Haulage"},
		scope.EntityWarehouse: {"Pune 1", "Pune 2", "Mumbai Central"},
		scope.EntityCity:      {"Pune", "Mumbai"},
		scope.EntityRegion:    {"North", "South", "East", "West"},
	})
	r := NewRefiner(catalog.NewRetrying(cat), nopLogger{})
	r.Now = func() time.Time {
		return time.Date(2026, time.January, 13, 10, 0, 0, 0, time.UTC)
	}
	return r
}

func mustAnalytics(t *testing.T, r *Refiner, s *store.Session, text string) *RefinedQuestion {
	t.Helper()
	res, err := r.Process(context.Background(), s, text)
	if err != nil {
		t.Fatalf("Process(%q) error: %v", text, err)
	}
	if res.Type != TypeAnalytics {
		t.Fatalf("Process(%q) = %s (%+v), want ANALYTICS", text, res.Type, res)
	}
	return res.Refined
}

func TestGreetingAndFAQ(t *testing.T) {
	r := newTestRefiner()
	s := store.NewSession("s1")

	res, err := r.Process(context.Background(), s, "hello")
	if err != nil {
		t.Fatal(err)
	}
	if res.Type != TypeGreeting || res.Message == "" {
		t.Errorf("greeting = %+v", res)
	}

	res, err = r.Process(context.Background(), s, "how do i upload an invoice?")
	if err != nil {
		t.Fatal(err)
	}
	if res.Type != TypeFAQ {
		t.Errorf("faq = %+v", res)
	}
	if !s.Scope.IsEmpty() {
		t.Error("small talk must not touch the analytical scope")
	}
}

func TestPronounContinuityAndAttributePreservation(t *testing.T) {
	r := newTestRefiner()
	s := store.NewSession("s1")

	q := mustAnalytics(t, r, s, "show the total expense for Deo Corp last month")
	if b := q.Scope.Binding(scope.EntityVendor); b == nil || b.LiteralText != "Deo Corp" {
		t.Fatalf("vendor binding = %+v", b)
	}
	if q.Scope.Metric != classify.MetricTotalExpense {
		t.Errorf("Metric = %q", q.Scope.Metric)
	}
	if q.Scope.TimeFilter == nil || !q.Scope.TimeFilter.Start.Equal(time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("TimeFilter = %+v, want December 2025", q.Scope.TimeFilter)
	}

	// Projection-only turn: vendor, metric and time must all survive.
	q = mustAnalytics(t, r, s, "also include the remarks")
	if b := q.Scope.Binding(scope.EntityVendor); b == nil || b.LiteralText != "Deo Corp" {
		t.Fatal("vendor lost on a projection-only turn")
	}
	if q.Scope.Metric != classify.MetricTotalExpense {
		t.Errorf("Metric = %q, drifted on a projection-only turn", q.Scope.Metric)
	}
	if q.Scope.Intent != scope.IntentListing {
		t.Errorf("Intent = %q, want LISTING", q.Scope.Intent)
	}
	if len(q.RequestedAttributes) != 1 || q.RequestedAttributes[0] != "remarks" {
		t.Errorf("RequestedAttributes = %v", q.RequestedAttributes)
	}

	// Pronoun keeps the vendor; the attribute keeps riding along.
	q = mustAnalytics(t, r, s, "how many invoices did he submit")
	if b := q.Scope.Binding(scope.EntityVendor); b == nil || b.LiteralText != "Deo Corp" {
		t.Fatal("pronoun did not resolve to the bound vendor")
	}
	if q.Scope.Metric != classify.MetricInvoiceCount {
		t.Errorf("Metric = %q, want InvoiceCount", q.Scope.Metric)
	}
	if !q.Scope.HasAttribute("remarks") {
		t.Error("previously requested attribute was dropped")
	}
}

func TestExplicitCorrectionReplacesVendor(t *testing.T) {
	r := newTestRefiner()
	s := store.NewSession("s1")

	mustAnalytics(t, r, s, "total expense for Deo Corp last month")
	q := mustAnalytics(t, r, s, "no, I meant Gaurav Traders")

	if b := q.Scope.Binding(scope.EntityVendor); b == nil || b.LiteralText != "Gaurav Traders" {
		t.Fatalf("vendor binding = %+v, want Gaurav Traders", b)
	}
	if q.Scope.Metric != classify.MetricTotalExpense {
		t.Error("metric must survive a correction")
	}
	if q.Scope.TimeFilter == nil {
		t.Error("time filter must survive a correction")
	}
}

func TestPronounWithEmptyScopeAsksForClarification(t *testing.T) {
	r := newTestRefiner()
	s := store.NewSession("s1")

	res, err := r.Process(context.Background(), s, "what did he spend")
	if err != nil {
		t.Fatal(err)
	}
	if res.Type != TypeClarification {
		t.Fatalf("Type = %s, want CLARIFICATION", res.Type)
	}
	if !s.Scope.IsEmpty() {
		t.Error("failed turn mutated the scope")
	}
}

func TestCityWarehouseClarificationFlow(t *testing.T) {
	r := newTestRefiner()
	s := store.NewSession("s1")

	res, err := r.Process(context.Background(), s, "show the expense for the warehouse in Pune")
	if err != nil {
		t.Fatal(err)
	}
	if res.Type != TypeClarification {
		t.Fatalf("Type = %s, want CLARIFICATION", res.Type)
	}
	if len(res.Clarification.Options) != 3 {
		t.Fatalf("Options = %v, want Pune 1, Pune 2 and the all-warehouses option", res.Clarification.Options)
	}
	if s.Pending == nil {
		t.Fatal("clarification was not parked on the session")
	}

	// Choosing the aggregate option binds the city and re-runs the
	// original question.
	q := mustAnalytics(t, r, s, "all warehouses in Pune")
	if b := q.Scope.Binding(scope.EntityCity); b == nil || b.LiteralText != "Pune" {
		t.Fatalf("city binding = %+v", b)
	}
	if !strings.Contains(q.CanonicalText, "across all warehouses in Pune") {
		t.Errorf("CanonicalText = %q", q.CanonicalText)
	}
	if s.Pending != nil {
		t.Error("pending clarification not cleared")
	}
}

func TestCityWarehouseClarificationSpecificChoice(t *testing.T) {
	r := newTestRefiner()
	s := store.NewSession("s1")

	res, err := r.Process(context.Background(), s, "expense for the warehouse in Pune")
	if err != nil {
		t.Fatal(err)
	}
	if res.Type != TypeClarification {
		t.Fatalf("Type = %s, want CLARIFICATION", res.Type)
	}

	q := mustAnalytics(t, r, s, "Pune 2")
	if b := q.Scope.Binding(scope.EntityWarehouse); b == nil || b.LiteralText != "Pune 2" {
		t.Fatalf("warehouse binding = %+v, want Pune 2", b)
	}
}

func TestListFollowupBindsFromResultContext(t *testing.T) {
	r := newTestRefiner()
	s := store.NewSession("s1")

	mustAnalytics(t, r, s, "which vendors have missing months")
	// The execution pipeline reports names the catalog does not know.
	r.RecordResult(s, scope.EntityVendor, []string{"KBR Enterprises", "Safe X Security"}, 2)

	q := mustAnalytics(t, r, s, "when did KBR last upload")
	b := q.Scope.Binding(scope.EntityVendor)
	if b == nil || b.LiteralText != "KBR Enterprises" {
		t.Fatalf("vendor binding = %+v, want KBR Enterprises from the result list", b)
	}
	if q.Scope.Metric != classify.MetricMissingMonths {
		t.Errorf("Metric = %q, the list's metric must carry", q.Scope.Metric)
	}
}

func TestRankingAfterListNeedsScopeChoice(t *testing.T) {
	r := newTestRefiner()
	s := store.NewSession("s1")

	mustAnalytics(t, r, s, "total expense for last month")
	r.RecordResult(s, scope.EntityVendor, []string{"Deo Corp", "Gaurav Traders", "KBR Logistics"}, 3)

	res, err := r.Process(context.Background(), s, "which vendor spent the most")
	if err != nil {
		t.Fatal(err)
	}
	if res.Type != TypeClarification {
		t.Fatalf("Type = %s, want CLARIFICATION", res.Type)
	}
	if len(res.Clarification.Options) != 2 {
		t.Fatalf("Options = %v", res.Clarification.Options)
	}

	q := mustAnalytics(t, r, s, "among the previously listed vendors")
	if q.Scope.Binding(scope.EntityVendor) != nil {
		t.Error("list-scoped ranking must not bind a single vendor")
	}
	if q.Scope.Intent != scope.IntentComparison {
		t.Errorf("Intent = %q, want COMPARISON", q.Scope.Intent)
	}
}

func TestRankingWithExplicitGlobalScopeSkipsClarification(t *testing.T) {
	r := newTestRefiner()
	s := store.NewSession("s1")

	mustAnalytics(t, r, s, "total expense for last month")
	r.RecordResult(s, scope.EntityVendor, []string{"Deo Corp", "Gaurav Traders"}, 2)

	q := mustAnalytics(t, r, s, "which vendor spent the most across all vendors")
	if q.Scope.Intent != scope.IntentComparison {
		t.Errorf("Intent = %q, want COMPARISON", q.Scope.Intent)
	}
}

func TestExplicitGlobalWordsWidenScope(t *testing.T) {
	r := newTestRefiner()
	s := store.NewSession("s1")

	mustAnalytics(t, r, s, "total expense for Deo Corp last month")
	q := mustAnalytics(t, r, s, "what is the total expense across all vendors")

	if q.Scope.Binding(scope.EntityVendor) != nil {
		t.Error("explicit global language must clear the vendor binding")
	}
	if q.Scope.TimeFilter == nil {
		t.Error("time filter must survive the widening")
	}
}

func TestNewQuestionResetsContext(t *testing.T) {
	r := newTestRefiner()
	s := store.NewSession("s1")

	mustAnalytics(t, r, s, "total expense for Deo Corp last month")
	q := mustAnalytics(t, r, s, "new question: how many invoices came in this month")

	if q.Scope.Binding(scope.EntityVendor) != nil {
		t.Error("vendor binding survived an explicit reset")
	}
	if q.Scope.Metric != classify.MetricInvoiceCount {
		t.Errorf("Metric = %q, want InvoiceCount", q.Scope.Metric)
	}
	if q.Scope.TimeFilter == nil || !q.Scope.TimeFilter.Start.Equal(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("TimeFilter = %+v, want January 2026", q.Scope.TimeFilter)
	}
}

func TestCanonicalTextShape(t *testing.T) {
	r := newTestRefiner()
	s := store.NewSession("s1")

	q := mustAnalytics(t, r, s, "show the total expense for Deo Corp last month")

	want := "Report the total expense for vendor Deo Corp, for last month (December 2025)."
	if q.CanonicalText != want {
		t.Errorf("CanonicalText = %q, want %q", q.CanonicalText, want)
	}
}

func TestUnknownNameAsksInsteadOfGuessing(t *testing.T) {
	r := newTestRefiner()
	s := store.NewSession("s1")

	res, err := r.Process(context.Background(), s, "total expense for Acme Rockets")
	if err != nil {
		t.Fatal(err)
	}
	if res.Type != TypeClarification {
		t.Fatalf("Type = %s, want CLARIFICATION for an unknown name", res.Type)
	}
}

func TestStateSummaryAndRecordResult(t *testing.T) {
	r := newTestRefiner()
	s := store.NewSession("s1")

	if got := r.StateSummary(s); got != "No previous query results" {
		t.Errorf("StateSummary = %q", got)
	}

	mustAnalytics(t, r, s, "which vendors have missing months")
	r.RecordResult(s, scope.EntityVendor, []string{"Deo Corp", "KBR Logistics"}, 2)

	if got := r.StateSummary(s); !strings.Contains(got, "2 VENDOR results") {
		t.Errorf("StateSummary = %q", got)
	}
}

func TestGreetingPrefixedQuestionIsRefined(t *testing.T) {
	r := newTestRefiner()
	s := store.NewSession("s1")

	q := mustAnalytics(t, r, s, "hi, what was the total expense for Deo Corp last month")
	if b := q.Scope.Binding(scope.EntityVendor); b == nil || b.LiteralText != "Deo Corp" {
		t.Fatalf("vendor binding = %+v, want Deo Corp", b)
	}
	if q.Scope.Metric != classify.MetricTotalExpense {
		t.Errorf("Metric = %q", q.Scope.Metric)
	}
}

// downCatalog fails every lookup, so the retrying wrapper reports
// ErrUnavailable on each scan.
type downCatalog struct{}

func (downCatalog) Lookup(context.Context, scope.EntityType) ([]string, error) {
	return nil, errors.New("connection refused")
}

func (downCatalog) WarehousesIn(context.Context, string) ([]string, error) {
	return nil, errors.New("connection refused")
}

func TestFailedResetTurnKeepsPriorState(t *testing.T) {
	r := newTestRefiner()
	s := store.NewSession("s1")

	mustAnalytics(t, r, s, "show the total expense for Deo Corp last month")
	r.RecordResult(s, scope.EntityVendor, []string{"Deo Corp"}, 1)
	canonical := s.LastCanonical

	down := NewRefiner(catalog.NewRetrying(downCatalog{}), nopLogger{})
	down.Now = r.Now

	res, err := down.Process(context.Background(), s, "forget that, show the total expense for Gaurav Traders")
	if err != nil {
		t.Fatal(err)
	}
	if res.Type != TypeClarification {
		t.Fatalf("Type = %s (%+v), want CLARIFICATION while the catalog is down", res.Type, res)
	}

	if b := s.Scope.Binding(scope.EntityVendor); b == nil || b.LiteralText != "Deo Corp" {
		t.Errorf("vendor binding = %+v, the failed turn must not reset the scope", b)
	}
	if s.ResultContext == nil {
		t.Error("result context cleared by a failed turn")
	}
	if s.LastCanonical != canonical {
		t.Errorf("LastCanonical = %q, want %q", s.LastCanonical, canonical)
	}
}
