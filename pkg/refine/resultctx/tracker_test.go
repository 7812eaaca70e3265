package resultctx

import (
	"strings"
	"testing"
	"time"

	"ems-analytics-be/pkg/refine/scope"
)

func TestMatchFollowup(t *testing.T) {
	tr := NewTracker()
	rc := tr.Record(scope.EntityVendor,
		[]string{"KBR Enterprises", "Safe X Security", "Deo Corp"},
		"vendors with missing months", "MissingMonths", nil, 3)

	tests := []struct {
		mention string
		want    string
		wantOK  bool
	}{
		{"KBR", "KBR Enterprises", true},
		{"safe x", "Safe X Security", true},
		{"deo corp", "Deo Corp", true},
		{"Gaurav", "", false},
	}
	for _, tt := range tests {
		got, ok := tr.MatchFollowup(rc, tt.mention)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("MatchFollowup(%q) = %q/%v, want %q/%v", tt.mention, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestMatchFollowupNilContext(t *testing.T) {
	tr := NewTracker()
	if _, ok := tr.MatchFollowup(nil, "KBR"); ok {
		t.Error("matched against a nil context")
	}
}

func TestCompatible(t *testing.T) {
	tr := NewTracker()
	rc := tr.Record(scope.EntityVendor, []string{"Deo Corp"}, "q", "TotalExpense", nil, 1)

	sameType := scope.NewActiveScope()
	sameType.Bindings[scope.EntityVendor] = &scope.EntityBinding{
		Type: scope.EntityVendor, NormalizedKey: "deo corp", BoundAt: time.Now(),
	}
	if !tr.Compatible(rc, sameType) {
		t.Error("binding of the list's own type must keep the context alive")
	}

	otherType := scope.NewActiveScope()
	otherType.Bindings[scope.EntityWarehouse] = &scope.EntityBinding{
		Type: scope.EntityWarehouse, NormalizedKey: "pune 1", BoundAt: time.Now().Add(time.Second),
	}
	if tr.Compatible(rc, otherType) {
		t.Error("a newer binding of another type must clear the context")
	}

	empty := scope.NewActiveScope()
	if !tr.Compatible(rc, empty) {
		t.Error("a scope with no new bindings keeps the context")
	}
}

func TestSummary(t *testing.T) {
	tr := NewTracker()

	if got := tr.Summary(nil); got != "No previous query results" {
		t.Errorf("Summary(nil) = %q", got)
	}

	names := []string{"V1", "V2", "V3", "V4", "V5", "V6", "V7"}
	rc := tr.Record(scope.EntityVendor, names, "q", "", nil, 7)
	got := tr.Summary(rc)

	if !strings.HasPrefix(got, "7 VENDOR results: V1, V2, V3, V4, V5") {
		t.Errorf("Summary = %q", got)
	}
	if !strings.Contains(got, "and 2 more") {
		t.Errorf("Summary = %q, want trailing overflow note", got)
	}
}
