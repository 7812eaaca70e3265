package store

import (
	"testing"

	"ems-analytics-be/pkg/refine/resultctx"
	"ems-analytics-be/pkg/refine/scope"
)

func TestAddTurnBoundsHistory(t *testing.T) {
	s := NewSession("s1")
	for i := 0; i < 10; i++ {
		s.AddTurn("user", "turn")
	}
	if len(s.RecentTurns) != 4 {
		t.Errorf("RecentTurns length = %d, want 4", len(s.RecentTurns))
	}
}

func TestResetAnalyticalContext(t *testing.T) {
	s := NewSession("s1")
	s.Scope.Metric = "TotalExpense"
	s.Scope.Bindings[scope.EntityVendor] = &scope.EntityBinding{Type: scope.EntityVendor, LiteralText: "Deo Corp"}
	s.ResultContext = &resultctx.ResultContext{EntityType: scope.EntityVendor}
	s.Pending = &PendingClarification{Question: "which one?"}
	s.LastCanonical = "Report the total expense."
	s.AddTurn("user", "hi")

	s.ResetAnalyticalContext()

	if !s.Scope.IsEmpty() {
		t.Error("scope not cleared")
	}
	if s.ResultContext != nil || s.Pending != nil || s.LastCanonical != "" {
		t.Error("analytical carry-over not cleared")
	}
	if len(s.RecentTurns) == 0 {
		t.Error("conversation history must survive a reset")
	}
}
