package timeparse

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalize(t *testing.T) {
	today := date(2026, time.January, 13)
	n := NewNormalizer()

	tests := []struct {
		name      string
		text      string
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "last month",
			text:      "total expense last month",
			wantStart: date(2025, time.December, 1),
			wantEnd:   date(2026, time.January, 1),
		},
		{
			name:      "previous month alias",
			text:      "expenses for the previous month",
			wantStart: date(2025, time.December, 1),
			wantEnd:   date(2026, time.January, 1),
		},
		{
			name:      "last 6 months",
			text:      "invoices over the last 6 months",
			wantStart: date(2025, time.July, 1),
			wantEnd:   date(2026, time.January, 1),
		},
		{
			name:      "last 1 month collapses to last month",
			text:      "last 1 month",
			wantStart: date(2025, time.December, 1),
			wantEnd:   date(2026, time.January, 1),
		},
		{
			name:      "this month ends tomorrow",
			text:      "spend this month",
			wantStart: date(2026, time.January, 1),
			wantEnd:   date(2026, time.January, 14),
		},
		{
			name:      "this year",
			text:      "expenses this year",
			wantStart: date(2026, time.January, 1),
			wantEnd:   date(2026, time.January, 14),
		},
		{
			name:      "yesterday",
			text:      "invoices submitted yesterday",
			wantStart: date(2026, time.January, 12),
			wantEnd:   date(2026, time.January, 13),
		},
		{
			name:      "today",
			text:      "approvals today",
			wantStart: date(2026, time.January, 13),
			wantEnd:   date(2026, time.January, 14),
		},
		{
			name:      "named month defaults to current year",
			text:      "expenses in march",
			wantStart: date(2026, time.March, 1),
			wantEnd:   date(2026, time.April, 1),
		},
		{
			name:      "named month with explicit year",
			text:      "invoices for august 2024",
			wantStart: date(2024, time.August, 1),
			wantEnd:   date(2024, time.September, 1),
		},
		{
			name:      "last november means previous year",
			text:      "spend last november",
			wantStart: date(2025, time.November, 1),
			wantEnd:   date(2025, time.December, 1),
		},
		{
			name:      "fiscal year",
			text:      "totals for fy 2025",
			wantStart: date(2025, time.April, 1),
			wantEnd:   date(2026, time.April, 1),
		},
		{
			name:      "fiscal year with range suffix",
			text:      "fiscal year 2024-25",
			wantStart: date(2024, time.April, 1),
			wantEnd:   date(2025, time.April, 1),
		},
		{
			name:      "may with preposition cue",
			text:      "expenses in may",
			wantStart: date(2026, time.May, 1),
			wantEnd:   date(2026, time.June, 1),
		},
		{
			name:      "may with explicit year",
			text:      "invoices for may 2024",
			wantStart: date(2024, time.May, 1),
			wantEnd:   date(2024, time.June, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Normalize(tt.text, today)
			if got == nil {
				t.Fatalf("Normalize(%q) = nil, want a range", tt.text)
			}
			if !got.Start.Equal(tt.wantStart) {
				t.Errorf("Start = %s, want %s", got.Start.Format("2006-01-02"), tt.wantStart.Format("2006-01-02"))
			}
			if !got.EndExclusive.Equal(tt.wantEnd) {
				t.Errorf("EndExclusive = %s, want %s", got.EndExclusive.Format("2006-01-02"), tt.wantEnd.Format("2006-01-02"))
			}
			if got.Label == "" {
				t.Error("Label is empty")
			}
		})
	}
}

func TestNormalizeNoPhrase(t *testing.T) {
	today := date(2026, time.January, 13)
	n := NewNormalizer()

	for _, text := range []string{
		"total expense for Deo Corp",
		"maybe show vendor counts",        // "may" inside "maybe" must not match
		"what about the last batch",       // "last" without a month is not a range
		"how much may we expect to spend", // modal "may", not the month
	} {
		if got := n.Normalize(text, today); got != nil {
			t.Errorf("Normalize(%q) = %+v, want nil (all time)", text, got)
		}
	}
}

func TestLastNMonthsBeatsLastMonth(t *testing.T) {
	today := date(2026, time.January, 13)
	n := NewNormalizer()

	got := n.Normalize("compare the last 3 months", today)
	if got == nil {
		t.Fatal("expected a range")
	}
	if !got.Start.Equal(date(2025, time.October, 1)) {
		t.Errorf("Start = %s, want 2025-10-01", got.Start.Format("2006-01-02"))
	}
}

func TestHasTimePhrase(t *testing.T) {
	today := date(2026, time.January, 13)
	n := NewNormalizer()

	if !n.HasTimePhrase("expense last month", today) {
		t.Error("expected phrase detection for 'last month'")
	}
	if n.HasTimePhrase("expense for Deo Corp", today) {
		t.Error("detected a phrase where none exists")
	}
}
