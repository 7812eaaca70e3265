package scope

import "time"

// Update is the set of slot replacements a single turn explicitly
// supplies. Zero values mean "no change"; every untouched slot carries
// over verbatim from the previous scope.
type Update struct {
	Binding        *EntityBinding // Candidate binding resolved from the turn
	Metric         string         // New metric, "" = keep
	TimeFilter     *TimeFilter    // New time filter
	TimeFilterSet  bool           // True when the turn explicitly named a time phrase
	ClearTime      bool           // Explicit removal language ("for all time")
	Intent         IntentKind     // New intent kind, "" = keep
	Attributes     []string       // Attributes to append (never removed here)
	ProjectionOnly bool           // Turn only changes requested output fields
	ClearBindings  bool           // Explicit widening ("across all vendors")
}

// Tracker merges per-turn updates into the active scope.
type Tracker struct{}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Merge applies an update on top of the previous scope and returns a
// new proposed scope. The previous scope is never mutated; the caller
// commits the proposal only after validation.
//
// Carry-over policy: metric, time filter, every entity binding and the
// intent kind survive unchanged unless the update names that exact
// slot. A projection-only turn may only flip the intent to LISTING and
// append attributes.
func (t *Tracker) Merge(prev *ActiveScope, upd Update) *ActiveScope {
	proposed := prev.Clone()

	if upd.ProjectionOnly {
		proposed.Intent = IntentListing
		t.appendAttributes(proposed, upd.Attributes)
		return proposed
	}

	if upd.ClearBindings {
		proposed.Bindings = make(map[EntityType]*EntityBinding)
		proposed.LastBoundType = ""
	}

	if upd.Binding != nil {
		b := *upd.Binding
		if b.BoundAt.IsZero() {
			b.BoundAt = time.Now()
		}
		proposed.Bindings[b.Type] = &b
		proposed.LastBoundType = b.Type
	}

	if upd.Metric != "" {
		proposed.Metric = upd.Metric
	}

	switch {
	case upd.ClearTime:
		proposed.TimeFilter = nil
	case upd.TimeFilterSet:
		proposed.TimeFilter = upd.TimeFilter.Clone()
	}

	if upd.Intent != "" {
		proposed.Intent = upd.Intent
	}

	t.appendAttributes(proposed, upd.Attributes)

	return proposed
}

func (t *Tracker) appendAttributes(s *ActiveScope, attrs []string) {
	for _, a := range attrs {
		if !s.HasAttribute(a) {
			s.Attributes = append(s.Attributes, a)
		}
	}
}
