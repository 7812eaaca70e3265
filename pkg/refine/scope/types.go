package scope

import "time"

// EntityType identifies the kind of business entity a binding refers to.
type EntityType string

const (
	EntityVendor    EntityType = "VENDOR"
	EntityAccount   EntityType = "ACCOUNT"
	EntityWarehouse EntityType = "WAREHOUSE"
	EntityCity      EntityType = "CITY"
	EntityRegion    EntityType = "REGION"
)

// BindingPriority is the fixed resolution order for bare pronouns:
// Vendor > Account > Warehouse > City > Region. It is used only for
// pronoun resolution, never to override an explicit mention.
var BindingPriority = []EntityType{
	EntityVendor,
	EntityAccount,
	EntityWarehouse,
	EntityCity,
	EntityRegion,
}

// EntityBinding is an active association between the conversation and
// a specific named business entity.
type EntityBinding struct {
	Type          EntityType `json:"type"`
	LiteralText   string     `json:"literal_text"`   // The catalog name as matched
	NormalizedKey string     `json:"normalized_key"` // Lowercased, punctuation-collapsed key
	BoundAt       time.Time  `json:"bound_at"`
}

// IntentKind classifies the analytical shape of the current question.
type IntentKind string

const (
	IntentAggregate    IntentKind = "AGGREGATE"
	IntentListing      IntentKind = "LISTING"
	IntentComparison   IntentKind = "COMPARISON"
	IntentRelationship IntentKind = "RELATIONSHIP"
)

// TimeFilter is always a closed-open calendar range. A nil *TimeFilter
// means "all time". PendingToNow marks the single metric that is
// legitimately measured against the current instant.
type TimeFilter struct {
	Start        time.Time `json:"start"`
	EndExclusive time.Time `json:"end_exclusive"`
	Label        string    `json:"label"`
	PendingToNow bool      `json:"pending_to_now,omitempty"`
}

// Equal reports whether two filters describe the same range. Both nil
// counts as equal (all time vs all time).
func (t *TimeFilter) Equal(other *TimeFilter) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.Start.Equal(other.Start) && t.EndExclusive.Equal(other.EndExclusive)
}

func (t *TimeFilter) Clone() *TimeFilter {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// ActiveScope is the full set of constraints the current question is
// interpreted under. Bindings are keyed by type; at most one binding
// per type is active, and bindings of other types persist until
// overwritten or corrected.
type ActiveScope struct {
	Bindings      map[EntityType]*EntityBinding `json:"bindings"`
	Metric        string                        `json:"metric"`
	TimeFilter    *TimeFilter                   `json:"time_filter"`
	Intent        IntentKind                    `json:"intent"`
	Attributes    []string                      `json:"attributes"` // Explicitly requested output attributes
	LastBoundType EntityType                    `json:"last_bound_type"`
}

func NewActiveScope() *ActiveScope {
	return &ActiveScope{
		Bindings: make(map[EntityType]*EntityBinding),
	}
}

// Binding returns the active binding for a type, or nil.
func (s *ActiveScope) Binding(t EntityType) *EntityBinding {
	if s == nil || s.Bindings == nil {
		return nil
	}
	return s.Bindings[t]
}

// PronounTarget walks the fixed priority order and returns the first
// non-empty binding. Returns nil when no entity is bound at all.
func (s *ActiveScope) PronounTarget() *EntityBinding {
	for _, t := range BindingPriority {
		if b := s.Binding(t); b != nil {
			return b
		}
	}
	return nil
}

// HasAttribute reports whether an attribute is already requested.
func (s *ActiveScope) HasAttribute(name string) bool {
	for _, a := range s.Attributes {
		if a == name {
			return true
		}
	}
	return false
}

// Clone deep-copies the scope so a proposed merge can be validated and
// discarded without touching the committed session state.
func (s *ActiveScope) Clone() *ActiveScope {
	if s == nil {
		return NewActiveScope()
	}
	c := &ActiveScope{
		Bindings:      make(map[EntityType]*EntityBinding, len(s.Bindings)),
		Metric:        s.Metric,
		TimeFilter:    s.TimeFilter.Clone(),
		Intent:        s.Intent,
		Attributes:    append([]string(nil), s.Attributes...),
		LastBoundType: s.LastBoundType,
	}
	for t, b := range s.Bindings {
		cb := *b
		c.Bindings[t] = &cb
	}
	return c
}

// IsEmpty reports whether the scope carries no analytical context yet.
func (s *ActiveScope) IsEmpty() bool {
	return s == nil || (len(s.Bindings) == 0 && s.Metric == "" && s.TimeFilter == nil)
}
