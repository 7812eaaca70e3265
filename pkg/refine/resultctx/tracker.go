package resultctx

import (
	"fmt"
	"strings"
	"time"

	"ems-analytics-be/pkg/refine/fuzzy"
	"ems-analytics-be/pkg/refine/scope"
)

// ResultContext remembers the entity list the previous turn's query
// returned, so follow-ups like "which one" or "missing months for KBR"
// stay scoped to that list instead of reopening a global search.
type ResultContext struct {
	EntityType     scope.EntityType  `json:"entity_type"`
	EntityNames    []string          `json:"entity_names"`
	SourceQuestion string            `json:"source_question"`
	Metric         string            `json:"metric"`
	TimeFilter     *scope.TimeFilter `json:"time_filter"`
	RowCount       int               `json:"row_count"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Tracker owns recording and follow-up matching over result contexts.
type Tracker struct{}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Record builds a new result context from an executed query's payload.
func (t *Tracker) Record(entityType scope.EntityType, names []string, question, metric string, timeFilter *scope.TimeFilter, rowCount int) *ResultContext {
	if rowCount == 0 {
		rowCount = len(names)
	}
	return &ResultContext{
		EntityType:     entityType,
		EntityNames:    append([]string(nil), names...),
		SourceQuestion: question,
		Metric:         metric,
		TimeFilter:     timeFilter.Clone(),
		RowCount:       rowCount,
		CreatedAt:      time.Now(),
	}
}

// MatchFollowup fuzzy-matches a mention against the remembered list.
// "KBR" binds to "KBR Enterprises" when that name was in the previous
// result; the list's metric and time filter are preserved by the
// caller, not reopened as a global search.
func (t *Tracker) MatchFollowup(rc *ResultContext, mention string) (string, bool) {
	if rc == nil || len(rc.EntityNames) == 0 {
		return "", false
	}
	return fuzzy.Best(mention, rc.EntityNames)
}

// Compatible reports whether a proposed scope can keep the result
// context alive. A different entity type, or a structurally new global
// question, clears it.
func (t *Tracker) Compatible(rc *ResultContext, proposed *scope.ActiveScope) bool {
	if rc == nil {
		return false
	}
	if b := proposed.Binding(rc.EntityType); b != nil {
		return true
	}
	// A binding of another list-bearing type means the conversation
	// moved on to different entities.
	for _, et := range scope.BindingPriority {
		if et == rc.EntityType {
			continue
		}
		if b := proposed.Binding(et); b != nil && b.BoundAt.After(rc.CreatedAt) {
			return false
		}
	}
	return true
}

// Summary renders the context for state introspection, e.g.
// "15 VENDOR results: KBR Enterprises, Safe X Security, ... (and 10 more)".
func (t *Tracker) Summary(rc *ResultContext) string {
	if rc == nil || len(rc.EntityNames) == 0 {
		return "No previous query results"
	}
	preview := rc.EntityNames
	more := ""
	if len(preview) > 5 {
		more = fmt.Sprintf(", ... (and %d more)", len(preview)-5)
		preview = preview[:5]
	}
	return fmt.Sprintf("%d %s results: %s%s", rc.RowCount, rc.EntityType, strings.Join(preview, ", "), more)
}
