package refine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ems-analytics-be/internal/pkg/logger"
	"ems-analytics-be/pkg/refine/binder"
	"ems-analytics-be/pkg/refine/catalog"
	"ems-analytics-be/pkg/refine/classify"
	"ems-analytics-be/pkg/refine/disambig"
	"ems-analytics-be/pkg/refine/fuzzy"
	"ems-analytics-be/pkg/refine/resultctx"
	"ems-analytics-be/pkg/refine/rules"
	"ems-analytics-be/pkg/refine/scope"
	"ems-analytics-be/pkg/refine/timeparse"
	"ems-analytics-be/pkg/store"
)

// ResultType discriminates the outcome of a processed turn.
type ResultType string

const (
	TypeGreeting      ResultType = "GREETING"
	TypeFAQ           ResultType = "FAQ"
	TypeAnalytics     ResultType = "ANALYTICS"
	TypeClarification ResultType = "CLARIFICATION"
	TypeInvalid       ResultType = "INVALID"
)

// RefinedQuestion is the fully scoped analytical question handed to
// the downstream SQL generator. CanonicalText never mentions storage
// concepts.
type RefinedQuestion struct {
	CanonicalText       string             `json:"canonical_text"`
	Scope               *scope.ActiveScope `json:"scope"`
	RequestedAttributes []string           `json:"requested_attributes"`
}

// ClarificationRequest asks the user to pick between explicit options
// instead of letting the engine guess.
type ClarificationRequest struct {
	Reason  string   `json:"reason"`
	Options []string `json:"options,omitempty"`
}

// InvalidRefinement reports a turn the rule validator rejected.
type InvalidRefinement struct {
	Reason rules.ReasonCode `json:"reason"`
	Detail string           `json:"detail"`
}

// Result is the single outcome of one turn.
type Result struct {
	Type          ResultType            `json:"type"`
	Message       string                `json:"message,omitempty"`
	Refined       *RefinedQuestion      `json:"refined_question,omitempty"`
	Clarification *ClarificationRequest `json:"clarification,omitempty"`
	Invalid       *InvalidRefinement    `json:"invalid,omitempty"`
}

// Refiner orchestrates classification, entity binding, disambiguation,
// time normalization, scope merging and rule validation for one turn.
// Each turn moves through classify → resolve → disambiguate → validate
// and ends Refined, Clarify, or Invalid; clarifications pause the
// session until answered or superseded.
type Refiner struct {
	binder        *binder.Binder
	tracker       *scope.Tracker
	results       *resultctx.Tracker
	disambiguator *disambig.Disambiguator
	normalizer    *timeparse.Normalizer
	validator     *rules.Validator
	log           logger.ILogger

	// Now is injectable so calendar tests can pin the reference date.
	Now func() time.Time
}

func NewRefiner(cat catalog.Catalog, log logger.ILogger) *Refiner {
	return &Refiner{
		binder:        binder.New(cat),
		tracker:       scope.NewTracker(),
		results:       resultctx.NewTracker(),
		disambiguator: disambig.New(cat),
		normalizer:    timeparse.NewNormalizer(),
		validator:     rules.NewValidator(),
		log:           log,
		Now:           time.Now,
	}
}

// Process refines one turn for the session. The caller must hold the
// session lock. On any failure the session's committed state is left
// exactly as it was before the turn.
func (r *Refiner) Process(ctx context.Context, session *store.Session, text string) (*Result, error) {
	text = strings.TrimSpace(text)

	// A pending clarification is consumed first: a matching answer is
	// merged back into the original question as a correction, anything
	// unrelated cancels it with no partial carry-over.
	var preset *scope.EntityBinding
	if session.Pending != nil {
		if answer, suffix, matched := r.matchClarificationAnswer(session.Pending, text); matched {
			preset = answer
			text = strings.TrimSpace(session.Pending.OriginalQuery + suffix)
			session.Pending = nil
			r.log.Info("Refiner", "Clarification resolved", map[string]interface{}{
				"session_id": session.ID, "choice": describeBinding(answer),
			})
		} else {
			session.Pending = nil
			r.log.Info("Refiner", "Pending clarification superseded by new question", map[string]interface{}{
				"session_id": session.ID,
			})
		}
	}

	turn := classify.Classify(text)

	switch turn.Kind {
	case classify.KindGreeting:
		return &Result{Type: TypeGreeting, Message: "Hello! How can I help you with EMS data?"}, nil
	case classify.KindFAQ:
		return &Result{Type: TypeFAQ, Message: "I answer analytical questions about vendors, accounts, warehouses, invoices and expenses. Ask me something like \"total expense for last month\"."}, nil
	}

	// A new-question reset is staged on a scratch view and applied only
	// at the commit point, so a turn that then fails or parks cannot
	// destroy the carried scope.
	work := session
	if turn.IsNewQuestion {
		scratch := *session
		scratch.Scope = scope.NewActiveScope()
		scratch.ResultContext = nil
		scratch.LastCanonical = ""
		work = &scratch
	}

	if clar := r.rankingClarification(turn, work); clar != nil {
		r.park(session, clar, text)
		return &Result{Type: TypeClarification, Clarification: clar}, nil
	}

	timeFilter := r.normalizer.Normalize(text, r.Now())
	timeSet := timeFilter != nil

	bindRes, clar, err := r.resolveEntity(ctx, work, turn, text, preset)
	if err != nil {
		return r.turnError(session, err)
	}
	if clar != nil {
		r.park(session, clar, text)
		return &Result{Type: TypeClarification, Clarification: clar}, nil
	}

	prior := work.Scope
	upd := r.buildUpdate(turn, bindRes, timeFilter, timeSet, work)
	proposed := r.tracker.Merge(prior, upd)

	if viol := r.validator.Validate(prior, proposed, turn, upd); viol != nil {
		r.log.Warn("Refiner", "Refinement rejected", map[string]interface{}{
			"session_id": session.ID, "reason": string(viol.Code), "detail": viol.Detail, "turn": text,
		})
		return &Result{Type: TypeInvalid, Invalid: &InvalidRefinement{Reason: viol.Code, Detail: viol.Detail}}, nil
	}

	canonical := r.renderCanonical(proposed)

	// Commit point: only now does the session change.
	session.Scope = proposed
	session.Pending = nil
	if turn.IsNewQuestion {
		session.ResultContext = nil
	}
	if session.ResultContext != nil && !r.results.Compatible(session.ResultContext, proposed) {
		session.ResultContext = nil
	}
	session.AddTurn("user", turn.Raw)
	session.AddTurn("assistant", canonical)
	session.LastCanonical = canonical

	r.log.Info("Refiner", "Turn refined", map[string]interface{}{
		"session_id": session.ID, "canonical": canonical, "intent": string(proposed.Intent),
	})

	return &Result{
		Type: TypeAnalytics,
		Refined: &RefinedQuestion{
			CanonicalText:       canonical,
			Scope:               proposed.Clone(),
			RequestedAttributes: append([]string(nil), proposed.Attributes...),
		},
	}, nil
}

// RecordResult stores the entity list an executed query returned, so
// the next turn can be list-scoped.
func (r *Refiner) RecordResult(session *store.Session, entityType scope.EntityType, names []string, rowCount int) {
	session.ResultContext = r.results.Record(
		entityType, names, session.LastCanonical, session.Scope.Metric, session.Scope.TimeFilter, rowCount,
	)
	r.log.Info("Refiner", "Result context recorded", map[string]interface{}{
		"session_id": session.ID, "summary": r.results.Summary(session.ResultContext),
	})
}

// StateSummary renders the session's result context for introspection.
func (r *Refiner) StateSummary(session *store.Session) string {
	return r.results.Summary(session.ResultContext)
}

// matchClarificationAnswer tries to read the turn as an answer to the
// pending clarification. "all warehouses in <city>" options bind the
// city (aggregation over its warehouses); named options bind that
// entity directly; ranking-scope options carry no entity and are merged
// back into the original question as explicit scope language instead.
func (r *Refiner) matchClarificationAnswer(pending *store.PendingClarification, text string) (*scope.EntityBinding, string, bool) {
	for _, opt := range pending.Options {
		if !fuzzy.Match(text, opt) {
			continue
		}
		if strings.HasPrefix(opt, "among the previously listed") {
			return nil, " among those", true
		}
		if strings.HasPrefix(opt, "across all") {
			return nil, " " + opt, true
		}
		if city, ok := strings.CutPrefix(opt, "all warehouses in "); ok {
			return &scope.EntityBinding{
				Type:          scope.EntityCity,
				LiteralText:   city,
				NormalizedKey: fuzzy.Normalize(city),
				BoundAt:       time.Now(),
			}, "", true
		}
		name := opt
		entityType := scope.EntityWarehouse
		// Candidate options may carry a "(TYPE)" suffix.
		if i := strings.LastIndex(opt, " ("); i > 0 && strings.HasSuffix(opt, ")") {
			name = opt[:i]
			entityType = scope.EntityType(strings.TrimSuffix(opt[i+2:], ")"))
		}
		return &scope.EntityBinding{
			Type:          entityType,
			LiteralText:   name,
			NormalizedKey: fuzzy.Normalize(name),
			BoundAt:       time.Now(),
		}, "", true
	}
	return nil, "", false
}

// rankingClarification enforces the among-the-list-or-global question:
// ranking words after a multi-entity result, without explicit scope
// language, must not be guessed either way.
func (r *Refiner) rankingClarification(turn classify.Turn, session *store.Session) *ClarificationRequest {
	rc := session.ResultContext
	if rc == nil || rc.RowCount <= 1 {
		return nil
	}
	if !turn.HasRanking || turn.HasExplicitScope || turn.HasGlobalWords {
		return nil
	}
	entityWord := strings.ToLower(string(rc.EntityType)) + "s"
	return &ClarificationRequest{
		Reason: fmt.Sprintf("Do you mean among the previously listed %s, or across all %s?", entityWord, entityWord),
		Options: []string{
			"among the previously listed " + entityWord,
			"across all " + entityWord,
		},
	}
}

// resolveEntity finds and binds the turn's entity mention, routing
// through the result context, the city-warehouse special case, and
// pronoun priority resolution.
func (r *Refiner) resolveEntity(
	ctx context.Context,
	session *store.Session,
	turn classify.Turn,
	text string,
	preset *scope.EntityBinding,
) (*binder.Result, *ClarificationRequest, error) {
	if preset != nil {
		return &binder.Result{State: binder.StateResolved, Binding: preset, Mention: preset.LiteralText}, nil, nil
	}

	// Names from the previous result list win first, even when the
	// catalog does not know them: "KBR" binds within the remembered
	// list, it never reopens a global search.
	if rc := session.ResultContext; rc != nil {
		if name, ok := scanListMention(text, rc.EntityNames); ok {
			return &binder.Result{
				Mention: name,
				State:   binder.StateResolved,
				Binding: &scope.EntityBinding{
					Type:          rc.EntityType,
					LiteralText:   name,
					NormalizedKey: fuzzy.Normalize(name),
					BoundAt:       time.Now(),
				},
			}, nil, nil
		}
	}

	mention, candidates, err := r.binder.ScanMention(ctx, text)
	if err != nil {
		return nil, nil, err
	}

	hint, hintOK := binder.HintType(text)

	if mention == "" {
		// List-scoped "which one" style follow-up stays on the
		// previous list; it is never promoted to a new global ranking.
		if turn.HasFollowupCue && session.ResultContext != nil {
			return nil, nil, nil
		}
		if pron, ok := pronounPhrase(text); ok {
			res, err := r.binder.ResolvePronoun(pron, session.Scope)
			if err != nil {
				return nil, nil, err
			}
			return res, nil, nil
		}
		// A proper name the catalog scan could not place is asked about,
		// never silently dropped into a global query.
		if name, ok := unknownProperNoun(turn.Raw); ok {
			return nil, &ClarificationRequest{
				Reason: fmt.Sprintf("I could not find %q. Which vendor, account, warehouse, city or region did you mean?", name),
			}, nil
		}
		return nil, nil, nil
	}

	// "<city> warehouse" either binds the city's only warehouse or
	// asks which of several the user means.
	if hintOK && hint == scope.EntityWarehouse {
		for _, c := range candidates {
			if c.Type != scope.EntityCity {
				continue
			}
			outcome, err := r.disambiguator.CheckCityWarehouse(ctx, c.Name)
			if err != nil {
				return nil, nil, err
			}
			if outcome.NeedsClarification {
				return nil, &ClarificationRequest{Reason: outcome.Reason, Options: outcome.Options}, nil
			}
			if outcome.DirectBinding != nil {
				return &binder.Result{Mention: mention, State: binder.StateResolved, Binding: outcome.DirectBinding}, nil, nil
			}
		}
	}

	res, err := r.binder.Resolve(ctx, mention, hint, hintOK, session.Scope)
	if err != nil {
		return nil, nil, err
	}

	switch res.State {
	case binder.StateAmbiguous:
		outcome := r.disambiguator.FromAmbiguous(res)
		return nil, &ClarificationRequest{Reason: outcome.Reason, Options: outcome.Options}, nil
	case binder.StateNotFound:
		return nil, &ClarificationRequest{
			Reason: fmt.Sprintf("I could not find %q. Which vendor, account, warehouse, city or region did you mean?", mention),
		}, nil
	}
	return res, nil, nil
}

// buildUpdate assembles the explicit slot replacements this turn makes.
func (r *Refiner) buildUpdate(
	turn classify.Turn,
	bindRes *binder.Result,
	timeFilter *scope.TimeFilter,
	timeSet bool,
	session *store.Session,
) scope.Update {
	var binding *scope.EntityBinding
	if bindRes != nil && bindRes.Binding != nil {
		binding = bindRes.Binding
	}

	metric := turn.Metric

	// Attributes-only turns with no new metric, time or entity are
	// projection changes: scope must not move. A pronoun that resolved
	// back to the already-bound entity is not a new entity.
	sameAsPrior := false
	if binding != nil {
		if prev := session.Scope.Binding(binding.Type); prev != nil && prev.NormalizedKey == binding.NormalizedKey {
			sameAsPrior = true
		}
	}
	projectionOnly := (turn.HasProjection || len(turn.Attributes) > 0) &&
		!turn.MetricExplicit && !timeSet && (binding == nil || sameAsPrior)

	upd := scope.Update{
		Binding:        binding,
		Metric:         metric,
		TimeFilter:     timeFilter,
		TimeFilterSet:  timeSet,
		ClearTime:      turn.RemovalLanguage && !timeSet,
		Attributes:     turn.Attributes,
		ProjectionOnly: projectionOnly,
		ClearBindings:  turn.HasGlobalWords && binding == nil,
	}

	if !projectionOnly {
		upd.Intent = r.inferIntent(turn, session)
	}

	// A list follow-up with no metric of its own keeps the list's
	// originating metric and time filter alive.
	if rc := session.ResultContext; rc != nil && binding != nil && binding.Type == rc.EntityType {
		if metric == "" && session.Scope.Metric == "" && rc.Metric != "" {
			upd.Metric = rc.Metric
		}
		if !timeSet && session.Scope.TimeFilter == nil && rc.TimeFilter != nil {
			upd.TimeFilter = rc.TimeFilter
			upd.TimeFilterSet = true
		}
	}

	return upd
}

func (r *Refiner) inferIntent(turn classify.Turn, session *store.Session) scope.IntentKind {
	lower := strings.ToLower(turn.Raw)
	switch {
	case turn.HasRanking, strings.Contains(lower, "compare"), strings.Contains(lower, " vs "):
		return scope.IntentComparison
	case turn.HasFollowupCue && session.ResultContext != nil && !strings.Contains(lower, "list"):
		return scope.IntentRelationship
	case strings.HasPrefix(lower, "list"), strings.Contains(lower, "which"), strings.Contains(lower, "in which"), strings.Contains(lower, "where"):
		return scope.IntentListing
	case turn.MetricExplicit:
		return scope.IntentAggregate
	default:
		return ""
	}
}

// turnError maps engine errors onto the turn boundary without touching
// committed session state.
func (r *Refiner) turnError(session *store.Session, err error) (*Result, error) {
	switch {
	case errors.Is(err, binder.ErrNoPriorEntity):
		return &Result{
			Type: TypeClarification,
			Clarification: &ClarificationRequest{
				Reason: "I do not have an entity in context yet. Which vendor, account, warehouse, city or region do you mean?",
			},
		}, nil
	case errors.Is(err, catalog.ErrUnavailable):
		r.log.Error("Refiner", "Catalog unavailable", map[string]interface{}{
			"session_id": session.ID, "error": err.Error(),
		})
		return &Result{
			Type: TypeClarification,
			Clarification: &ClarificationRequest{
				Reason: "The entity catalog is temporarily unavailable. Please try again in a moment.",
			},
		}, nil
	default:
		return nil, err
	}
}

func (r *Refiner) park(session *store.Session, clar *ClarificationRequest, originalQuery string) {
	session.Pending = &store.PendingClarification{
		Question:      clar.Reason,
		Options:       clar.Options,
		OriginalQuery: originalQuery,
		AskedAt:       time.Now(),
	}
}

var metricPhrases = map[string]string{
	classify.MetricTotalExpense:            "the total expense",
	classify.MetricInvoiceCount:            "the number of invoices",
	classify.MetricVendorCount:             "the number of vendors",
	classify.MetricRejectedInvoices:        "the rejected invoices",
	classify.MetricApprovalTime:            "the submission-to-approval time of completed approvals",
	classify.MetricPendingApprovalDuration: "how long open invoices have been pending approval as of now, excluding approved and rejected invoices",
	classify.MetricMissingMonths:           "the months with missing invoice uploads",
}

// renderCanonical writes the declarative restatement: entity, metric,
// time filter and requested attributes, never storage concepts.
func (r *Refiner) renderCanonical(s *scope.ActiveScope) string {
	var b strings.Builder

	switch s.Intent {
	case scope.IntentListing:
		b.WriteString("List ")
	case scope.IntentComparison:
		b.WriteString("Compare ")
	case scope.IntentRelationship:
		b.WriteString("Break down ")
	default:
		b.WriteString("Report ")
	}

	if phrase, ok := metricPhrases[s.Metric]; ok {
		b.WriteString(phrase)
	} else if s.Metric != "" {
		b.WriteString(s.Metric)
	} else {
		b.WriteString("the requested records")
	}

	for _, t := range scope.BindingPriority {
		bd := s.Binding(t)
		if bd == nil {
			continue
		}
		switch t {
		case scope.EntityVendor:
			b.WriteString(" for vendor " + bd.LiteralText)
		case scope.EntityAccount:
			b.WriteString(" under account " + bd.LiteralText)
		case scope.EntityWarehouse:
			b.WriteString(" at warehouse " + bd.LiteralText)
		case scope.EntityCity:
			b.WriteString(" across all warehouses in " + bd.LiteralText)
		case scope.EntityRegion:
			b.WriteString(" aggregated across the " + bd.LiteralText + " region")
		}
	}

	if s.TimeFilter != nil {
		b.WriteString(", for " + s.TimeFilter.Label)
	} else {
		b.WriteString(", across all time")
	}
	b.WriteString(".")

	if len(s.Attributes) > 0 {
		b.WriteString(" Include " + strings.Join(s.Attributes, ", ") + ".")
	}

	return b.String()
}

var pronounWords = map[string]bool{
	"he": true, "she": true, "they": true, "them": true, "it": true,
	"this": true, "that": true, "those": true, "these": true,
}

var pronounTypeWords = map[string]bool{
	"vendor": true, "account": true, "warehouse": true, "city": true, "region": true,
	"vendors": true, "accounts": true, "warehouses": true, "cities": true, "regions": true,
}

var demonstratives = map[string]bool{
	"this": true, "that": true, "those": true, "these": true,
}

// pronounPhrase extracts the anaphoric mention from the turn: a bare
// pronoun ("he"), or a typed one ("this vendor"). The surrounding
// words of the sentence are deliberately ignored so an output hint
// like "warehouses" in "in which warehouses he operates" does not
// retarget the pronoun. A demonstrative followed by any non-type noun
// ("this month") is a determiner, not an anaphor.
func pronounPhrase(text string) (string, bool) {
	words := strings.Fields(fuzzy.Normalize(text))
	for i, w := range words {
		if !pronounWords[w] {
			continue
		}
		if i+1 < len(words) && pronounTypeWords[words[i+1]] {
			return w + " " + words[i+1], true
		}
		if demonstratives[w] && i+1 < len(words) {
			continue
		}
		return w, true
	}
	return "", false
}

// Mid-sentence capitalized words that are never entity names.
var properSkip = map[string]bool{
	"i": true, "ems": true, "fy": true,
	"january": true, "february": true, "march": true, "april": true,
	"may": true, "june": true, "july": true, "august": true,
	"september": true, "october": true, "november": true, "december": true,
}

// unknownProperNoun finds a capitalized name-like phrase the catalog
// scan failed to place. The first word of the sentence is skipped, its
// capitalization carries no signal.
func unknownProperNoun(raw string) (string, bool) {
	words := strings.Fields(raw)
	for i := 1; i < len(words); i++ {
		w := strings.Trim(words[i], ".,!?\"'()")
		if w == "" || w[0] < 'A' || w[0] > 'Z' {
			continue
		}
		if properSkip[strings.ToLower(w)] {
			continue
		}
		phrase := []string{w}
		for j := i + 1; j < len(words); j++ {
			next := strings.Trim(words[j], ".,!?\"'()")
			if next == "" || next[0] < 'A' || next[0] > 'Z' || properSkip[strings.ToLower(next)] {
				break
			}
			phrase = append(phrase, next)
		}
		return strings.Join(phrase, " "), true
	}
	return "", false
}

var listScanStop = map[string]bool{
	"the": true, "and": true, "for": true, "which": true, "what": true,
	"show": true, "list": true, "missing": true, "months": true,
	"month": true, "last": true, "invoice": true, "invoices": true,
	"status": true, "remarks": true, "when": true, "did": true,
	"rejected": true, "pending": true, "approval": true, "expense": true,
	"spend": true, "total": true,
}

// scanListMention looks for a previous-result entity name inside the
// turn text, fuzzily: any word n-gram contained in a remembered name
// binds that name.
func scanListMention(text string, names []string) (string, bool) {
	words := strings.Fields(fuzzy.Normalize(text))
	for size := 4; size >= 1; size-- {
		for i := 0; i+size <= len(words); i++ {
			if size == 1 && (len(words[i]) < 3 || pronounWords[words[i]] || pronounTypeWords[words[i]] || listScanStop[words[i]]) {
				continue
			}
			gram := strings.Join(words[i:i+size], " ")
			for _, name := range names {
				if strings.Contains(fuzzy.Normalize(name), gram) {
					return name, true
				}
			}
		}
	}
	return "", false
}

func describeBinding(b *scope.EntityBinding) string {
	if b == nil {
		return ""
	}
	return fmt.Sprintf("%s:%s", b.Type, b.LiteralText)
}
