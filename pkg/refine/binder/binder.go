package binder

import (
	"context"
	"errors"
	"strings"
	"time"

	"ems-analytics-be/pkg/refine/catalog"
	"ems-analytics-be/pkg/refine/fuzzy"
	"ems-analytics-be/pkg/refine/scope"
)

// ErrNoPriorEntity is returned when a pronoun mention arrives with an
// empty active scope, so there is nothing to resolve it against.
var ErrNoPriorEntity = errors.New("no prior entity bound for pronoun resolution")

// State classifies the outcome of a resolution attempt.
type State string

const (
	StateResolved  State = "RESOLVED"
	StateAmbiguous State = "AMBIGUOUS"
	StateNotFound  State = "NOT_FOUND"
)

// Candidate is one catalog entry that matched the mention.
type Candidate struct {
	Type scope.EntityType
	Name string
}

// Result is the outcome of resolving one mention. The binder never
// mutates the active scope itself; it hands the candidate binding to
// the scope tracker so validation can still reject the turn.
type Result struct {
	Mention    string
	State      State
	Binding    *scope.EntityBinding // Set when State == StateResolved
	Candidates []Candidate          // All catalog matches, every type
}

// Binder resolves a name or pronoun mention to a typed entity using
// fuzzy matching against the catalog and the fixed priority order.
type Binder struct {
	catalog catalog.Catalog
}

func New(cat catalog.Catalog) *Binder {
	return &Binder{catalog: cat}
}

var pronouns = map[string]bool{
	"he": true, "she": true, "it": true, "him": true, "her": true,
	"they": true, "them": true, "this": true, "that": true,
	"those": true, "these": true, "the one": true, "which one": true,
}

var typeHints = map[string]scope.EntityType{
	"vendor":     scope.EntityVendor,
	"vendors":    scope.EntityVendor,
	"supplier":   scope.EntityVendor,
	"suppliers":  scope.EntityVendor,
	"account":    scope.EntityAccount,
	"accounts":   scope.EntityAccount,
	"warehouse":  scope.EntityWarehouse,
	"warehouses": scope.EntityWarehouse,
	"city":       scope.EntityCity,
	"cities":     scope.EntityCity,
	"region":     scope.EntityRegion,
	"regions":    scope.EntityRegion,
}

// IsPronoun reports whether the mention carries no literal name. A
// phrase like "this vendor" is a typed pronoun: the leading demonstrative
// is a pronoun and the remainder is only a type hint.
func IsPronoun(mention string) bool {
	norm := fuzzy.Normalize(mention)
	if pronouns[norm] {
		return true
	}
	fields := strings.Fields(norm)
	if len(fields) == 0 {
		return false
	}
	if !pronouns[fields[0]] {
		return false
	}
	for _, f := range fields[1:] {
		if _, isHint := typeHints[f]; !isHint {
			return false
		}
	}
	return true
}

// HintType extracts the entity type implied by surrounding words, e.g.
// "warehouse" in "spend at Pune warehouse". The last hint word wins.
func HintType(text string) (scope.EntityType, bool) {
	var hint scope.EntityType
	found := false
	for _, f := range strings.Fields(fuzzy.Normalize(text)) {
		if t, ok := typeHints[f]; ok {
			hint = t
			found = true
		}
	}
	return hint, found
}

// ResolvePronoun resolves a bare or typed pronoun against the active
// scope using the fixed priority order: Vendor, then Account, then
// Warehouse, then City, then Region.
func (b *Binder) ResolvePronoun(mention string, sc *scope.ActiveScope) (*Result, error) {
	if hint, ok := HintType(mention); ok {
		if bound := sc.Binding(hint); bound != nil {
			return resolved(mention, bound.Type, bound.LiteralText), nil
		}
		return nil, ErrNoPriorEntity
	}
	if bound := sc.PronounTarget(); bound != nil {
		return resolved(mention, bound.Type, bound.LiteralText), nil
	}
	return nil, ErrNoPriorEntity
}

// Resolve resolves a literal mention. hintOK marks whether the turn
// carried a lexical type hint; when a name matches several types the
// hint wins, then the last-bound type, then the result is Ambiguous.
func (b *Binder) Resolve(ctx context.Context, mention string, hint scope.EntityType, hintOK bool, sc *scope.ActiveScope) (*Result, error) {
	if IsPronoun(mention) {
		return b.ResolvePronoun(mention, sc)
	}

	all, err := b.matchAll(ctx, mention)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return &Result{Mention: mention, State: StateNotFound}, nil
	}

	byType := make(map[scope.EntityType][]Candidate)
	for _, c := range all {
		byType[c.Type] = append(byType[c.Type], c)
	}

	pick := func(t scope.EntityType) *Result {
		matches := byType[t]
		if len(matches) == 1 {
			r := resolved(mention, t, matches[0].Name)
			r.Candidates = all
			return r
		}
		return &Result{Mention: mention, State: StateAmbiguous, Candidates: all}
	}

	if hintOK && len(byType[hint]) > 0 {
		return pick(hint), nil
	}
	if len(byType) == 1 {
		for t := range byType {
			return pick(t), nil
		}
	}
	if last := sc.LastBoundType; last != "" && len(byType[last]) > 0 {
		return pick(last), nil
	}
	return &Result{Mention: mention, State: StateAmbiguous, Candidates: all}, nil
}

// turn-scan stopwords: vocabulary the classifier owns, never a name.
var scanStop = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"show": true, "list": true, "give": true, "what": true, "which": true,
	"where": true, "when": true, "how": true, "many": true, "much": true,
	"total": true, "count": true, "spend": true, "expense": true,
	"expenses": true, "invoice": true, "invoices": true, "month": true,
	"months": true, "missing": true, "last": true, "this": true,
	"year": true, "also": true, "names": true, "details": true,
	"status": true, "remarks": true, "approval": true, "pending": true,
	"rejected": true, "operates": true, "operate": true, "mean": true,
	"meant": true, "most": true, "least": true, "top": true,
}

// ScanMention walks the turn text looking for the longest word n-gram
// that matches any catalog name. Type-hint words and classifier
// vocabulary never count as mentions.
func (b *Binder) ScanMention(ctx context.Context, turnText string) (string, []Candidate, error) {
	words := strings.Fields(fuzzy.Normalize(turnText))
	names, err := b.allNames(ctx)
	if err != nil {
		return "", nil, err
	}

	for size := 4; size >= 1; size-- {
		for i := 0; i+size <= len(words); i++ {
			gram := strings.Join(words[i:i+size], " ")
			if !scannable(words[i : i+size]) {
				continue
			}
			var matches []Candidate
			for _, c := range names {
				// Containment runs mention-into-name only here: a short
				// name hiding inside a long n-gram is not a mention.
				if strings.Contains(fuzzy.Normalize(c.Name), gram) {
					matches = append(matches, c)
				}
			}
			if len(matches) > 0 {
				return gram, matches, nil
			}
		}
	}
	return "", nil, nil
}

// scannable rejects n-grams built purely from classifier vocabulary,
// pronouns, type hints, or words too short to be a name fragment.
func scannable(words []string) bool {
	for _, w := range words {
		if len(w) < 3 || scanStop[w] || pronouns[w] {
			return false
		}
		if _, isHint := typeHints[w]; isHint {
			return false
		}
	}
	return true
}

func (b *Binder) matchAll(ctx context.Context, mention string) ([]Candidate, error) {
	var out []Candidate
	for _, t := range scope.BindingPriority {
		names, err := b.catalog.Lookup(ctx, t)
		if err != nil {
			return nil, err
		}
		for _, name := range fuzzy.All(mention, names) {
			out = append(out, Candidate{Type: t, Name: name})
		}
	}
	return out, nil
}

func (b *Binder) allNames(ctx context.Context) ([]Candidate, error) {
	var out []Candidate
	for _, t := range scope.BindingPriority {
		names, err := b.catalog.Lookup(ctx, t)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			out = append(out, Candidate{Type: t, Name: name})
		}
	}
	return out, nil
}

func resolved(mention string, t scope.EntityType, name string) *Result {
	return &Result{
		Mention: mention,
		State:   StateResolved,
		Binding: &scope.EntityBinding{
			Type:          t,
			LiteralText:   name,
			NormalizedKey: fuzzy.Normalize(name),
			BoundAt:       time.Now(),
		},
	}
}
