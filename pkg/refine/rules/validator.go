package rules

import (
	"fmt"

	"ems-analytics-be/pkg/refine/classify"
	"ems-analytics-be/pkg/refine/scope"
)

// ReasonCode identifies which invariant a proposed refinement broke.
type ReasonCode string

const (
	ReasonScopeEscalation   ReasonCode = "SCOPE_ESCALATION"
	ReasonEntityReplacement ReasonCode = "ENTITY_REPLACEMENT"
	ReasonAttributeDropped  ReasonCode = "ATTRIBUTE_DROPPED"
	ReasonMetricOrTimeDrift ReasonCode = "METRIC_OR_TIME_DRIFT"
	ReasonFilterDropped     ReasonCode = "FILTER_DROPPED"
)

// Violation describes a rejected refinement. Violations are never
// silently repaired; the turn fails and the prior scope stands.
type Violation struct {
	Code   ReasonCode
	Detail string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Code, v.Detail)
}

// Validator checks a proposed scope against the prior scope and the
// classified turn. A slot may only change when the turn explicitly
// licensed that exact change.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// Validate returns nil when the proposal is legal. The update carries
// what the turn explicitly supplied, so carried-over slots and
// explicit replacements can be told apart.
func (v *Validator) Validate(prior, proposed *scope.ActiveScope, turn classify.Turn, upd scope.Update) *Violation {
	if viol := v.checkBindings(prior, proposed, turn, upd); viol != nil {
		return viol
	}
	if viol := v.checkMetricAndTime(prior, proposed, turn, upd); viol != nil {
		return viol
	}
	if viol := v.checkAttributes(prior, proposed, turn); viol != nil {
		return viol
	}
	return nil
}

func (v *Validator) checkBindings(prior, proposed *scope.ActiveScope, turn classify.Turn, upd scope.Update) *Violation {
	for _, t := range scope.BindingPriority {
		before := prior.Binding(t)
		after := proposed.Binding(t)

		switch {
		case before == nil:
			continue

		case after == nil:
			if turn.RemovalLanguage || turn.HasGlobalWords {
				continue
			}
			// Losing the pronoun-priority focus entity silently widens
			// the question to all entities of that type.
			if prior.PronounTarget() != nil && prior.PronounTarget().Type == t {
				return &Violation{
					Code:   ReasonScopeEscalation,
					Detail: fmt.Sprintf("scope for %s %q was widened to all %ss without explicit language", t, before.LiteralText, t),
				}
			}
			return &Violation{
				Code:   ReasonFilterDropped,
				Detail: fmt.Sprintf("%s filter %q disappeared without explicit removal language", t, before.LiteralText),
			}

		case before.NormalizedKey != after.NormalizedKey:
			explicit := upd.Binding != nil && upd.Binding.Type == t && upd.Binding.NormalizedKey == after.NormalizedKey
			if !explicit {
				return &Violation{
					Code:   ReasonEntityReplacement,
					Detail: fmt.Sprintf("%s %q was replaced by %q without the user naming it", t, before.LiteralText, after.LiteralText),
				}
			}
		}
	}
	return nil
}

func (v *Validator) checkMetricAndTime(prior, proposed *scope.ActiveScope, turn classify.Turn, upd scope.Update) *Violation {
	if prior.Metric != "" && proposed.Metric != prior.Metric && !turn.MetricExplicit {
		return &Violation{
			Code:   ReasonMetricOrTimeDrift,
			Detail: fmt.Sprintf("metric changed from %s to %s without an explicit override", prior.Metric, proposed.Metric),
		}
	}

	if !prior.TimeFilter.Equal(proposed.TimeFilter) {
		explicit := upd.TimeFilterSet || upd.ClearTime || turn.RemovalLanguage
		if !explicit {
			return &Violation{
				Code:   ReasonMetricOrTimeDrift,
				Detail: "time filter changed without an explicit time phrase",
			}
		}
	}
	return nil
}

func (v *Validator) checkAttributes(prior, proposed *scope.ActiveScope, turn classify.Turn) *Violation {
	for _, a := range prior.Attributes {
		if !proposed.HasAttribute(a) {
			return &Violation{
				Code:   ReasonAttributeDropped,
				Detail: fmt.Sprintf("previously requested attribute %q is missing", a),
			}
		}
	}
	for _, a := range turn.Attributes {
		if !proposed.HasAttribute(a) {
			return &Violation{
				Code:   ReasonAttributeDropped,
				Detail: fmt.Sprintf("attribute %q named in this turn is missing from the proposal", a),
			}
		}
	}
	return nil
}
