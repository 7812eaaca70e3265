package disambig

import (
	"context"
	"fmt"
	"time"

	"ems-analytics-be/pkg/refine/binder"
	"ems-analytics-be/pkg/refine/catalog"
	"ems-analytics-be/pkg/refine/fuzzy"
	"ems-analytics-be/pkg/refine/scope"
)

// Outcome is the result of an ambiguity check. Either the mention
// turned out to be clear (optionally with a direct binding), or a
// clarification with explicit options is required. The engine never
// guesses between options.
type Outcome struct {
	NeedsClarification bool
	Reason             string
	Options            []string
	DirectBinding      *scope.EntityBinding
}

var clear = &Outcome{}

// Disambiguator detects structurally ambiguous references and turns
// them into clarification requests.
type Disambiguator struct {
	catalog catalog.Catalog
}

func New(cat catalog.Catalog) *Disambiguator {
	return &Disambiguator{catalog: cat}
}

// CheckCityWarehouse handles "<city> warehouse" mentions. One
// warehouse in the city binds directly; several produce a
// clarification offering each specific warehouse plus an
// all-warehouses-in-city aggregation.
func (d *Disambiguator) CheckCityWarehouse(ctx context.Context, city string) (*Outcome, error) {
	warehouses, err := d.catalog.WarehousesIn(ctx, city)
	if err != nil {
		return nil, err
	}

	switch len(warehouses) {
	case 0:
		return clear, nil
	case 1:
		return &Outcome{
			DirectBinding: &scope.EntityBinding{
				Type:          scope.EntityWarehouse,
				LiteralText:   warehouses[0],
				NormalizedKey: fuzzy.Normalize(warehouses[0]),
				BoundAt:       time.Now(),
			},
		}, nil
	}

	options := append([]string(nil), warehouses...)
	options = append(options, "all warehouses in "+city)
	return &Outcome{
		NeedsClarification: true,
		Reason: fmt.Sprintf(
			"%s has %d warehouses. Do you mean a specific warehouse, or all warehouses in %s?",
			city, len(warehouses), city,
		),
		Options: options,
	}, nil
}

// FromAmbiguous converts an ambiguous binder result into a
// clarification listing the competing candidates.
func (d *Disambiguator) FromAmbiguous(res *binder.Result) *Outcome {
	options := make([]string, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		options = append(options, fmt.Sprintf("%s (%s)", c.Name, c.Type))
	}
	return &Outcome{
		NeedsClarification: true,
		Reason:             fmt.Sprintf("%q matches more than one entity. Which one do you mean?", res.Mention),
		Options:            options,
	}
}
