package catalog

import (
	"context"
	"errors"
	"fmt"

	"ems-analytics-be/pkg/refine/scope"
)

// ErrUnavailable signals that the catalog collaborator could not be
// reached. Callers must surface this as a transient failure, never
// treat it as "no match".
var ErrUnavailable = errors.New("entity catalog unavailable")

// Catalog supplies the known names per entity type used for fuzzy
// matching, and the warehouse roster per city used for disambiguation.
type Catalog interface {
	Lookup(ctx context.Context, entityType scope.EntityType) ([]string, error)
	WarehousesIn(ctx context.Context, city string) ([]string, error)
}

// Retrying wraps a catalog and retries a failed lookup exactly once
// before reporting ErrUnavailable. The catalog is the only suspension
// point of a turn, so one retry is all a turn gets.
type Retrying struct {
	inner Catalog
}

func NewRetrying(inner Catalog) *Retrying {
	return &Retrying{inner: inner}
}

func (r *Retrying) Lookup(ctx context.Context, entityType scope.EntityType) ([]string, error) {
	names, err := r.inner.Lookup(ctx, entityType)
	if err == nil {
		return names, nil
	}
	names, err = r.inner.Lookup(ctx, entityType)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup %s: %v", ErrUnavailable, entityType, err)
	}
	return names, nil
}

func (r *Retrying) WarehousesIn(ctx context.Context, city string) ([]string, error) {
	names, err := r.inner.WarehousesIn(ctx, city)
	if err == nil {
		return names, nil
	}
	names, err = r.inner.WarehousesIn(ctx, city)
	if err != nil {
		return nil, fmt.Errorf("%w: warehouses in %s: %v", ErrUnavailable, city, err)
	}
	return names, nil
}
