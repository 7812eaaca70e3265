package contract

import (
	"context"

	"ems-analytics-be/pkg/refine/scope"
)

type CatalogRepository interface {
	ListNames(ctx context.Context, entityType scope.EntityType) ([]string, error)
	ListWarehousesInCity(ctx context.Context, city string) ([]string, error)
}
