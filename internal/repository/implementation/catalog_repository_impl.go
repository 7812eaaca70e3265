package implementation

import (
	"context"
	"fmt"

	"ems-analytics-be/internal/model"
	"ems-analytics-be/internal/repository/contract"
	"ems-analytics-be/pkg/refine/scope"

	"gorm.io/gorm"
)

type CatalogRepositoryImpl struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) contract.CatalogRepository {
	return &CatalogRepositoryImpl{db: db}
}

func (r *CatalogRepositoryImpl) ListNames(ctx context.Context, entityType scope.EntityType) ([]string, error) {
	var names []string
	var err error

	switch entityType {
	case scope.EntityVendor:
		err = r.db.WithContext(ctx).Model(&model.Vendor{}).
			Order("name").Pluck("name", &names).Error
	case scope.EntityAccount:
		err = r.db.WithContext(ctx).Model(&model.Account{}).
			Order("name").Pluck("name", &names).Error
	case scope.EntityWarehouse:
		err = r.db.WithContext(ctx).Model(&model.Warehouse{}).
			Order("name").Pluck("name", &names).Error
	case scope.EntityCity:
		err = r.db.WithContext(ctx).Model(&model.Warehouse{}).
			Distinct("city").Order("city").Pluck("city", &names).Error
	case scope.EntityRegion:
		err = r.db.WithContext(ctx).Model(&model.Warehouse{}).
			Distinct("region").Order("region").Pluck("region", &names).Error
	default:
		return nil, fmt.Errorf("unknown entity type: %s", entityType)
	}

	if err != nil {
		return nil, err
	}
	return names, nil
}

func (r *CatalogRepositoryImpl) ListWarehousesInCity(ctx context.Context, city string) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&model.Warehouse{}).
		Where("LOWER(city) = LOWER(?)", city).
		Order("name").Pluck("name", &names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}
