package cache

import (
	"context"
	"encoding/json"
	"time"

	"ems-analytics-be/internal/pkg/logger"
	"ems-analytics-be/internal/repository/contract"
	"ems-analytics-be/pkg/refine/scope"

	"github.com/redis/go-redis/v9"
)

// CachedCatalogRepository fronts the database-backed catalog with Redis.
// Cache failures fall through to the database so a dead Redis never
// breaks entity resolution.
type CachedCatalogRepository struct {
	inner contract.CatalogRepository
	rdb   *redis.Client
	ttl   time.Duration
	log   logger.ILogger
}

func NewCachedCatalogRepository(inner contract.CatalogRepository, rdb *redis.Client, ttl time.Duration, log logger.ILogger) contract.CatalogRepository {
	return &CachedCatalogRepository{inner: inner, rdb: rdb, ttl: ttl, log: log}
}

func (r *CachedCatalogRepository) ListNames(ctx context.Context, entityType scope.EntityType) ([]string, error) {
	key := "catalog:names:" + string(entityType)
	if names, ok := r.get(ctx, key); ok {
		return names, nil
	}

	names, err := r.inner.ListNames(ctx, entityType)
	if err != nil {
		return nil, err
	}
	r.set(ctx, key, names)
	return names, nil
}

func (r *CachedCatalogRepository) ListWarehousesInCity(ctx context.Context, city string) ([]string, error) {
	key := "catalog:warehouses:" + city
	if names, ok := r.get(ctx, key); ok {
		return names, nil
	}

	names, err := r.inner.ListWarehousesInCity(ctx, city)
	if err != nil {
		return nil, err
	}
	r.set(ctx, key, names)
	return names, nil
}

func (r *CachedCatalogRepository) get(ctx context.Context, key string) ([]string, bool) {
	if r.rdb == nil {
		return nil, false
	}
	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.log.Warn("catalog-cache", "redis get failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
		return nil, false
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, false
	}
	return names, true
}

func (r *CachedCatalogRepository) set(ctx context.Context, key string, names []string) {
	if r.rdb == nil {
		return
	}
	raw, err := json.Marshal(names)
	if err != nil {
		return
	}
	if err := r.rdb.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		r.log.Warn("catalog-cache", "redis set failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}
