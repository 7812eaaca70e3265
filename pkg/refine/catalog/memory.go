package catalog

import (
	"context"
	"strings"

	"ems-analytics-be/pkg/refine/scope"
)

// Memory is a static in-memory catalog. Used by the simulation harness
// and tests; production wiring reads the same shape from postgres.
type Memory struct {
	names      map[scope.EntityType][]string
	warehouses map[string][]string // lowercased city -> warehouse names
}

// NewMemory builds a catalog from name lists per type. City→warehouse
// membership is derived from warehouse names that start with the city
// name ("Pune 1", "Pune 2") unless set explicitly via SetWarehousesIn.
func NewMemory(names map[scope.EntityType][]string) *Memory {
	m := &Memory{
		names:      make(map[scope.EntityType][]string, len(names)),
		warehouses: make(map[string][]string),
	}
	for t, list := range names {
		m.names[t] = append([]string(nil), list...)
	}
	for _, city := range m.names[scope.EntityCity] {
		cityLower := strings.ToLower(city)
		for _, wh := range m.names[scope.EntityWarehouse] {
			if strings.HasPrefix(strings.ToLower(wh), cityLower) {
				m.warehouses[cityLower] = append(m.warehouses[cityLower], wh)
			}
		}
	}
	return m
}

// SetWarehousesIn overrides the derived city→warehouse membership.
func (m *Memory) SetWarehousesIn(city string, warehouses []string) {
	m.warehouses[strings.ToLower(city)] = append([]string(nil), warehouses...)
}

func (m *Memory) Lookup(_ context.Context, entityType scope.EntityType) ([]string, error) {
	return m.names[entityType], nil
}

func (m *Memory) WarehousesIn(_ context.Context, city string) ([]string, error) {
	return m.warehouses[strings.ToLower(city)], nil
}
