package disambig

import (
	"context"
	"testing"

	"ems-analytics-be/pkg/refine/binder"
	"ems-analytics-be/pkg/refine/catalog"
	"ems-analytics-be/pkg/refine/scope"
)

func testCatalog() *catalog.Memory {
	cat := catalog.NewMemory(map[scope.EntityType][]string{
		scope.EntityWarehouse: {"Pune 1", "Pune 2", "Mumbai Central"},
		scope.EntityCity:      {"Pune", "Mumbai", "Delhi"},
	})
	cat.SetWarehousesIn("Pune", []string{"Pune 1", "Pune 2"})
	cat.SetWarehousesIn("Mumbai", []string{"Mumbai Central"})
	cat.SetWarehousesIn("Delhi", nil)
	return cat
}

func TestCityWithTwoWarehousesNeedsClarification(t *testing.T) {
	d := New(testCatalog())

	out, err := d.CheckCityWarehouse(context.Background(), "Pune")
	if err != nil {
		t.Fatal(err)
	}
	if !out.NeedsClarification {
		t.Fatal("expected a clarification")
	}

	want := []string{"Pune 1", "Pune 2", "all warehouses in Pune"}
	if len(out.Options) != len(want) {
		t.Fatalf("Options = %v, want %v", out.Options, want)
	}
	for i, o := range want {
		if out.Options[i] != o {
			t.Errorf("Options[%d] = %q, want %q", i, out.Options[i], o)
		}
	}
}

func TestCityWithOneWarehouseBindsDirectly(t *testing.T) {
	d := New(testCatalog())

	out, err := d.CheckCityWarehouse(context.Background(), "Mumbai")
	if err != nil {
		t.Fatal(err)
	}
	if out.NeedsClarification {
		t.Fatal("single warehouse must not require clarification")
	}
	if out.DirectBinding == nil || out.DirectBinding.LiteralText != "Mumbai Central" {
		t.Errorf("DirectBinding = %+v, want Mumbai Central", out.DirectBinding)
	}
}

func TestCityWithNoWarehousesIsClear(t *testing.T) {
	d := New(testCatalog())

	out, err := d.CheckCityWarehouse(context.Background(), "Delhi")
	if err != nil {
		t.Fatal(err)
	}
	if out.NeedsClarification || out.DirectBinding != nil {
		t.Errorf("Outcome = %+v, want clear", out)
	}
}

func TestFromAmbiguous(t *testing.T) {
	d := New(testCatalog())

	out := d.FromAmbiguous(&binder.Result{
		Mention: "Pune",
		State:   binder.StateAmbiguous,
		Candidates: []binder.Candidate{
			{Type: scope.EntityCity, Name: "Pune"},
			{Type: scope.EntityWarehouse, Name: "Pune 1"},
		},
	})

	if !out.NeedsClarification {
		t.Fatal("expected a clarification")
	}
	want := []string{"Pune (CITY)", "Pune 1 (WAREHOUSE)"}
	for i, o := range want {
		if out.Options[i] != o {
			t.Errorf("Options[%d] = %q, want %q", i, out.Options[i], o)
		}
	}
}
