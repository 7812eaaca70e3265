package main

import (
	"log"

	"ems-analytics-be/internal/config"
	"ems-analytics-be/internal/model"
	"ems-analytics-be/pkg/database"

	"gorm.io/gorm/clause"
)

// Seeds a development catalog so entity resolution has something to
// match against. Safe to re-run, existing names are skipped.
func main() {
	cfg := config.Load()

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	if err := db.AutoMigrate(&model.Vendor{}, &model.Account{}, &model.Warehouse{}); err != nil {
		log.Panicf("Auto-migration failed: %v", err)
	}

	vendors := []model.Vendor{
		{Name: "Deo Corp"},
		{Name: "Gaurav Traders"},
		{Name: "KBR Logistics"},
		{Name: "Apex Packaging"},
		{Name: "Shree Transport"},
		{Name: "Natura Supplies"},
	}
	accounts := []model.Account{
		{Name: "Freight & Haulage"},
		{Name: "Office Rent"},
		{Name: "Utilities"},
		{Name: "Packaging Material"},
		{Name: "Maintenance & Repairs"},
	}
	warehouses := []model.Warehouse{
		{Name: "Pune 1", City: "Pune", Region: "West"},
		{Name: "Pune 2", City: "Pune", Region: "West"},
		{Name: "Mumbai Central", City: "Mumbai", Region: "West"},
		{Name: "Delhi North", City: "Delhi", Region: "North"},
		{Name: "Gurgaon Hub", City: "Gurgaon", Region: "North"},
		{Name: "Chennai Port", City: "Chennai", Region: "South"},
		{Name: "Bengaluru East", City: "Bengaluru", Region: "South"},
		{Name: "Kolkata Yard", City: "Kolkata", Region: "East"},
	}

	onNameConflictDoNothing := clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}

	seed := func(label string, rows interface{}) {
		if err := db.Clauses(onNameConflictDoNothing).Create(rows).Error; err != nil {
			log.Panicf("Failed to seed %s: %v", label, err)
		}
	}

	seed("vendors", &vendors)
	seed("accounts", &accounts)
	seed("warehouses", &warehouses)

	var vc, ac, wc int64
	db.Model(&model.Vendor{}).Count(&vc)
	db.Model(&model.Account{}).Count(&ac)
	db.Model(&model.Warehouse{}).Count(&wc)

	log.Printf("✅ Catalog seeded: %d vendors, %d accounts, %d warehouses", vc, ac, wc)
}
