package main

import (
	"context"
	"fmt"
	"log"

	"ems-analytics-be/internal/pkg/logger"
	"ems-analytics-be/pkg/refine"
	"ems-analytics-be/pkg/refine/catalog"
	"ems-analytics-be/pkg/refine/scope"
	"ems-analytics-be/pkg/store"

	"github.com/fatih/color"
)

// In-process conversation walkthrough against a static catalog. No
// server, no database, just the refinement engine end to end.
func main() {
	color.Cyan("=== Query Refinement Simulation ===")

	cat := catalog.NewMemory(map[scope.EntityType][]string{
		scope.EntityVendor:    {"Deo Corp", "Gaurav Traders", "KBR Logistics", "Apex Packaging"},
		scope.EntityAccount:   {"Freight & Haulage", "Office Rent", "Utilities"},
		scope.EntityWarehouse: {"Pune 1", "Pune 2", "Mumbai Central", "Delhi North"},
		scope.EntityCity:      {"Pune", "Mumbai", "Delhi"},
		scope.EntityRegion:    {"North", "South", "East", "West"},
	})

	sysLogger := logger.NewZapLogger("logs/simulation.log", false)
	defer sysLogger.Sync()

	refiner := refine.NewRefiner(cat, sysLogger)
	session := store.NewSession("simulation")
	ctx := context.Background()

	turns := []struct {
		text string
		// after simulates the query execution pipeline reporting rows back
		after func()
	}{
		{text: "hello"},
		{text: "show me the total expense for last month", after: func() {
			refiner.RecordResult(session, scope.EntityVendor,
				[]string{"Deo Corp", "Gaurav Traders", "KBR Logistics"}, 3)
		}},
		{text: "what about KBR"},
		{text: "include their remarks as well"},
		{text: "show expenses for the warehouse in Pune"},
		{text: "all warehouses in Pune"},
		{text: "new question: how many invoices were rejected this month"},
	}

	for _, turn := range turns {
		color.Yellow("\nUSER: %s", turn.text)

		result, err := refiner.Process(ctx, session, turn.text)
		if err != nil {
			log.Fatalf("Turn failed: %v", err)
		}

		switch result.Type {
		case refine.TypeGreeting, refine.TypeFAQ:
			color.Green("BOT:  %s", result.Message)
		case refine.TypeAnalytics:
			color.Green("REFINED: %s", result.Refined.CanonicalText)
		case refine.TypeClarification:
			color.Magenta("CLARIFY: %s", result.Clarification.Reason)
			for i, opt := range result.Clarification.Options {
				fmt.Printf("         %d) %s\n", i+1, opt)
			}
		case refine.TypeInvalid:
			color.Red("REJECTED [%s]: %s", result.Invalid.Reason, result.Invalid.Detail)
		}

		if turn.after != nil {
			turn.after()
		}
	}

	color.Cyan("\n=== Done ===")
}
