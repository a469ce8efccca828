// seed-demo creates a demo event with a couple of organizations and work
// orders for local development.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-demo
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/crisisops/relief_backend/config"
	"github.com/crisisops/relief_backend/models"
	"github.com/crisisops/relief_backend/utils"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	event, err := models.CreateEvent(ctx, &models.NewEvent{
		Name:      "Demo Flood 2026",
		CaseLabel: "DF",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create event: %v\n", err)
		os.Exit(1)
	}

	reporter, err := models.CreateOrganization(ctx, &models.NewOrganization{Name: "River County EOC"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create organization: %v\n", err)
		os.Exit(1)
	}
	claimer, err := models.CreateOrganization(ctx, &models.NewOrganization{Name: "Hands On Relief"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create organization: %v\n", err)
		os.Exit(1)
	}

	sites := []*models.NewSite{
		{
			EventId:    event.ID,
			Name:       "Mary Johnson",
			Phone1:     "555-204-1177",
			Address:    "118 Oak Street",
			City:       "Riverton",
			County:     "River",
			State:      "TX",
			ZipCode:    "77801",
			Latitude:   utils.NewFloat(30.6213),
			Longitude:  utils.NewFloat(-96.3421),
			Status:     "Open, unassigned",
			WorkType:   "Flood",
			ReportedBy: reporter.ID,
			ExtraFields: models.ExtraFields{
				"flood_height":   "3 ft",
				"older_than_60":  "y",
				"work_requested": "Muck out first floor",
			},
		},
		{
			EventId:    event.ID,
			Name:       "Pete Alvarez",
			Phone1:     "555-204-8830",
			Address:    "742 Cedar Lane",
			City:       "Riverton",
			County:     "River",
			State:      "TX",
			ZipCode:    "77801",
			Latitude:   utils.NewFloat(30.6355),
			Longitude:  utils.NewFloat(-96.3518),
			Status:     "Open, assigned",
			WorkType:   "Trees",
			ReportedBy: reporter.ID,
			ClaimedBy:  claimer.ID,
			ExtraFields: models.ExtraFields{
				"num_trees_down": "4",
				"work_requested": "Clear driveway",
			},
		},
	}
	for _, input := range sites {
		site, err := models.CreateSite(ctx, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create site: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("created %s (%s) at %s\n", site.CaseNumber, site.Name, site.FullStreetAddress())
	}

	fmt.Printf("seeded event %d (%s)\n", event.ID, event.Name)
}
