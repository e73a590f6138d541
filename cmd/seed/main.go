// Command seed loads a small fleet of sample bins for local
// development and demos. Existing bins with the same identifiers are
// replaced.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/greenops/binsight/internal/config"
	"github.com/greenops/binsight/internal/domain/models"
	"github.com/greenops/binsight/internal/infrastructure/persistence/postgres"
	"github.com/greenops/binsight/pkg/constants"
	"github.com/greenops/binsight/pkg/errors"
	"github.com/greenops/binsight/pkg/logger"
)

func sampleBins(now time.Time) []*models.Bin {
	day := 24 * time.Hour

	build := func(binID string, category constants.WasteCategory, address string,
		fill int, lastEmptiedDays, installedDays, lastMaintenanceDays int,
		frequency constants.MaintenanceFrequency, imageURL, caption string) *models.Bin {

		bin := models.NewBin(binID, category, models.Location{
			Latitude:  40.7128,
			Longitude: -74.0060,
			Address:   address,
		}, 100, frequency)

		bin.FillLevel = fill
		bin.LastEmptied = now.Add(-time.Duration(lastEmptiedDays) * day)
		bin.InstallationDate = now.Add(-time.Duration(installedDays) * day)
		bin.Maintenance.LastMaintenanceDate = now.Add(-time.Duration(lastMaintenanceDays) * day)
		bin.Maintenance.Recompute()
		bin.Images = []models.BinImage{{
			URL:        imageURL,
			Caption:    caption,
			UploadedAt: now,
		}}
		return bin
	}

	return []*models.Bin{
		build("BIN-001", constants.CategoryMetal, "123 Main St, New York, NY",
			75, 3, 30, 25, constants.FrequencyMonthly,
			"https://images.unsplash.com/photo-1610701596007-11502861dcfa?w=400&h=300&fit=crop",
			"Metal waste bin"),
		build("BIN-002", constants.CategoryBiodegradable, "456 Oak Ave, New York, NY",
			45, 1, 60, 2, constants.FrequencyWeekly,
			"https://images.unsplash.com/photo-1542601906990-b4d3fb778b09?w=400&h=300&fit=crop",
			"Biodegradable waste bin"),
		build("BIN-003", constants.CategoryNonBiodegradable, "789 Pine St, New York, NY",
			85, 5, 90, 10, constants.FrequencyBiweekly,
			"https://images.unsplash.com/photo-1604187351574-c75ca79f5807?w=400&h=300&fit=crop",
			"Non-biodegradable waste bin"),
		build("BIN-004", constants.CategoryPlastic, "321 Elm St, New York, NY",
			55, 2, 45, 7, constants.FrequencyBiweekly,
			"https://images.unsplash.com/photo-1621451537084-482c73073a0f?w=400&h=300&fit=crop",
			"Plastic waste bin"),
	}
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.New(logger.Options{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	db, err := postgres.NewDBConnection(ctx, cfg.Database, appLogger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := postgres.NewBinRepository(db.DB(), appLogger)
	seeded := 0
	for _, bin := range sampleBins(time.Now().UTC()) {
		existing, err := repo.FindByBinID(ctx, bin.BinID)
		switch {
		case err == nil:
			bin.ID = existing.ID
			if err := repo.Update(ctx, bin); err != nil {
				log.Fatalf("Failed to update %s: %v", bin.BinID, err)
			}
		case errors.Is(err, errors.CodeUnknownBin):
			if err := repo.Save(ctx, bin); err != nil {
				log.Fatalf("Failed to insert %s: %v", bin.BinID, err)
			}
		default:
			log.Fatalf("Failed to look up %s: %v", bin.BinID, err)
		}
		seeded++
	}

	appLogger.Info(ctx, "Seeded sample bins", logger.Int("count", seeded))
}
