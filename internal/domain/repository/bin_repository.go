// Package repository defines persistence interfaces for the domain
// layer. Implementations live under internal/infrastructure.
package repository

import (
	"context"

	"github.com/greenops/binsight/internal/domain/models"
	"github.com/greenops/binsight/pkg/constants"
)

// CategoryFillAverage is an aggregate row for the analytics endpoint.
type CategoryFillAverage struct {
	Category     constants.WasteCategory `json:"category"`
	AverageFill  float64                 `json:"averageFill"`
	BinCount     int64                   `json:"binCount"`
}

// BinRepository persists bin records. The state engine decides every
// transition in memory first; repository writes are bounded follow-up
// I/O and never gate a transition decision.
type BinRepository interface {
	// Save inserts a newly provisioned bin.
	Save(ctx context.Context, bin *models.Bin) error

	// Update persists the current state of an existing bin.
	Update(ctx context.Context, bin *models.Bin) error

	// FindByBinID returns the bin with the given public identifier.
	FindByBinID(ctx context.Context, binID string) (*models.Bin, error)

	// FindAll returns every bin record.
	FindAll(ctx context.Context) ([]*models.Bin, error)

	// FillAveragesByCategory aggregates current fill levels per category.
	FillAveragesByCategory(ctx context.Context) ([]CategoryFillAverage, error)
}
