package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/greenops/binsight/internal/domain/models"
	"github.com/greenops/binsight/internal/domain/repository"
	"github.com/greenops/binsight/pkg/errors"
	"github.com/greenops/binsight/pkg/logger"
)

// BinRepoImpl implements BinRepository on a gorm handle.
type BinRepoImpl struct {
	db  *gorm.DB
	log logger.Logger
}

// NewBinRepository creates a new relational bin repository.
func NewBinRepository(db *gorm.DB, log logger.Logger) repository.BinRepository {
	return &BinRepoImpl{
		db:  db,
		log: log.WithComponent("bin-repository"),
	}
}

// Save inserts a newly provisioned bin.
func (r *BinRepoImpl) Save(ctx context.Context, bin *models.Bin) error {
	startTime := time.Now()

	now := time.Now()
	if bin.CreatedAt.IsZero() {
		bin.CreatedAt = now
	}
	bin.UpdatedAt = now

	if err := r.db.WithContext(ctx).Create(bin).Error; err != nil {
		r.log.Error(ctx, "Failed to insert bin", err,
			logger.String("bin_id", bin.BinID))
		return errors.ErrInternal("database write failed").WithCause(err)
	}

	r.log.Info(ctx, "Bin record created",
		logger.String("bin_id", bin.BinID),
		logger.String("category", string(bin.Category)),
		logger.Int64("latency_ms", time.Since(startTime).Milliseconds()))
	return nil
}

// Update persists the current state of an existing bin. A full-row
// save keeps zero values (fill level 0, cleared timestamps) instead of
// gorm's partial-update semantics dropping them.
func (r *BinRepoImpl) Update(ctx context.Context, bin *models.Bin) error {
	bin.UpdatedAt = time.Now()

	result := r.db.WithContext(ctx).
		Model(&models.Bin{}).
		Where("bin_id = ?", bin.BinID).
		Select("*").
		Omit("id", "created_at").
		Updates(bin)

	if result.Error != nil {
		r.log.Error(ctx, "Failed to update bin", result.Error,
			logger.String("bin_id", bin.BinID))
		return errors.ErrInternal("database write failed").WithCause(result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.ErrUnknownBin(bin.BinID)
	}
	return nil
}

// FindByBinID returns the bin with the given public identifier.
func (r *BinRepoImpl) FindByBinID(ctx context.Context, binID string) (*models.Bin, error) {
	var bin models.Bin
	err := r.db.WithContext(ctx).
		Where("bin_id = ?", binID).
		First(&bin).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrUnknownBin(binID)
		}
		r.log.Error(ctx, "Failed to query bin", err,
			logger.String("bin_id", binID))
		return nil, errors.ErrInternal("database query failed").WithCause(err)
	}
	return &bin, nil
}

// FindAll returns every bin record ordered by public identifier.
func (r *BinRepoImpl) FindAll(ctx context.Context) ([]*models.Bin, error) {
	var bins []*models.Bin
	err := r.db.WithContext(ctx).
		Order("bin_id ASC").
		Find(&bins).Error
	if err != nil {
		r.log.Error(ctx, "Failed to list bins", err)
		return nil, errors.ErrInternal("database query failed").WithCause(err)
	}
	return bins, nil
}

// FillAveragesByCategory aggregates current fill levels per category.
func (r *BinRepoImpl) FillAveragesByCategory(ctx context.Context) ([]repository.CategoryFillAverage, error) {
	var rows []repository.CategoryFillAverage
	err := r.db.WithContext(ctx).
		Model(&models.Bin{}).
		Select("category, AVG(fill_level) AS average_fill, COUNT(*) AS bin_count").
		Group("category").
		Order("category ASC").
		Scan(&rows).Error
	if err != nil {
		r.log.Error(ctx, "Failed to aggregate fill levels", err)
		return nil, errors.ErrInternal("database query failed").WithCause(err)
	}
	return rows, nil
}
