// Package postgres provides relational persistence for bin records.
// PostgreSQL backs production deployments; an embedded SQLite database
// serves development and tests through the same gorm handle.
package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/greenops/binsight/internal/config"
	"github.com/greenops/binsight/internal/domain/models"
	"github.com/greenops/binsight/pkg/errors"
	"github.com/greenops/binsight/pkg/logger"
)

// DBConnection manages the database handle lifecycle.
type DBConnection struct {
	db  *gorm.DB
	cfg config.DatabaseConfig
	log logger.Logger
}

// NewDBConnection opens the database selected by cfg.Driver, applies
// pool settings, migrates the schema, and verifies connectivity.
func NewDBConnection(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) (*DBConnection, error) {
	log = log.WithComponent("database")

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		log.Error(ctx, "Failed to open database", err,
			logger.String("driver", cfg.Driver))
		return nil, errors.ErrUnavailable("database is unreachable").WithCause(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.ErrInternal("database handle unavailable").WithCause(err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := db.WithContext(ctx).AutoMigrate(&models.Bin{}); err != nil {
		log.Error(ctx, "Schema migration failed", err)
		return nil, errors.ErrInternal("schema migration failed").WithCause(err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		log.Error(ctx, "Database ping failed", err)
		return nil, errors.ErrUnavailable("database is unreachable").WithCause(err)
	}

	log.Info(ctx, "Database connection established",
		logger.String("driver", cfg.Driver))

	return &DBConnection{db: db, cfg: cfg, log: log}, nil
}

// DB returns the underlying gorm handle.
func (c *DBConnection) DB() *gorm.DB {
	return c.db
}

// Ping verifies the connection is still healthy.
func (c *DBConnection) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (c *DBConnection) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	c.log.Info(context.Background(), "Closing database connection")
	return sqlDB.Close()
}
