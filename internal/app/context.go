package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-discovery/internal/cache"
	"github.com/oggyb/muzz-discovery/internal/config"
	"github.com/oggyb/muzz-discovery/internal/delivery"
)

// AppContext holds shared dependencies (DB, Redis, Logger, delivery edge, etc.)
type AppContext struct {
	Config     *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache // optional; vote counts fall back to the DB
	Delivery   delivery.Deliverer
	Logger     *slog.Logger
}

// New creates a new AppContext
func New(cfg *config.Config, db *gorm.DB, rdb *cache.RedisCache, d delivery.Deliverer, logger *slog.Logger) *AppContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppContext{
		Config:     cfg,
		DB:         db,
		RedisCache: rdb,
		Delivery:   d,
		Logger:     logger,
	}
}
