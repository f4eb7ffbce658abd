package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/cache"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/clock"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/config"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/notify"
)

// AppContext holds shared dependencies (config, DB, Redis, logger, clock,
// notifier). Services build their repositories from it.
type AppContext struct {
	Config     *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
	Clock      clock.Clock
	Notifier   notify.Notifier
}

// New creates a new AppContext. The notifier follows cfg.Notify.Driver:
// "redis" publishes on the configured channel, anything else only logs.
func New(cfg *config.Config, db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger) *AppContext {
	var n notify.Notifier = notify.NewLogNotifier(logger.With("component", "notify"))
	if cfg.Notify.Driver == "redis" && rdb != nil {
		n = notify.NewRedisPublisher(rdb, cfg.Notify.Channel)
	}
	return &AppContext{
		Config:     cfg,
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
		Clock:      clock.System(),
		Notifier:   n,
	}
}
