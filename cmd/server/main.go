package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/app"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/cache"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/config"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/db"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/drops"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/logger"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/repository"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/server"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/service/discovery"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		log.Error("failed to connect to redis", "err", err)
		os.Exit(1)
	}

	appCtx := app.New(cfg, database, redisCache, log)

	if cfg.IsDevelopment() {
		if err := db.SeedDemoData(ctx, database, repository.NewInteractionRepository(database), db.SeedOptions{Users: 40, Seed: 1, PasswordCost: bcrypt.MinCost}); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	// one drop service serves both the API and the scheduler
	dropSvc := drops.NewFromApp(appCtx)

	grpcServer, health := server.NewGRPCServer(
		session.NewResolver(redisCache, cfg.Auth.JWTSecret),
		discovery.NewRegistrar(appCtx, dropSvc),
	)

	ops := server.NewOpsRouter(map[string]server.ReadyCheck{
		"db": func(ctx context.Context) error {
			sqlDB, err := database.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": redisCache.Ping,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.StartGRPCServer(gctx, cfg, grpcServer, health) })
	g.Go(func() error { return server.StartOpsServer(gctx, cfg.Ops.Addr, ops) })

	if cfg.Drops.SchedulerEnabled {
		scheduler := drops.NewScheduler(dropSvc, drops.ScheduleConfig{
			Weekday:         cfg.Drops.Weekday,
			Hour:            cfg.Drops.Hour,
			CleanupInterval: cfg.Drops.CleanupInterval,
		}, appCtx.Clock)
		scheduler.Start(gctx)
		g.Go(func() error {
			scheduler.Wait()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
