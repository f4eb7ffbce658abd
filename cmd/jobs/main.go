// Command jobs runs one drop maintenance job and exits. It is meant for
// external schedulers (cron, Kubernetes CronJob) when the in-process
// scheduler is disabled.
//
// Usage:
//
//	jobs weekly-drop
//	jobs expire-drops
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/app"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/cache"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/config"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/db"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/drops"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/logger"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: jobs <weekly-drop|expire-drops>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger.InitFromConfig(cfg)
	log := logger.Named("jobs").With("job", os.Args[1])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		log.Error("failed to connect to redis", "err", err)
		os.Exit(1)
	}

	svc := drops.NewFromApp(app.New(cfg, database, redisCache, log))

	switch os.Args[1] {
	case "weekly-drop":
		res, err := svc.RunWeeklyDropJob(ctx)
		if errors.Is(err, drops.ErrJobInProgress) {
			log.Warn("weekly drop job already running elsewhere")
			return
		}
		if err != nil {
			log.Error("weekly drop job failed", "err", err)
			os.Exit(1)
		}
		log.Info("weekly drop job finished",
			"processed", res.Processed, "created", res.Created, "skipped", res.Skipped, "failed", res.Failed)
	case "expire-drops":
		n, err := svc.RunExpiryCleanup(ctx)
		if err != nil {
			log.Error("expiry cleanup failed", "err", err)
			os.Exit(1)
		}
		log.Info("expiry cleanup finished", "expired", n)
	default:
		fmt.Fprintf(os.Stderr, "unknown job %q\n", os.Args[1])
		os.Exit(2)
	}
}
