package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/cache"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/config"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/db"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/logger"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/repository"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/session"
)

func main() {
	users := flag.Int("users", 40, "number of demo users")
	seed := flag.Int64("seed", 1, "random seed")
	tokens := flag.Int("tokens", 3, "dev session tokens to print (users 1..n)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger.InitFromConfig(cfg)
	log := logger.Named("seed")
	ctx := context.Background()

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	if err := db.SeedDemoData(ctx, database, repository.NewInteractionRepository(database), db.SeedOptions{Users: *users, Seed: *seed}); err != nil {
		log.Error("failed to seed", "err", err)
		os.Exit(1)
	}
	log.Info("seeding completed")

	if *tokens <= 0 {
		return
	}

	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		log.Warn("redis unavailable, skipping session tokens", "err", err)
		return
	}
	for id := uint64(1); id <= uint64(min(*tokens, *users)); id++ {
		tok := uuid.NewString()
		if err := redisCache.PutSession(ctx, tok, id, 24*time.Hour); err != nil {
			log.Error("failed to store session", "user_id", id, "err", err)
			os.Exit(1)
		}
		fmt.Printf("user %d  x-session-token: %s\n", id, tok)
		if cfg.Auth.JWTSecret != "" {
			jwt, err := session.IssueToken([]byte(cfg.Auth.JWTSecret), id, time.Now(), 24*time.Hour)
			if err != nil {
				log.Error("failed to issue token", "user_id", id, "err", err)
				os.Exit(1)
			}
			fmt.Printf("user %d  authorization: Bearer %s\n", id, jwt)
		}
	}
}
