package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App struct {
		Env string
	}

	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	DB struct {
		Driver   string
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		LogSQL   bool
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	GRPC struct {
		Host string
		Port string
	}

	Ops struct {
		Addr string
	}

	Auth     AuthConfig
	Matching MatchingConfig
	Agent    AgentConfig
	Drops    DropConfig
	Notify   NotifyConfig
}

// AuthConfig controls how request sessions are resolved.
type AuthConfig struct {
	JWTSecret     string
	SessionPrefix string
}

// MatchingConfig bounds candidate pools and result pages.
type MatchingConfig struct {
	PoolSize            int
	PageSize            int
	MaxPageSize         int
	SectionSize         int
	StrictSectionDedupe bool
}

// AgentConfig holds the natural-language search limits.
type AgentConfig struct {
	DailySearchLimit int
	ResultLimit      int
}

// DropConfig drives the weekly drop job and its expiry cleanup.
type DropConfig struct {
	Size             int
	TTL              time.Duration
	Weekday          time.Weekday
	Hour             int
	CleanupInterval  time.Duration
	BatchSize        int
	LockTTL          time.Duration
	SchedulerEnabled bool
}

// NotifyConfig selects the push hand-off.
type NotifyConfig struct {
	Driver  string
	Channel string
	Timeout time.Duration
}

// Load reads an optional .env file, builds the config and validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg := New()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func New() *Config {
	cfg := &Config{}

	cfg.App.Env = getEnvDefault("APP_ENV", "production")

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "discovery")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Database
	cfg.DB.Driver = strings.ToLower(getEnvDefault("DB_DRIVER", "mysql"))
	cfg.DB.LogSQL = isTruthy(os.Getenv("DB_LOG_SQL"))
	cfg.DB.DSN = os.Getenv("DATABASE_DSN")
	if cfg.DB.DSN == "" && cfg.DB.Driver == "mysql" {
		cfg.DB.DSN = os.Getenv("MYSQL_DSN")
	}
	if cfg.DB.DSN == "" {
		defaultPort := "3306"
		if cfg.DB.Driver == "postgres" {
			defaultPort = "5432"
		}
		cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
		cfg.DB.Port = getEnvDefault("DB_PORT", defaultPort)
		cfg.DB.User = getEnvDefault("DB_USER", "root")
		cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
		cfg.DB.Name = getEnvDefault("DB_NAME", "strath")

		switch cfg.DB.Driver {
		case "postgres":
			cfg.DB.DSN = fmt.Sprintf(
				"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
				cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name,
			)
		default:
			cfg.DB.DSN = fmt.Sprintf(
				"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
				cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
			)
		}
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	// gRPC
	cfg.GRPC.Host = getEnvDefault("GRPC_HOST", "127.0.0.1")
	cfg.GRPC.Port = getEnvDefault("GRPC_PORT", "50051")

	// Ops HTTP (metrics, health)
	cfg.Ops.Addr = getEnvDefault("OPS_ADDR", ":9090")

	// Auth
	cfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.Auth.SessionPrefix = getEnvDefault("SESSION_KEY_PREFIX", "session:")

	// Matching
	cfg.Matching.PoolSize = getEnvInt("MATCHING_POOL_SIZE", 200)
	cfg.Matching.PageSize = getEnvInt("MATCHING_PAGE_SIZE", 20)
	cfg.Matching.MaxPageSize = getEnvInt("MATCHING_MAX_PAGE_SIZE", 50)
	cfg.Matching.SectionSize = getEnvInt("SECTION_SIZE", 10)
	cfg.Matching.StrictSectionDedupe = isTruthy(os.Getenv("SECTION_STRICT_DEDUPE"))

	// Agent search
	cfg.Agent.DailySearchLimit = getEnvInt("AGENT_DAILY_SEARCH_LIMIT", 10)
	cfg.Agent.ResultLimit = getEnvInt("AGENT_RESULT_LIMIT", 10)

	// Weekly drops
	cfg.Drops.Size = getEnvInt("DROP_SIZE", 5)
	cfg.Drops.TTL = getEnvDuration("DROP_TTL", 7*24*time.Hour)
	cfg.Drops.Weekday = parseWeekday(getEnvDefault("DROP_WEEKDAY", "monday"))
	cfg.Drops.Hour = getEnvInt("DROP_HOUR", 9)
	cfg.Drops.CleanupInterval = getEnvDuration("DROP_CLEANUP_INTERVAL", time.Hour)
	cfg.Drops.BatchSize = getEnvInt("DROP_BATCH_SIZE", 100)
	cfg.Drops.LockTTL = getEnvDuration("DROP_LOCK_TTL", 30*time.Minute)
	cfg.Drops.SchedulerEnabled = isTruthy(getEnvDefault("DROP_SCHEDULER_ENABLED", "true"))

	// Notifications
	cfg.Notify.Driver = strings.ToLower(getEnvDefault("NOTIFY_DRIVER", "redis"))
	cfg.Notify.Channel = getEnvDefault("NOTIFY_CHANNEL", "notifications:push")
	cfg.Notify.Timeout = getEnvDuration("NOTIFY_TIMEOUT", 5*time.Second)

	return cfg
}

// Validate rejects settings no component can run with. Every problem is
// reported, not just the first one.
func (c *Config) Validate() error {
	var errs []error

	if c.DB.Driver != "mysql" && c.DB.Driver != "postgres" {
		errs = append(errs, fmt.Errorf("DB_DRIVER must be mysql or postgres, got %q", c.DB.Driver))
	}
	if c.Agent.DailySearchLimit <= 0 {
		errs = append(errs, fmt.Errorf("AGENT_DAILY_SEARCH_LIMIT must be a positive integer, got %d", c.Agent.DailySearchLimit))
	}
	if c.Agent.ResultLimit <= 0 {
		errs = append(errs, fmt.Errorf("AGENT_RESULT_LIMIT must be positive, got %d", c.Agent.ResultLimit))
	}
	if c.Matching.PoolSize <= 0 {
		errs = append(errs, fmt.Errorf("MATCHING_POOL_SIZE must be positive, got %d", c.Matching.PoolSize))
	}
	if c.Matching.PageSize <= 0 || c.Matching.PageSize > c.Matching.MaxPageSize {
		errs = append(errs, fmt.Errorf("MATCHING_PAGE_SIZE must be in 1..%d, got %d", c.Matching.MaxPageSize, c.Matching.PageSize))
	}
	if c.Matching.SectionSize <= 0 {
		errs = append(errs, fmt.Errorf("SECTION_SIZE must be positive, got %d", c.Matching.SectionSize))
	}
	if c.Drops.Size <= 0 {
		errs = append(errs, fmt.Errorf("DROP_SIZE must be positive, got %d", c.Drops.Size))
	}
	if c.Drops.TTL <= 0 {
		errs = append(errs, fmt.Errorf("DROP_TTL must be positive, got %s", c.Drops.TTL))
	}
	if c.Drops.Hour < 0 || c.Drops.Hour > 23 {
		errs = append(errs, fmt.Errorf("DROP_HOUR must be in 0..23, got %d", c.Drops.Hour))
	}
	if c.Drops.CleanupInterval <= 0 {
		errs = append(errs, fmt.Errorf("DROP_CLEANUP_INTERVAL must be positive, got %s", c.Drops.CleanupInterval))
	}
	if c.Drops.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("DROP_BATCH_SIZE must be positive, got %d", c.Drops.BatchSize))
	}
	if c.Notify.Driver != "redis" && c.Notify.Driver != "log" {
		errs = append(errs, fmt.Errorf("NOTIFY_DRIVER must be redis or log, got %q", c.Notify.Driver))
	}

	return errors.Join(errs...)
}

// IsDevelopment reports whether demo data may be seeded on boot.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

// getEnvInt falls back to def when the value is missing or not a number.
func getEnvInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func parseWeekday(s string) time.Weekday {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d
		}
	}
	return time.Monday
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
