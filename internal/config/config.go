package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"gopkg.in/yaml.v3"

	"plinko/internal/leaderboard"
	"plinko/internal/store"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr         string        `yaml:"addr"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		IdleTimeout  time.Duration `yaml:"idle_timeout"`
		RateLimit    int           `yaml:"rate_limit"`
		CORSOrigins  string        `yaml:"cors_origins"`
	} `yaml:"server"`
	Store struct {
		Backend string `yaml:"backend"`
	} `yaml:"store"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Database struct {
		URL        string `yaml:"url"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	NATS struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url"`
		Prefix  string `yaml:"prefix"`
	} `yaml:"nats"`
	Game struct {
		TokenDenom           string           `yaml:"token_denom"`
		Admin                string           `yaml:"admin"`
		Funder               string           `yaml:"funder"`
		HouseAccount         string           `yaml:"house_account"`
		PrizePoolPercentage  uint8            `yaml:"prize_pool_percentage"`
		ClaimPeriodSeconds   uint64           `yaml:"claim_period_seconds"`
		PrizeLeaderboardType leaderboard.Type `yaml:"prize_leaderboard_type"`
	} `yaml:"game"`
	Schedule struct {
		DailyReportCron string `yaml:"daily_report_cron"`
	} `yaml:"schedule"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("PLINKO_ADDR", c.Server.Addr)
	c.Server.RateLimit = getEnvAsInt("PLINKO_RATE_LIMIT", c.Server.RateLimit)
	c.Server.CORSOrigins = getEnv("PLINKO_CORS_ORIGINS", c.Server.CORSOrigins)
	c.Store.Backend = getEnv("PLINKO_STORE", c.Store.Backend)

	c.Redis.Addr = getEnv("REDIS_URL", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)

	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.Database.SQLitePath = getEnv("SQLITE_PATH", c.Database.SQLitePath)

	c.NATS.Enabled = getEnvAsBool("NATS_ENABLED", c.NATS.Enabled)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.Prefix = getEnv("NATS_PREFIX", c.NATS.Prefix)

	c.Game.TokenDenom = getEnv("PLINKO_DENOM", c.Game.TokenDenom)
	c.Game.Admin = getEnv("PLINKO_ADMIN", c.Game.Admin)
	c.Game.Funder = getEnv("PLINKO_FUNDER", c.Game.Funder)
	c.Game.HouseAccount = getEnv("PLINKO_HOUSE_ACCOUNT", c.Game.HouseAccount)
	c.Game.PrizePoolPercentage = uint8(getEnvAsInt("PLINKO_PRIZE_POOL_PERCENTAGE", int(c.Game.PrizePoolPercentage)))
	if v := os.Getenv("PLINKO_CLAIM_PERIOD_SECONDS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.Game.ClaimPeriodSeconds = n
		}
	}
	c.Game.PrizeLeaderboardType = leaderboard.Type(getEnv("PLINKO_PRIZE_LEADERBOARD", string(c.Game.PrizeLeaderboardType)))

	c.Schedule.DailyReportCron = getEnv("CRON_DAILY_REPORT", c.Schedule.DailyReportCron)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = time.Minute
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 100
	}
	if c.Server.CORSOrigins == "" {
		c.Server.CORSOrigins = "*"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = store.BackendMemory
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = store.DefaultRedisPrefix
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/plinko.db"
	}
	if c.NATS.URL == "" {
		c.NATS.URL = "nats://localhost:4222"
	}
	if c.NATS.Prefix == "" {
		c.NATS.Prefix = "plinko"
	}
	if c.Game.TokenDenom == "" {
		c.Game.TokenDenom = "uplinko"
	}
	if c.Game.ClaimPeriodSeconds == 0 {
		c.Game.ClaimPeriodSeconds = 7 * leaderboard.SecondsPerDay
	}
	if c.Game.PrizeLeaderboardType == "" {
		c.Game.PrizeLeaderboardType = leaderboard.BestWins
	}
	if c.Schedule.DailyReportCron == "" {
		c.Schedule.DailyReportCron = "0 5 0 * * *"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case store.BackendMemory, store.BackendRedis, store.BackendSQLite:
	case store.BackendPostgres:
		if c.Database.URL == "" {
			return errors.New("database.url is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Game.Admin == "" {
		return errors.New("game.admin is required")
	}
	if c.Game.PrizePoolPercentage > 100 {
		return errors.New("game.prize_pool_percentage must be between 0 and 100")
	}
	if _, err := leaderboard.ParseType(string(c.Game.PrizeLeaderboardType)); err != nil {
		return fmt.Errorf("game.prize_leaderboard_type: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
