package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	Env                      string
	Addr                     string
	LogLevel                 string
	MaxPlayers               int
	CountdownSeconds         int
	SessionTTLHours          int
	SweepIntervalMinutes     int
	EnforceHost              bool
	StoreBackend             string
	DatabaseURL              string
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeSeconds int
	DBConnMaxIdleTimeSeconds int
	PersistEvents            bool
	SnippetsPath             string
	NATSURL                  string
	NATSSubjectPrefix        string
	CORSOrigins              []string
	RateLimitPerMinute       int
	RateLimitBurst           int
}

func Default() Config {
	return Config{
		Env:                      "development",
		Addr:                     ":3001",
		LogLevel:                 "info",
		MaxPlayers:               20,
		CountdownSeconds:         4,
		SessionTTLHours:          24,
		SweepIntervalMinutes:     60,
		EnforceHost:              true,
		StoreBackend:             StoreMemory,
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           10,
		DBConnMaxLifetimeSeconds: 300,
		DBConnMaxIdleTimeSeconds: 60,
		NATSSubjectPrefix:        "typeroyale.events",
		CORSOrigins:              []string{"*"},
		RateLimitPerMinute:       30,
		RateLimitBurst:           10,
	}
}

func Load() Config {
	cfg := Default()
	if raw := os.Getenv("APP_ENV"); raw != "" {
		cfg.Env = raw
	}
	if raw := os.Getenv("PORT"); raw != "" {
		cfg.Addr = ":" + raw
	}
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := os.Getenv("MAX_PLAYERS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.MaxPlayers = value
		}
	}
	if raw := os.Getenv("COUNTDOWN_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.CountdownSeconds = value
		}
	}
	if raw := os.Getenv("SESSION_TTL_HOURS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.SessionTTLHours = value
		}
	}
	if raw := os.Getenv("SWEEP_INTERVAL_MINUTES"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.SweepIntervalMinutes = value
		}
	}
	if raw := os.Getenv("ENFORCE_HOST"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.EnforceHost = value
		}
	}
	if raw := os.Getenv("STORE_BACKEND"); raw != "" {
		cfg.StoreBackend = strings.ToLower(raw)
	}
	if raw := os.Getenv("DATABASE_URL"); raw != "" {
		cfg.DatabaseURL = raw
	}
	if raw := os.Getenv("DB_MAX_OPEN_CONNS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBMaxOpenConns = value
		}
	}
	if raw := os.Getenv("DB_MAX_IDLE_CONNS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBMaxIdleConns = value
		}
	}
	if raw := os.Getenv("DB_CONN_MAX_LIFETIME_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBConnMaxLifetimeSeconds = value
		}
	}
	if raw := os.Getenv("DB_CONN_MAX_IDLE_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBConnMaxIdleTimeSeconds = value
		}
	}
	if raw := os.Getenv("EVENT_LOG"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.PersistEvents = value
		}
	}
	if raw := os.Getenv("SNIPPETS_PATH"); raw != "" {
		cfg.SnippetsPath = raw
	}
	if raw := os.Getenv("NATS_URL"); raw != "" {
		cfg.NATSURL = raw
	}
	if raw := os.Getenv("NATS_SUBJECT_PREFIX"); raw != "" {
		cfg.NATSSubjectPrefix = raw
	}
	if raw := os.Getenv("CORS_ORIGINS"); raw != "" {
		origins := make([]string, 0)
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				origins = append(origins, origin)
			}
		}
		if len(origins) > 0 {
			cfg.CORSOrigins = origins
		}
	}
	if raw := os.Getenv("RATE_LIMIT_PER_MINUTE"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.RateLimitPerMinute = value
		}
	}
	if raw := os.Getenv("RATE_LIMIT_BURST"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.RateLimitBurst = value
		}
	}
	return cfg
}

func (c Config) Countdown() time.Duration {
	return time.Duration(c.CountdownSeconds) * time.Second
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

func (c Config) Development() bool {
	return c.Env == "development"
}
