// Package config builds process configuration from the environment so main
// stays lean. A local .env file is honored in development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"reliefpool/pkg/domain"
)

// Config aggregates all process-level settings.
type Config struct {
	Server   Server
	Postgres Postgres
	Redis    Redis
	Kafka    Kafka
	Ledger   Ledger
	Batch    Batch
	Auth     Auth
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr string
}

// Postgres captures database connection settings.
type Postgres struct {
	URL string
}

// Redis captures cache connection settings.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka captures event stream settings. Brokers empty means events stay
// in-process only.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Ledger captures XRPL network and platform wallet settings. Wallet secrets
// stay with the external signer; only addresses are configured here.
type Ledger struct {
	Network        string
	NodeURL        string
	PoolAddress    domain.Address
	ReserveAddress domain.Address
	// ReserveFloor is kept untouched in the reserve account to satisfy the
	// ledger's base reserve requirement.
	ReserveFloor domain.Drops
}

// Batch captures batching policy.
type Batch struct {
	Threshold  domain.Drops
	TimeWindow time.Duration
	// PollInterval is how often the batch manager and settlement worker wake.
	PollInterval time.Duration
	// LockDuration is how long a batch escrow stays time-locked.
	LockDuration time.Duration
}

// Auth captures org-dashboard session settings.
type Auth struct {
	JWTSigningKey string
	TokenTTL      time.Duration
}

// FromEnv builds a Config from environment variables, loading .env first if
// present.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Server: Server{
			Addr: envOr("RELIEFPOOL_ADDR", ":8080"),
		},
		Postgres: Postgres{
			URL: os.Getenv("DATABASE_URL"),
		},
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envIntOr("REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: Kafka{
			Brokers: splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			Topic:   envOr("KAFKA_LIFECYCLE_TOPIC", "reliefpool.lifecycle"),
		},
		Ledger: Ledger{
			Network:      envOr("XRPL_NETWORK", "devnet"),
			NodeURL:      envOr("XRPL_NODE_URL", "wss://s.devnet.rippletest.net:51233"),
			ReserveFloor: domain.FromXRP(envFloatOr("RESERVE_FLOOR_XRP", 10)),
		},
		Batch: Batch{
			Threshold:    domain.FromXRP(envFloatOr("BATCH_THRESHOLD_XRP", 100)),
			TimeWindow:   envDurationOr("BATCH_TIME_WINDOW", 15*time.Minute),
			PollInterval: envDurationOr("BATCH_POLL_INTERVAL", 30*time.Second),
			LockDuration: envDurationOr("BATCH_LOCK_DURATION", time.Minute),
		},
		Auth: Auth{
			JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			TokenTTL:      envDurationOr("ORG_TOKEN_TTL", 24*time.Hour),
		},
	}

	var err error
	if cfg.Ledger.PoolAddress, err = parseAddr("POOL_WALLET_ADDRESS"); err != nil {
		return Config{}, err
	}
	if cfg.Ledger.ReserveAddress, err = parseAddr("RESERVE_WALLET_ADDRESS"); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func parseAddr(key string) (domain.Address, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return "", nil
	}
	addr, err := domain.ParseAddress(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	return addr, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(csv string) []string {
	if csv == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(csv); i++ {
		if i == len(csv) || csv[i] == ',' {
			if part := csv[start:i]; part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}
