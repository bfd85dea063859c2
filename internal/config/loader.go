package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "foodshare.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "FOODSHARE_PORT")
	setString(&cfg.Server.CORSOrigin, "FOODSHARE_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "FOODSHARE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "FOODSHARE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "FOODSHARE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "FOODSHARE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "FOODSHARE_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.IdempotencyBucket, "FOODSHARE_IDEMPOTENCY_BUCKET")
	setDuration(&cfg.NATS.IdempotencyTTL, "FOODSHARE_IDEMPOTENCY_TTL")
	setString(&cfg.Logging.Level, "FOODSHARE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "FOODSHARE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "FOODSHARE_LOG_ASYNC")
	setFloat64(&cfg.Rate.RequestsPerSecond, "FOODSHARE_RATE_RPS")
	setInt(&cfg.Rate.Burst, "FOODSHARE_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "FOODSHARE_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "FOODSHARE_RATE_MAX_IDLE_TIME")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "FOODSHARE_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "FOODSHARE_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "FOODSHARE_CACHE_L2_TTL")
	setDuration(&cfg.Cache.LeaderboardTTL, "FOODSHARE_CACHE_LEADERBOARD_TTL")

	// Storage
	setString(&cfg.Storage.Dir, "FOODSHARE_STORAGE_DIR")
	setString(&cfg.Storage.PublicBaseURL, "FOODSHARE_STORAGE_PUBLIC_URL")
	setInt64(&cfg.Storage.MaxUploadMB, "FOODSHARE_STORAGE_MAX_UPLOAD_MB")

	// Delivery simulator
	setString(&cfg.Delivery.PoolFile, "FOODSHARE_DELIVERY_POOL_FILE")
	setDuration(&cfg.Delivery.OfferInterval, "FOODSHARE_DELIVERY_OFFER_INTERVAL")
	setDuration(&cfg.Delivery.OfferTimeout, "FOODSHARE_DELIVERY_OFFER_TIMEOUT")
	setDuration(&cfg.Delivery.CountdownTick, "FOODSHARE_DELIVERY_COUNTDOWN_TICK")
	setBool(&cfg.Delivery.DutyOnOpen, "FOODSHARE_DELIVERY_DUTY_ON_OPEN")

	// Rewards
	setInt(&cfg.Rewards.DeliveryFee, "FOODSHARE_DELIVERY_FEE")
	setInt(&cfg.Rewards.LeaderboardLimit, "FOODSHARE_LEADERBOARD_LIMIT")

	// OpenTelemetry
	setBool(&cfg.OTEL.Enabled, "FOODSHARE_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.OTEL.Insecure, "FOODSHARE_OTEL_INSECURE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Storage.Dir == "" {
		return errors.New("storage.dir is required")
	}
	if cfg.Delivery.OfferInterval <= 0 {
		return errors.New("delivery.offer_interval must be > 0")
	}
	if cfg.Delivery.OfferTimeout <= 0 {
		return errors.New("delivery.offer_timeout must be > 0")
	}
	if cfg.Delivery.CountdownTick <= 0 || cfg.Delivery.CountdownTick > cfg.Delivery.OfferTimeout {
		return errors.New("delivery.countdown_tick must be > 0 and <= offer_timeout")
	}
	if cfg.Rewards.DeliveryFee < 0 {
		return errors.New("rewards.delivery_fee must be >= 0")
	}
	if cfg.Rewards.LeaderboardLimit < 1 {
		return errors.New("rewards.leaderboard_limit must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
