// Package config loads server settings from .env, an optional YAML file
// and the process environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

type Config struct {
	Port     string `yaml:"port"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"logLevel"`

	StoreBackend  string `yaml:"storeBackend"`
	DatabaseURL   string `yaml:"databaseUrl"`
	MongoURI      string `yaml:"mongoUri"`
	MongoDatabase string `yaml:"mongoDatabase"`
	RedisAddr     string `yaml:"redisAddr"`

	KafkaBrokers []string `yaml:"kafkaBrokers"`
	KafkaTopic   string   `yaml:"kafkaTopic"`

	JWTSecret string        `yaml:"jwtSecret"`
	TokenTTL  time.Duration `yaml:"tokenTtl"`

	StoreTimeout       time.Duration `yaml:"storeTimeout"`
	TransferMaxRetries uint64        `yaml:"transferMaxRetries"`
	TransferRetryBase  time.Duration `yaml:"transferRetryBase"`
	BreakerMaxFailures uint32        `yaml:"breakerMaxFailures"`

	RateLimitRPS   float64       `yaml:"rateLimitRps"`
	RateLimitBurst int           `yaml:"rateLimitBurst"`
	SearchCacheTTL time.Duration `yaml:"searchCacheTtl"`
}

func Default() *Config {
	return &Config{
		Port:               "3000",
		Env:                "development",
		LogLevel:           "info",
		StoreBackend:       BackendMemory,
		MongoDatabase:      "paytm",
		KafkaTopic:         "transfers.completed",
		TokenTTL:           24 * time.Hour,
		StoreTimeout:       3 * time.Second,
		TransferMaxRetries: 3,
		TransferRetryBase:  20 * time.Millisecond,
		BreakerMaxFailures: 5,
		RateLimitRPS:       5,
		RateLimitBurst:     10,
		SearchCacheTTL:     30 * time.Second,
	}
}

// Load reads .env (a missing file only warrants a warning), then the YAML
// file named by CONFIG_FILE if set, then environment overrides.
func Load(logger *zap.Logger) (*Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := godotenv.Load(); err != nil {
		logger.Warn("no .env file found, relying on system environment variables")
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Port = getEnv("PORT", c.Port)
	c.Env = getEnv("ENV", c.Env)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.StoreBackend = getEnv("STORE_BACKEND", c.StoreBackend)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.MongoURI = getEnv("MONGO_URI", c.MongoURI)
	c.MongoDatabase = getEnv("MONGO_DATABASE", c.MongoDatabase)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.KafkaTopic = getEnv("KAFKA_TOPIC", c.KafkaTopic)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	if brokers, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		c.KafkaBrokers = splitList(brokers)
	}

	return errors.Join(
		envDuration("TOKEN_TTL", &c.TokenTTL),
		envDuration("STORE_TIMEOUT", &c.StoreTimeout),
		envDuration("TRANSFER_RETRY_BASE", &c.TransferRetryBase),
		envDuration("SEARCH_CACHE_TTL", &c.SearchCacheTTL),
		envUint("TRANSFER_MAX_RETRIES", 64, func(v uint64) { c.TransferMaxRetries = v }),
		envUint("BREAKER_MAX_FAILURES", 32, func(v uint64) { c.BreakerMaxFailures = uint32(v) }),
		envFloat("RATE_LIMIT_RPS", &c.RateLimitRPS),
		envInt("RATE_LIMIT_BURST", &c.RateLimitBurst),
	)
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	case BackendMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, errors.New("STORE_TIMEOUT must be positive"))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("rate limit must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envDuration(key string, dst *time.Duration) error {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func envUint(key string, bits int, set func(uint64)) error {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseUint(raw, 10, bits)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	set(v)
	return nil
}

func envInt(key string, dst *int) error {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = v
	return nil
}

func envFloat(key string, dst *float64) error {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = v
	return nil
}
