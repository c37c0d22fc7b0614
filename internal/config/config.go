package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the risk analysis server.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Model    ModelConfig    `mapstructure:"model"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// RedisConfig is optional. When URL is empty the training lock is local,
// artifacts must live on disk and rate limiting is off.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// KafkaConfig is optional. With no brokers, risk.computed events are dropped.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type ModelConfig struct {
	Backend               string        `mapstructure:"backend"`
	Explainer             string        `mapstructure:"explainer"`
	UnknownCategoryPolicy string        `mapstructure:"unknown_category_policy"`
	ArtifactStore         string        `mapstructure:"artifact_store"`
	ArtifactPath          string        `mapstructure:"artifact_path"`
	MinAUC                float64       `mapstructure:"min_auc"`
	SyntheticSamples      int           `mapstructure:"synthetic_samples"`
	ForestTrees           int           `mapstructure:"forest_trees"`
	Seed                  uint64        `mapstructure:"seed"`
	LockTTL               time.Duration `mapstructure:"lock_ttl"`
}

type AuthConfig struct {
	// APIKeyHashes are bcrypt hashes of accepted API keys. Empty disables auth.
	APIKeyHashes    []string `mapstructure:"api_key_hashes"`
	RateLimitPerMin int      `mapstructure:"rate_limit_per_min"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// envBindings maps config keys to the environment variables they are read from.
var envBindings = map[string]string{
	"server.port":                   "RISCO_PORT",
	"server.env":                    "RISCO_ENV",
	"database.url":                  "DATABASE_URL",
	"database.max_open_conns":       "DATABASE_MAX_OPEN_CONNS",
	"database.max_idle_conns":       "DATABASE_MAX_IDLE_CONNS",
	"database.conn_max_lifetime":    "DATABASE_CONN_MAX_LIFETIME",
	"database.migrations_dir":       "DATABASE_MIGRATIONS_DIR",
	"redis.url":                     "REDIS_URL",
	"kafka.brokers":                 "KAFKA_BROKERS",
	"kafka.topic":                   "KAFKA_TOPIC",
	"model.backend":                 "RISCO_MODEL_BACKEND",
	"model.explainer":               "RISCO_EXPLAINER",
	"model.unknown_category_policy": "RISCO_UNKNOWN_CATEGORY_POLICY",
	"model.artifact_store":          "RISCO_ARTIFACT_STORE",
	"model.artifact_path":           "RISCO_ARTIFACT_PATH",
	"model.min_auc":                 "RISCO_MIN_AUC",
	"model.synthetic_samples":       "RISCO_SYNTHETIC_SAMPLES",
	"model.forest_trees":            "RISCO_FOREST_TREES",
	"model.seed":                    "RISCO_SEED",
	"model.lock_ttl":                "RISCO_TRAINING_LOCK_TTL",
	"auth.api_key_hashes":           "RISCO_API_KEY_HASHES",
	"auth.rate_limit_per_min":       "RISCO_RATE_LIMIT_PER_MIN",
	"log.level":                     "RISCO_LOG_LEVEL",
	"log.format":                    "RISCO_LOG_FORMAT",
}

var (
	validBackends      = map[string]bool{"forest": true, "logistic": true}
	validExplainers    = map[string]bool{"tree": true, "linear": true}
	validPolicies      = map[string]bool{"extend": true, "sentinel": true}
	validArtifactStore = map[string]bool{"file": true, "redis": true}
	validLogLevels     = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats    = map[string]bool{"json": true, "text": true}
)

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	v := viper.New()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.env", "development")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.migrations_dir", "migrations")
	v.SetDefault("kafka.topic", "risk.computed")
	v.SetDefault("model.backend", "forest")
	v.SetDefault("model.explainer", "tree")
	v.SetDefault("model.unknown_category_policy", "extend")
	v.SetDefault("model.artifact_store", "file")
	v.SetDefault("model.artifact_path", "models/risk_model.json")
	v.SetDefault("model.min_auc", 0.85)
	v.SetDefault("model.synthetic_samples", 600)
	v.SetDefault("model.forest_trees", 100)
	v.SetDefault("model.seed", 42)
	v.SetDefault("model.lock_ttl", 5*time.Minute)
	v.SetDefault("auth.rate_limit_per_min", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Kafka.Brokers = compact(cfg.Kafka.Brokers)
	cfg.Auth.APIKeyHashes = compact(cfg.Auth.APIKeyHashes)
	cfg.Model.Backend = strings.ToLower(cfg.Model.Backend)
	cfg.Model.Explainer = strings.ToLower(cfg.Model.Explainer)
	cfg.Model.UnknownCategoryPolicy = strings.ToLower(cfg.Model.UnknownCategoryPolicy)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("RISCO_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Redis.URL != "" && !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		return fmt.Errorf("REDIS_URL must start with redis:// or rediss://, got %q", c.Redis.URL)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	if !validBackends[c.Model.Backend] {
		return fmt.Errorf("RISCO_MODEL_BACKEND must be one of forest, logistic; got %q", c.Model.Backend)
	}
	if !validExplainers[c.Model.Explainer] {
		return fmt.Errorf("RISCO_EXPLAINER must be one of tree, linear; got %q", c.Model.Explainer)
	}
	if !validPolicies[c.Model.UnknownCategoryPolicy] {
		return fmt.Errorf("RISCO_UNKNOWN_CATEGORY_POLICY must be one of extend, sentinel; got %q", c.Model.UnknownCategoryPolicy)
	}
	if !validArtifactStore[c.Model.ArtifactStore] {
		return fmt.Errorf("RISCO_ARTIFACT_STORE must be one of file, redis; got %q", c.Model.ArtifactStore)
	}
	if c.Model.ArtifactStore == "redis" && c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required when RISCO_ARTIFACT_STORE is redis")
	}
	if c.Model.ArtifactStore == "file" && c.Model.ArtifactPath == "" {
		return fmt.Errorf("RISCO_ARTIFACT_PATH is required when RISCO_ARTIFACT_STORE is file")
	}
	if c.Model.MinAUC <= 0 || c.Model.MinAUC > 1 {
		return fmt.Errorf("RISCO_MIN_AUC must be in (0, 1], got %v", c.Model.MinAUC)
	}
	if c.Model.SyntheticSamples < 50 {
		return fmt.Errorf("RISCO_SYNTHETIC_SAMPLES must be at least 50, got %d", c.Model.SyntheticSamples)
	}
	if c.Model.ForestTrees <= 0 {
		return fmt.Errorf("RISCO_FOREST_TREES must be positive, got %d", c.Model.ForestTrees)
	}

	if c.Auth.RateLimitPerMin < 0 {
		return fmt.Errorf("RISCO_RATE_LIMIT_PER_MIN must not be negative, got %d", c.Auth.RateLimitPerMin)
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("RISCO_LOG_LEVEL must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("RISCO_LOG_FORMAT must be one of json, text; got %q", c.Log.Format)
	}

	return nil
}

// compact drops blank entries from comma-separated lists.
func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
