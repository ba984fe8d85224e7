package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Neo4j          Neo4jConfig          `mapstructure:"neo4j"`
	Kafka          KafkaConfig          `mapstructure:"kafka"`
	Auth           AuthConfig           `mapstructure:"auth"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Recommendation RecommendationConfig `mapstructure:"recommendation"`
	Monitoring     MonitoringConfig     `mapstructure:"monitoring"`
	Security       SecurityConfig       `mapstructure:"security"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int           `mapstructure:"max_connections"`
	MaxIdleTime    time.Duration `mapstructure:"max_idle_time"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	SeedSampleData bool          `mapstructure:"seed_sample_data"`
}

type RedisConfig struct {
	// URL is a host:port address. Redis is optional; leave empty to run
	// without cache, job tracking and rate limiting.
	URL        string        `mapstructure:"url"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	MaxRetries int           `mapstructure:"max_retries"`
	PoolSize   int           `mapstructure:"pool_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type Neo4jConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// Breaker settings for calls into the graph.
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`
	Topics  struct {
		CatalogImport string `mapstructure:"catalog_import"`
		DeadLetter    string `mapstructure:"dead_letter"`
	} `mapstructure:"topics"`
	MaxRetries int `mapstructure:"max_retries"`
	// BatchSize is the number of records published per message.
	BatchSize int `mapstructure:"batch_size"`
}

type AuthConfig struct {
	JWTSecret string          `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration   `mapstructure:"token_ttl"`
	APIKeys   []string        `mapstructure:"api_keys"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Admin  int           `mapstructure:"admin"`
	Window time.Duration `mapstructure:"window"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RecommendationConfig struct {
	Caching CachingConfig `mapstructure:"caching"`
}

type CachingConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	RecommendationsTTL time.Duration `mapstructure:"recommendations_ttl"`
	JobTTL             time.Duration `mapstructure:"job_ttl"`
}

type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
}

type SecurityConfig struct {
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	// Set defaults
	setDefaults()

	// Environment variable overrides
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional, continue with env vars and defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	config.Database.URL = NormalizeDatabaseURL(config.Database.URL, wd)

	return &config, nil
}

// NormalizeDatabaseURL rewrites the legacy postgres:// scheme to
// postgresql:// and makes relative SQLite paths absolute against baseDir.
func NormalizeDatabaseURL(url, baseDir string) string {
	switch {
	case strings.HasPrefix(url, "postgres://"):
		return "postgresql://" + strings.TrimPrefix(url, "postgres://")
	case strings.HasPrefix(url, "sqlite://"):
		path := strings.TrimPrefix(strings.TrimPrefix(url, "sqlite:///"), "sqlite://")
		if path == ":memory:" {
			return "sqlite:///" + path
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		return "sqlite://" + path
	default:
		return url
	}
}

// Driver returns "postgres" or "sqlite" for a normalised database URL.
func (c DatabaseConfig) Driver() string {
	if strings.HasPrefix(c.URL, "sqlite://") {
		return "sqlite"
	}
	return "postgres"
}

// SQLitePath returns the file path of a sqlite:// URL.
func (c DatabaseConfig) SQLitePath() string {
	path := strings.TrimPrefix(c.URL, "sqlite://")
	if strings.HasPrefix(path, "/:memory:") {
		return ":memory:"
	}
	return path
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "development")

	// Database defaults
	viper.SetDefault("database.url", "sqlite:///wine_preferences.db")
	viper.SetDefault("database.max_connections", 25)
	viper.SetDefault("database.max_idle_time", "15m")
	viper.SetDefault("database.max_lifetime", "1h")
	viper.SetDefault("database.connect_timeout", "10s")
	viper.SetDefault("database.seed_sample_data", true)

	// Redis defaults
	viper.SetDefault("redis.url", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.timeout", "5s")

	// Neo4j defaults
	viper.SetDefault("neo4j.enabled", false)
	viper.SetDefault("neo4j.url", "neo4j://localhost:7687")
	viper.SetDefault("neo4j.username", "neo4j")
	viper.SetDefault("neo4j.failure_threshold", 5)
	viper.SetDefault("neo4j.open_timeout", "30s")

	// Kafka defaults
	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.group_id", "cellar-catalog-import")
	viper.SetDefault("kafka.topics.catalog_import", "catalog-import")
	viper.SetDefault("kafka.topics.dead_letter", "catalog-import-dlq")
	viper.SetDefault("kafka.max_retries", 3)
	viper.SetDefault("kafka.batch_size", 100)

	// Auth defaults
	viper.SetDefault("auth.token_ttl", "24h")
	viper.SetDefault("auth.api_keys", []string{})
	viper.SetDefault("auth.rate_limit.admin", 120)
	viper.SetDefault("auth.rate_limit.window", "1m")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Caching defaults
	viper.SetDefault("recommendation.caching.enabled", true)
	viper.SetDefault("recommendation.caching.recommendations_ttl", "15m")
	viper.SetDefault("recommendation.caching.job_ttl", "24h")

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_path", "/metrics")

	// Security defaults
	viper.SetDefault("security.cors.allowed_origins", []string{"*"})
	viper.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("security.cors.allowed_headers", []string{"*"})
}
