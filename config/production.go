// Package config provides configuration management and environment variable handling for the application
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database       DatabaseConfig       `json:"database"`
	Server         ServerConfig         `json:"server"`
	JWT            JWTConfig            `json:"jwt"`
	Admin          AdminConfig          `json:"admin"`
	Logging        LoggingConfig        `json:"logging"`
	Metrics        MetricsConfig        `json:"metrics"`
	Cache          CacheConfig          `json:"cache"`
	Scheduler      SchedulerConfig      `json:"scheduler"`
	Graph          GraphConfig          `json:"graph"`
	Credentials    CredentialsConfig    `json:"credentials"`
	Narrative      NarrativeConfig      `json:"narrative"`
	Recommendation RecommendationConfig `json:"recommendation"`
}

type DatabaseConfig struct {
	Driver          string        `json:"driver"` // postgres, sqlite
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	SQLitePath      string        `json:"sqlite_path"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
}

// DSN returns the postgres connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	BodyLimit       int           `json:"body_limit"`
	AllowedOrigins  []string      `json:"allowed_origins"`
}

type JWTConfig struct {
	SecretKey      string        `json:"secret_key"`
	PrivateKey     string        `json:"private_key"`  // RSA private key in PEM format
	PublicKey      string        `json:"public_key"`   // RSA public key in PEM format
	UseRSAKeys     bool          `json:"use_rsa_keys"` // Whether to use RSA keys instead of secret key
	AccessTokenTTL time.Duration `json:"access_token_ttl"`
	Issuer         string        `json:"issuer"`
	Audience       string        `json:"audience"`
}

// AdminConfig seeds the single admin account at startup
type AdminConfig struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // bcrypt
}

type LoggingConfig struct {
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled     bool          `json:"enabled"`
	RedisURL    string        `json:"redis_url"`
	RedisDB     int           `json:"redis_db"`
	RedisPrefix string        `json:"redis_prefix"`
	HealthCheck time.Duration `json:"health_check"`
}

// SchedulerConfig drives the background loops
type SchedulerConfig struct {
	Enabled             bool          `json:"enabled"`
	PostInterval        time.Duration `json:"post_interval"`
	AnalyticsInterval   time.Duration `json:"analytics_interval"`
	SettleDelay         time.Duration `json:"settle_delay"`
	CollectDelay        time.Duration `json:"collect_delay"`
	AnalyticsWindowDays int           `json:"analytics_window_days"`
	AnalyticsLimit      int           `json:"analytics_limit"`
	Timezone            string        `json:"timezone"`
	CycleLock           bool          `json:"cycle_lock"`
}

type GraphConfig struct {
	BaseURL         string        `json:"base_url"`
	PublishTimeout  time.Duration `json:"publish_timeout"`
	UploadTimeout   time.Duration `json:"upload_timeout"`
	MetricsTimeout  time.Duration `json:"metrics_timeout"`
	InsightsTimeout time.Duration `json:"insights_timeout"`
}

type CredentialsConfig struct {
	PagesFile string        `json:"pages_file"`
	CacheTTL  time.Duration `json:"cache_ttl"`
}

type NarrativeConfig struct {
	APIKey    string `json:"-"`
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
}

type RecommendationConfig struct {
	Enabled       bool   `json:"enabled"`
	Cron          string `json:"cron"`
	PeriodDays    int    `json:"period_days"`
	Limit         int    `json:"limit"`
	FreshnessDays int    `json:"freshness_days"`
	UseAI         bool   `json:"use_ai"`
	Locale        string `json:"locale"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	if err := loadEnvFile(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Driver:          strings.ToLower(getEnvString("DB_DRIVER", "postgres")),
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "page_pilot"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			SQLitePath:      getEnvString("DB_SQLITE_PATH", "data/page_pilot.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:       getEnvInt("SERVER_BODY_LIMIT", 4*1024*1024), // 4MB
			AllowedOrigins:  getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		JWT: JWTConfig{
			SecretKey:      getEnvString("JWT_SECRET_KEY", ""),
			PrivateKey:     getEnvString("JWT_PRIVATE_KEY", ""),
			PublicKey:      getEnvString("JWT_PUBLIC_KEY", ""),
			UseRSAKeys:     getEnvBool("JWT_USE_RSA_KEYS", false),
			AccessTokenTTL: getEnvDuration("JWT_ACCESS_TOKEN_TTL", 24*time.Hour),
			Issuer:         getEnvString("JWT_ISSUER", "page-pilot"),
			Audience:       getEnvString("JWT_AUDIENCE", "page-pilot-admin"),
		},
		Admin: AdminConfig{
			Username:     getEnvString("ADMIN_USERNAME", "admin"),
			PasswordHash: getEnvString("ADMIN_PASSWORD_HASH", ""),
		},
		Logging: LoggingConfig{
			FilePath:   getEnvString("LOG_FILE_PATH", "data/scheduler.log"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:     getEnvBool("CACHE_ENABLED", false),
			RedisURL:    getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:     getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix: getEnvString("CACHE_REDIS_PREFIX", "pagepilot:"),
			HealthCheck: getEnvDuration("CACHE_HEALTH_CHECK_INTERVAL", 30*time.Second),
		},
		Scheduler: SchedulerConfig{
			Enabled:             getEnvBool("SCHEDULER_ENABLED", true),
			PostInterval:        getEnvDuration("SCHEDULER_POST_INTERVAL", time.Minute),
			AnalyticsInterval:   getEnvDuration("SCHEDULER_ANALYTICS_INTERVAL", time.Hour),
			SettleDelay:         getEnvDuration("SCHEDULER_SETTLE_DELAY", 5*time.Second),
			CollectDelay:        getEnvDuration("SCHEDULER_COLLECT_DELAY", 500*time.Millisecond),
			AnalyticsWindowDays: getEnvInt("SCHEDULER_ANALYTICS_WINDOW_DAYS", 30),
			AnalyticsLimit:      getEnvInt("SCHEDULER_ANALYTICS_LIMIT", 50),
			Timezone:            getEnvString("SCHEDULER_TIMEZONE", "UTC"),
			CycleLock:           getEnvBool("SCHEDULER_CYCLE_LOCK", true),
		},
		Graph: GraphConfig{
			BaseURL:         getEnvString("GRAPH_BASE_URL", "https://graph.facebook.com/v18.0"),
			PublishTimeout:  getEnvDuration("GRAPH_PUBLISH_TIMEOUT", 30*time.Second),
			UploadTimeout:   getEnvDuration("GRAPH_UPLOAD_TIMEOUT", 30*time.Second),
			MetricsTimeout:  getEnvDuration("GRAPH_METRICS_TIMEOUT", 10*time.Second),
			InsightsTimeout: getEnvDuration("GRAPH_INSIGHTS_TIMEOUT", 5*time.Second),
		},
		Credentials: CredentialsConfig{
			PagesFile: getEnvString("CREDENTIALS_PAGES_FILE", "pages.json"),
			CacheTTL:  getEnvDuration("CREDENTIALS_CACHE_TTL", 10*time.Minute),
		},
		Narrative: NarrativeConfig{
			APIKey:    getEnvString("ANTHROPIC_API_KEY", ""),
			Model:     getEnvString("NARRATIVE_MODEL", "claude-3-5-haiku-latest"),
			MaxTokens: getEnvInt("NARRATIVE_MAX_TOKENS", 1024),
		},
		Recommendation: RecommendationConfig{
			Enabled:       getEnvBool("RECOMMENDATION_ENABLED", true),
			Cron:          getEnvString("RECOMMENDATION_CRON", "0 9 * * 1"),
			PeriodDays:    getEnvInt("RECOMMENDATION_PERIOD_DAYS", 30),
			Limit:         getEnvInt("RECOMMENDATION_LIMIT", 20),
			FreshnessDays: getEnvInt("RECOMMENDATION_FRESHNESS_DAYS", 7),
			UseAI:         getEnvBool("RECOMMENDATION_USE_AI", true),
			Locale:        getEnvString("RECOMMENDATION_LOCALE", "auto"),
		},
	}

	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads variables from path if it exists; variables already set win
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errs []string

	// Validate database configuration
	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.Host == "" {
			errs = append(errs, "DB_HOST is required")
		}
		if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
			errs = append(errs, "DB_PORT must be between 1 and 65535")
		}
		if cfg.Database.Name == "" {
			errs = append(errs, "DB_NAME is required")
		}
		if cfg.Database.User == "" {
			errs = append(errs, "DB_USER is required")
		}
	case "sqlite":
		if cfg.Database.SQLitePath == "" {
			errs = append(errs, "DB_SQLITE_PATH is required for the sqlite driver")
		}
	default:
		errs = append(errs, "DB_DRIVER must be one of: postgres, sqlite")
	}

	// Validate JWT configuration
	if !cfg.JWT.UseRSAKeys && len(cfg.JWT.SecretKey) < 32 {
		errs = append(errs, "JWT_SECRET_KEY must be at least 32 characters long")
	}
	if cfg.JWT.UseRSAKeys && (cfg.JWT.PrivateKey == "" || cfg.JWT.PublicKey == "") {
		errs = append(errs, "JWT_PRIVATE_KEY and JWT_PUBLIC_KEY are required when JWT_USE_RSA_KEYS is set")
	}
	if cfg.JWT.AccessTokenTTL <= 0 {
		errs = append(errs, "JWT_ACCESS_TOKEN_TTL must be positive")
	}
	if cfg.JWT.Issuer == "" {
		errs = append(errs, "JWT_ISSUER is required")
	}
	if cfg.JWT.Audience == "" {
		errs = append(errs, "JWT_AUDIENCE is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errs = append(errs, "SERVER_WRITE_TIMEOUT must be positive")
	}

	// Validate scheduler configuration
	if cfg.Scheduler.PostInterval <= 0 {
		errs = append(errs, "SCHEDULER_POST_INTERVAL must be positive")
	}
	if cfg.Scheduler.AnalyticsInterval <= 0 {
		errs = append(errs, "SCHEDULER_ANALYTICS_INTERVAL must be positive")
	}
	if cfg.Scheduler.SettleDelay < 0 || cfg.Scheduler.CollectDelay < 0 {
		errs = append(errs, "SCHEDULER_SETTLE_DELAY and SCHEDULER_COLLECT_DELAY must not be negative")
	}
	if cfg.Scheduler.AnalyticsWindowDays <= 0 || cfg.Scheduler.AnalyticsLimit <= 0 {
		errs = append(errs, "SCHEDULER_ANALYTICS_WINDOW_DAYS and SCHEDULER_ANALYTICS_LIMIT must be positive")
	}
	if _, err := time.LoadLocation(cfg.Scheduler.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("SCHEDULER_TIMEZONE is not a valid IANA zone: %s", cfg.Scheduler.Timezone))
	}

	// Validate publishing configuration
	if cfg.Graph.BaseURL == "" {
		errs = append(errs, "GRAPH_BASE_URL is required")
	}
	if cfg.Credentials.PagesFile == "" {
		errs = append(errs, "CREDENTIALS_PAGES_FILE is required")
	}

	// Validate recommendation configuration
	if cfg.Recommendation.Enabled && strings.TrimSpace(cfg.Recommendation.Cron) == "" {
		errs = append(errs, "RECOMMENDATION_CRON is required when recommendations are enabled")
	}
	if cfg.Recommendation.PeriodDays <= 0 || cfg.Recommendation.Limit <= 0 {
		errs = append(errs, "RECOMMENDATION_PERIOD_DAYS and RECOMMENDATION_LIMIT must be positive")
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled && cfg.Cache.RedisURL == "" {
		errs = append(errs, "CACHE_REDIS_URL is required when cache is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}
