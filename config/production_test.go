package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *ProductionConfig {
	return &ProductionConfig{
		Database: DatabaseConfig{Driver: "sqlite", SQLitePath: "data/test.db"},
		Server:   ServerConfig{Port: 8080, ReadTimeout: time.Second, WriteTimeout: time.Second},
		JWT: JWTConfig{
			SecretKey:      strings.Repeat("k", 32),
			AccessTokenTTL: time.Hour,
			Issuer:         "page-pilot",
			Audience:       "page-pilot-admin",
		},
		Scheduler: SchedulerConfig{
			PostInterval:        time.Minute,
			AnalyticsInterval:   time.Hour,
			SettleDelay:         5 * time.Second,
			CollectDelay:        500 * time.Millisecond,
			AnalyticsWindowDays: 30,
			AnalyticsLimit:      50,
			Timezone:            "UTC",
		},
		Graph:          GraphConfig{BaseURL: "https://graph.facebook.com/v18.0"},
		Credentials:    CredentialsConfig{PagesFile: "pages.json"},
		Recommendation: RecommendationConfig{Enabled: true, Cron: "0 9 * * 1", PeriodDays: 30, Limit: 20},
	}
}

func TestValidateProductionConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *ProductionConfig)
		wantErr string
	}{
		{name: "valid sqlite", mutate: func(c *ProductionConfig) {}},
		{
			name: "valid postgres",
			mutate: func(c *ProductionConfig) {
				c.Database = DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, Name: "pp", User: "pp"}
			},
		},
		{
			name:    "unknown driver",
			mutate:  func(c *ProductionConfig) { c.Database.Driver = "mysql" },
			wantErr: "DB_DRIVER must be one of",
		},
		{
			name:    "postgres without host",
			mutate:  func(c *ProductionConfig) { c.Database = DatabaseConfig{Driver: "postgres", Port: 5432, Name: "pp", User: "pp"} },
			wantErr: "DB_HOST is required",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *ProductionConfig) { c.JWT.SecretKey = "short" },
			wantErr: "JWT_SECRET_KEY must be at least 32 characters long",
		},
		{
			name:    "bad timezone",
			mutate:  func(c *ProductionConfig) { c.Scheduler.Timezone = "Mars/Olympus" },
			wantErr: "SCHEDULER_TIMEZONE",
		},
		{
			name:    "recommendations without cron",
			mutate:  func(c *ProductionConfig) { c.Recommendation.Cron = " " },
			wantErr: "RECOMMENDATION_CRON is required",
		},
		{
			name:    "negative delay",
			mutate:  func(c *ProductionConfig) { c.Scheduler.SettleDelay = -time.Second },
			wantErr: "must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := ValidateProductionConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateProductionConfig_JoinsMessages(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Graph.BaseURL = ""

	err := ValidateProductionConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_PORT must be between 1 and 65535; GRAPH_BASE_URL is required")
}

func TestLoadProductionConfig_FromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("JWT_SECRET_KEY", strings.Repeat("s", 40))
	t.Setenv("SCHEDULER_SETTLE_DELAY", "2s")
	t.Setenv("SCHEDULER_ANALYTICS_LIMIT", "25")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("RECOMMENDATION_USE_AI", "false")

	cfg, err := LoadProductionConfig()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 2*time.Second, cfg.Scheduler.SettleDelay)
	assert.Equal(t, 25, cfg.Scheduler.AnalyticsLimit)
	assert.Equal(t, 30, cfg.Scheduler.AnalyticsWindowDays)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.False(t, cfg.Recommendation.UseAI)
	assert.Equal(t, "0 9 * * 1", cfg.Recommendation.Cron)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("PP_TEST_FROM_FILE=\"quoted value\"\nPP_TEST_PRESET=file\n"), 0o600))
	t.Setenv("PP_TEST_PRESET", "env")
	t.Setenv("PP_TEST_FROM_FILE", "")
	require.NoError(t, os.Unsetenv("PP_TEST_FROM_FILE"))

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "quoted value", os.Getenv("PP_TEST_FROM_FILE"))
	assert.Equal(t, "env", os.Getenv("PP_TEST_PRESET"))

	assert.NoError(t, loadEnvFile(filepath.Join(dir, "missing.env")))
}
