package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	App struct {
		Port        string
		Debug       bool
		FrontendURL string
	}
	DB struct {
		Host     string
		Port     string
		User     string
		Password string
		DBName   string
		SSLMode  string
	}
	Redis struct {
		Host     string
		Port     string
		Password string
		DB       int
	}
	Jira struct {
		BaseURL    string
		Email      string
		APIToken   string
		ProjectKey string
	}
	Export struct {
		APIKey string
	}
	Attachments struct {
		Dir string
	}
	Snapshot struct {
		Enabled  bool
		Interval time.Duration
		Dir      string
	}
	RateLimit struct {
		RequestsPerSecond int
		Burst             int
	}
}

func Load() *Config {
	cfg := &Config{}

	// App
	cfg.App.Port = getEnv("PORT", "8080")
	cfg.App.Debug = getEnvAsBool("DEBUG", false)
	cfg.App.FrontendURL = getEnv("FRONTEND_URL", "http://localhost:3000")

	// DB
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.DBName = getEnv("DB_NAME", "intake")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")

	// Redis
	cfg.Redis.Host = getEnv("REDIS_HOST", "localhost")
	cfg.Redis.Port = getEnv("REDIS_PORT", "6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", 0)

	// Jira (пустые значения = интеграция выключена)
	cfg.Jira.BaseURL = getEnv("JIRA_BASE_URL", "")
	cfg.Jira.Email = getEnv("JIRA_EMAIL", "")
	cfg.Jira.APIToken = getEnv("JIRA_API_TOKEN", "")
	cfg.Jira.ProjectKey = getEnv("JIRA_PROJECT_KEY", "")

	// Export
	cfg.Export.APIKey = getEnv("EXPORT_API_KEY", "")

	// Attachments
	cfg.Attachments.Dir = getEnv("ATTACHMENTS_DIR", "./data/attachments")

	// Snapshot worker
	cfg.Snapshot.Enabled = getEnvAsBool("SNAPSHOT_ENABLED", false)
	cfg.Snapshot.Interval = getEnvAsDuration("SNAPSHOT_INTERVAL", 24*time.Hour)
	cfg.Snapshot.Dir = getEnv("SNAPSHOT_DIR", "./data/snapshots")

	// Rate Limit
	cfg.RateLimit.RequestsPerSecond = getEnvAsInt("RATE_LIMIT_RPS", 10)
	cfg.RateLimit.Burst = getEnvAsInt("RATE_LIMIT_BURST", 20)

	return cfg
}

// JiraEnabled — интеграция активна только при полном наборе кредов.
func (c *Config) JiraEnabled() bool {
	return c.Jira.BaseURL != "" && c.Jira.Email != "" &&
		c.Jira.APIToken != "" && c.Jira.ProjectKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if dur, err := time.ParseDuration(value); err == nil {
			return dur
		}
	}
	return defaultValue
}
