package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	SlackSigningSecret string
	DraftProvider      string
	DeepSeekAPIKey     string
	DeepSeekModel      string
	DeepSeekBaseURL    string
	AllowedOrigins     []string
	LockClosedStages   bool
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	StoreTimeout       time.Duration
	DraftRatePerMin    int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		SlackSigningSecret: os.Getenv("SLACK_SIGNING_SECRET"),
		DraftProvider:      getEnv("DRAFT_PROVIDER", "template"),
		DeepSeekAPIKey:     os.Getenv("DEEPSEEK_API_KEY"),
		DeepSeekModel:      getEnv("DEEPSEEK_MODEL", "deepseek-chat"),
		DeepSeekBaseURL:    getEnv("DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		LockClosedStages:   getEnvBool("PIPELINE_LOCK_CLOSED", false),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		StoreTimeout:       time.Second * time.Duration(getEnvInt("STORE_TIMEOUT_SECONDS", 10)),
		DraftRatePerMin:    getEnvInt("DRAFT_RATE_PER_MINUTE", 10),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.DraftProvider != "template" && cfg.DraftProvider != "deepseek" {
		return nil, fmt.Errorf("DRAFT_PROVIDER must be template or deepseek, got %q", cfg.DraftProvider)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
