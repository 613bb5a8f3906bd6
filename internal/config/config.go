// Package config loads daemon configuration from .env and environment variables.
package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Manjussha/inkd/internal/platform"
)

// Config holds all runtime configuration for inkd.
// It is built once at startup and injected into every component.
type Config struct {
	Port       string
	WorkDir    string
	DBPath     string
	LedgerKind  string // "sqlite", "postgres" or "memory"
	DatabaseURL string // Postgres DSN when LedgerKind is "postgres"
	CORSOrigin  string

	RateLimitRPS   float64 // per client address; 0 disables
	RateLimitBurst int
	MetricsEnabled bool

	TonePresetsFile string // optional YAML overriding the built-in presets

	AdminUsername string
	AdminPassword string

	OpenAIKey       string
	OpenAIBaseURL   string
	OpenAIModel     string
	ProviderTimeout time.Duration
	RefundOnFailure bool

	PayPalMode          string // "sandbox" or "live"
	PayPalClientID      string
	PayPalClientSecret  string
	PayPalMerchantEmail string
	PayPalReturnURL     string
	PayPalCancelURL     string
	PayPalCurrency      string
	FrontendURL         string

	LowCreditThreshold int64

	TelegramToken  string
	TelegramChatID int64

	SessionExpiryHours     int
	BruteForceMaxAttempts  int
	BruteForceBlockMinutes int
}

// Load reads .env (if present) and environment variables and returns a Config.
// Uses sensible defaults for optional fields.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env: %v", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() *Config {
	workDir := getEnv("WORK_DIR", platform.DefaultWorkDir())
	chatID, _ := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64)
	frontend := strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/")

	return &Config{
		Port:       getEnv("PORT", "5000"),
		WorkDir:    workDir,
		DBPath:     getEnv("DB_PATH", filepath.Join(workDir, "inkd.db")),
		LedgerKind:  getEnv("INKD_LEDGER", "sqlite"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		CORSOrigin:  getEnv("CORS_ORIGIN", "*"),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 2),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),

		TonePresetsFile: os.Getenv("TONE_PRESETS_FILE"),

		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "changeme"),

		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4"),
		ProviderTimeout: getEnvDuration("PROVIDER_TIMEOUT", 90*time.Second),
		RefundOnFailure: getEnvBool("INKD_REFUND_ON_FAILURE", false),

		PayPalMode:          getEnv("PAYPAL_MODE", "sandbox"),
		PayPalClientID:      os.Getenv("PAYPAL_CLIENT_ID"),
		PayPalClientSecret:  os.Getenv("PAYPAL_CLIENT_SECRET"),
		PayPalMerchantEmail: getEnv("PAYPAL_MERCHANT_EMAIL", "your-business@example.com"),
		PayPalReturnURL:     getEnv("PAYPAL_RETURN_URL", frontend+"/success"),
		PayPalCancelURL:     getEnv("PAYPAL_CANCEL_URL", frontend+"/cancel"),
		PayPalCurrency:      getEnv("PAYPAL_CURRENCY", "USD"),
		FrontendURL:         frontend,

		LowCreditThreshold: int64(getEnvInt("LOW_CREDIT_THRESHOLD", 500)),

		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID: chatID,

		SessionExpiryHours:     getEnvInt("SESSION_EXPIRY_HOURS", 24),
		BruteForceMaxAttempts:  getEnvInt("BRUTE_FORCE_MAX_ATTEMPTS", 5),
		BruteForceBlockMinutes: getEnvInt("BRUTE_FORCE_BLOCK_MINUTES", 15),
	}
}

// PayPalConfigured reports whether both PayPal credentials are present.
func (c *Config) PayPalConfigured() bool {
	return c.PayPalClientID != "" && c.PayPalClientSecret != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
