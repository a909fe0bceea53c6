package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the trading controller.
type Config struct {
	Port string

	// Market data
	Symbols     []string
	UseMockFeed bool

	// Execution
	DryRun         bool
	InitialCapital float64
	CommissionRate float64 // decimal (e.g. 0.0005 = 5 bps)

	// Broker sync
	EnableBrokerSync bool
	BrokerBaseURL    string
	BrokerToken      string
	SyncInterval     time.Duration

	// Signal source
	SignalInterval time.Duration

	// Persistence
	DBPath                     string
	CooldownStatePath          string
	DisableCooldownPersistence bool

	// Trading parameters (YAML)
	TradingConfigPath string

	// Auth
	JWTSecret string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:                       getEnv("PORT", "8080"),
		Symbols:                    splitAndTrim(getEnv("SYMBOLS", "SBER,GAZP,LKOH")),
		UseMockFeed:                getEnv("USE_MOCK_FEED", "true") == "true",
		DryRun:                     getEnv("DRY_RUN", "false") == "true",
		InitialCapital:             getEnvFloat("INITIAL_CAPITAL", 1_000_000),
		CommissionRate:             getEnvFloat("COMMISSION_RATE", 0.0005),
		EnableBrokerSync:           getEnv("ENABLE_BROKER_SYNC", "false") == "true",
		BrokerBaseURL:              os.Getenv("BROKER_BASE_URL"),
		BrokerToken:                os.Getenv("BROKER_TOKEN"),
		SyncInterval:               getEnvDuration("SYNC_INTERVAL", 5*time.Minute),
		SignalInterval:             getEnvDuration("SIGNAL_INTERVAL", time.Minute),
		DBPath:                     getEnv("DB_PATH", "./data/tradectl.db"),
		CooldownStatePath:          getEnv("COOLDOWN_STATE_PATH", "./data/cooldowns.json"),
		DisableCooldownPersistence: getEnv("DISABLE_COOLDOWN_PERSISTENCE", "false") == "true",
		TradingConfigPath:          getEnv("TRADING_CONFIG_PATH", "./trading.yaml"),
		JWTSecret:                  getEnv("JWT_SECRET", "dev-secret"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
