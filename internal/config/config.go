package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr string
	LogLevel   string

	BackendURL     string
	BackendTimeout time.Duration

	SessionSecret       []byte
	SessionIdleTTL      time.Duration
	SessionCookieSecure bool
	CSRFEnabled         bool
	AdminSecret         []byte

	OrderRefreshInterval time.Duration
	ReservationWindow    time.Duration

	DatabaseURL string

	KafkaBrokers []string
	KafkaTopic   string

	RedisAddr    string
	OTelEndpoint string

	ESURL              string
	ESUser             string
	ESPassword         string
	ESIndex            string
	SearchSyncInterval time.Duration
}

// Load reads .env when present and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	cfg := Config{
		ListenAddr: EnvDefault("STOREFRONT_ADDR", ":8080"),
		LogLevel:   EnvDefault("LOG_LEVEL", "info"),

		BackendURL:     os.Getenv("BACKEND_URL"),
		BackendTimeout: EnvDurationDefault("BACKEND_TIMEOUT", 10*time.Second),

		SessionSecret:       []byte(os.Getenv("SESSION_SECRET")),
		SessionIdleTTL:      EnvDurationDefault("SESSION_IDLE_TTL", 2*time.Hour),
		SessionCookieSecure: EnvBoolDefault("SESSION_COOKIE_SECURE", true),
		CSRFEnabled:         EnvBoolDefault("CSRF_ENABLED", false),
		AdminSecret:         []byte(os.Getenv("ADMIN_JWT_SECRET")),

		OrderRefreshInterval: EnvDurationDefault("ORDER_REFRESH_INTERVAL", 15*time.Second),
		ReservationWindow:    EnvDurationDefault("RESERVATION_WINDOW", 30*time.Minute),

		DatabaseURL: EnvDefault("DATABASE_URL", "storefront.db"),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   EnvDefault("KAFKA_TOPIC", "storefront_events"),

		RedisAddr:    os.Getenv("REDIS_ADDR"),
		OTelEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		ESURL:              os.Getenv("ES_URL"),
		ESUser:             os.Getenv("ES_USER"),
		ESPassword:         os.Getenv("ES_PASSWORD"),
		ESIndex:            EnvDefault("ES_INDEX", "products"),
		SearchSyncInterval: EnvDurationDefault("SEARCH_SYNC_INTERVAL", 5*time.Minute),
	}

	if err := MustNonEmpty(cfg.BackendURL, "BACKEND_URL"); err != nil {
		return cfg, err
	}
	if err := MustNonEmpty(string(cfg.SessionSecret), "SESSION_SECRET"); err != nil {
		return cfg, err
	}
	if cfg.OrderRefreshInterval <= 0 {
		return cfg, fmt.Errorf("ORDER_REFRESH_INTERVAL must be positive")
	}
	return cfg, nil
}

func MustNonEmpty(value, envName string) error {
	if value == "" {
		return fmt.Errorf("missing required env %s", envName)
	}
	return nil
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
