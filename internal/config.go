package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	LogLevel    string
	Port        uint16
	DatabaseUrl string
	NatsUrl     string
	Stripe      StripeConfig
	Fel         FelConfig
	Sweep       SweepConfig
}

type StripeConfig struct {
	SecretKey string
}

// FelConfig holds the electronic invoicing certifier credentials.
type FelConfig struct {
	BaseURL   string
	APIKey    string
	IssuerNIT string
}

// SweepConfig overrides the background sweep intervals; zero values use
// the defaults.
type SweepConfig struct {
	ReservationInterval time.Duration
	CartInterval        time.Duration
}

func NewConfig() (*Config, error) {
	// Try to load .env from current directory, then walk up to find it (max 2 levels)
	if err := godotenv.Load(); err != nil {
		dir, _ := os.Getwd()
		for i := 0; i < 2; i++ {
			dir = filepath.Join(dir, "..")
			if err := godotenv.Load(filepath.Join(dir, ".env")); err == nil {
				break
			}
		}
	}

	cfg := &Config{
		Env:         getEnv("ENV", "dev"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseUrl: os.Getenv("DATABASE_URL"),
		NatsUrl:     getEnv("NATS_URL", ""),
		Stripe: StripeConfig{
			SecretKey: os.Getenv("STRIPE_SECRET_KEY"),
		},
		Fel: FelConfig{
			BaseURL:   os.Getenv("FEL_BASE_URL"),
			APIKey:    os.Getenv("FEL_API_KEY"),
			IssuerNIT: os.Getenv("FEL_ISSUER_NIT"),
		},
		Sweep: SweepConfig{
			ReservationInterval: getDuration("SWEEP_RESERVATION_INTERVAL"),
			CartInterval:        getDuration("SWEEP_CART_INTERVAL"),
		},
	}

	port, err := strconv.ParseUint(getEnv("PORT", "8080"), 10, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	cfg.Port = uint16(port)

	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}
