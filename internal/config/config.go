package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr          string        `env:"FELLOWSHIP_ADDR" envDefault:"localhost:8000"`
	DatabaseDSN         string        `env:"FELLOWSHIP_DSN" envDefault:"host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"`
	SigningSecret       string        `env:"FELLOWSHIP_SIGNING_KEY"`
	AllowedOrigins      []string      `env:"FELLOWSHIP_ALLOWED_ORIGINS" envSeparator:","`
	FirebaseCredentials string        `env:"FELLOWSHIP_FIREBASE_CREDENTIALS"`
	SessionTTL          time.Duration `env:"FELLOWSHIP_SESSION_TTL" envDefault:"24h"`
	LogLevel            string        `env:"FELLOWSHIP_LOG_LEVEL" envDefault:"info"`
	LogFormat           string        `env:"FELLOWSHIP_LOG_FORMAT" envDefault:"console"`
	AutoMigrate         bool          `env:"FELLOWSHIP_AUTO_MIGRATE" envDefault:"true"`

	SigningKey []byte `env:"-"`
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	if base64Secret == "" {
		return nil, fmt.Errorf("empty secret")
	}
	return base64.StdEncoding.DecodeString(base64Secret)
}

// Load reads an optional dotenv file, then the environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database DSN cannot be empty")
	}
	if c.SigningSecret == "" {
		return fmt.Errorf("signing secret cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	signingKey, err := decodeSigningSecret(c.SigningSecret)
	if err != nil {
		return fmt.Errorf("decode signing secret: %w", err)
	}
	c.SigningKey = signingKey

	return nil
}
