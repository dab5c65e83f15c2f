package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// ClientConfig configures the churchctl terminal client.
type ClientConfig struct {
	ServerURL    string        `env:"CHURCHCTL_SERVER" envDefault:"http://localhost:8000"`
	Email        string        `env:"CHURCHCTL_EMAIL"`
	Password     string        `env:"CHURCHCTL_PASSWORD"`
	Timeout      time.Duration `env:"CHURCHCTL_TIMEOUT" envDefault:"10s"`
	ScrollDelay  time.Duration `env:"CHURCHCTL_SCROLL_DELAY" envDefault:"100ms"`
	TypingWindow time.Duration `env:"CHURCHCTL_TYPING_WINDOW" envDefault:"2s"`
	LogLevel     string        `env:"CHURCHCTL_LOG_LEVEL" envDefault:"warn"`
}

func LoadClient(envFile string) (*ClientConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := &ClientConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *ClientConfig) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server url must be http or https, got %q", c.ServerURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}
