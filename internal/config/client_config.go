package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ClientConfig holds settings for workflow clients of the Repository Service
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// LoadClient reads client configuration from environment variables
func LoadClient() (*ClientConfig, error) {
	// Try to load .env file (optional)
	godotenv.Load()

	cfg := &ClientConfig{
		BaseURL: strings.TrimRight(os.Getenv("API_BASE_URL"), "/"),
		Timeout: 30 * time.Second,
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return nil, fmt.Errorf("invalid API_BASE_URL: %s", cfg.BaseURL)
	}

	if raw := os.Getenv("API_TIMEOUT"); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid API_TIMEOUT: %w", err)
		}
		cfg.Timeout = timeout
	}

	return cfg, nil
}
