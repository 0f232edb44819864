package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"gigbook/internal/config"
)

const defaultEnvFile = "config/local.env"

// loadConfig reads the optional env file, then the environment. Flag values
// that were set win over both.
func loadConfig(envFile, backendOverride string) (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if backendOverride != "" {
		cfg.Storage.Backend = backendOverride
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validate config: %w", err)
		}
	}
	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
