package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration
type Config struct {
	// Storage selects and configures the persistence backend
	Storage StorageConfig

	// Blob configures where image bytes are kept
	Blob BlobConfig

	// Images configures encoding and concurrent imports
	Images ImageConfig

	// Logging configuration
	Logging LoggingConfig
}

// StorageConfig holds persistence settings
type StorageConfig struct {
	Backend     string // sqlite, postgres, memory
	SQLitePath  string
	DatabaseURL string // Full PostgreSQL URL
}

// BlobConfig holds blob store settings
type BlobConfig struct {
	Driver string // fs, s3, memory
	FSRoot string
	S3     S3Config
}

// S3Config holds bucket settings for the s3 blob driver
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
}

// ImageConfig holds image pipeline settings
type ImageConfig struct {
	MaxDimension int
	Quality      int
	Concurrency  int
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}

	if err := cfg.loadStorage(); err != nil {
		return nil, fmt.Errorf("load storage config: %w", err)
	}

	cfg.loadBlob()

	if err := cfg.loadImages(); err != nil {
		return nil, fmt.Errorf("load image config: %w", err)
	}

	cfg.loadLogging()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadStorage() error {
	c.Storage.Backend = strings.ToLower(getEnvOrDefault("GIGBOOK_STORAGE", "sqlite"))
	c.Storage.SQLitePath = getEnvOrDefault("GIGBOOK_SQLITE_PATH", "gigbook.db")

	// Try to load DATABASE_URL first
	c.Storage.DatabaseURL = os.Getenv("DATABASE_URL")

	// If not present, construct from individual parameters
	if c.Storage.DatabaseURL == "" {
		host := getEnvOrDefault("DB_HOST", "localhost")
		user := os.Getenv("DB_USER")
		password := os.Getenv("DB_PASSWORD")
		name := os.Getenv("DB_NAME")
		sslMode := getEnvOrDefault("DB_SSLMODE", "disable")

		port, err := strconv.Atoi(getEnvOrDefault("DB_PORT", "5432"))
		if err != nil {
			return fmt.Errorf("invalid DB_PORT: %w", err)
		}

		if user != "" && name != "" {
			c.Storage.DatabaseURL = fmt.Sprintf(
				"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
				user, password, host, port, name, sslMode,
			)
		}
	}

	return nil
}

func (c *Config) loadBlob() {
	c.Blob.Driver = strings.ToLower(getEnvOrDefault("GIGBOOK_BLOB_DRIVER", "fs"))
	c.Blob.FSRoot = getEnvOrDefault("GIGBOOK_BLOB_FS_ROOT", "./blobdata")
	c.Blob.S3 = S3Config{
		Bucket:    os.Getenv("GIGBOOK_BLOB_S3_BUCKET"),
		Region:    getEnvOrDefault("GIGBOOK_BLOB_S3_REGION", "us-east-1"),
		Endpoint:  os.Getenv("GIGBOOK_BLOB_S3_ENDPOINT"),
		PathStyle: strings.EqualFold(os.Getenv("GIGBOOK_BLOB_S3_PATH_STYLE"), "true"),
	}
}

func (c *Config) loadImages() error {
	var err error
	if c.Images.MaxDimension, err = getEnvInt("GIGBOOK_IMAGE_MAX_DIMENSION", 2048); err != nil {
		return err
	}
	if c.Images.Quality, err = getEnvInt("GIGBOOK_IMAGE_QUALITY", 80); err != nil {
		return err
	}
	if c.Images.Concurrency, err = getEnvInt("GIGBOOK_IMPORT_CONCURRENCY", 4); err != nil {
		return err
	}
	return nil
}

func (c *Config) loadLogging() {
	c.Logging.Level = getEnvOrDefault("LOG_LEVEL", "info")
	c.Logging.Format = getEnvOrDefault("LOG_FORMAT", "text")
}

// Validate checks that all required configuration is present and valid
func (c *Config) Validate() error {
	var errors []string

	switch c.Storage.Backend {
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			errors = append(errors, "GIGBOOK_SQLITE_PATH is required for the sqlite backend")
		}
	case "postgres":
		if c.Storage.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required for the postgres backend (or DB_USER, DB_NAME)")
		}
	case "memory":
	default:
		errors = append(errors, "GIGBOOK_STORAGE must be one of: sqlite, postgres, memory")
	}

	switch c.Blob.Driver {
	case "fs", "memory":
	case "s3":
		if c.Blob.S3.Bucket == "" {
			errors = append(errors, "GIGBOOK_BLOB_S3_BUCKET is required for the s3 blob driver")
		}
	default:
		errors = append(errors, "GIGBOOK_BLOB_DRIVER must be one of: fs, s3, memory")
	}

	if c.Images.Quality < 1 || c.Images.Quality > 100 {
		errors = append(errors, "GIGBOOK_IMAGE_QUALITY must be between 1 and 100")
	}
	if c.Images.MaxDimension < 0 {
		errors = append(errors, "GIGBOOK_IMAGE_MAX_DIMENSION must not be negative")
	}
	if c.Images.Concurrency < 1 {
		errors = append(errors, "GIGBOOK_IMPORT_CONCURRENCY must be at least 1")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		errors = append(errors, "LOG_LEVEL must be one of: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		errors = append(errors, "LOG_FORMAT must be one of: json, text")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
