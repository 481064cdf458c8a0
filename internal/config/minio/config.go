// Package minio provides MinIO configuration for the content-addressable page store.
package minio

import (
	"errors"
	"time"
)

// Config represents MinIO configuration for the pages_content collection.
type Config struct {
	// Enabled toggles content-store writes on/off
	Enabled bool `yaml:"enabled" env:"MINIO_ENABLED"`
	// Endpoint is the MinIO server address (e.g., "minio:9000")
	Endpoint string `yaml:"endpoint" env:"MINIO_ENDPOINT"`
	// AccessKey for MinIO authentication
	AccessKey string `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
	// SecretKey for MinIO authentication
	SecretKey string `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
	// UseSSL enables HTTPS for MinIO connections
	UseSSL bool `yaml:"use_ssl" env:"MINIO_USE_SSL"`
	// Bucket is the bucket holding compressed page bodies, keyed by content_hash
	Bucket string `yaml:"bucket" env:"MINIO_BUCKET"`
	// UploadTimeout is the timeout for upload operations
	UploadTimeout time.Duration `yaml:"upload_timeout" env:"MINIO_UPLOAD_TIMEOUT"`
	// MaxRetries is the maximum number of retry attempts for failed uploads
	MaxRetries int `yaml:"max_retries" env:"MINIO_MAX_RETRIES"`
	// FailSilently continues crawling even if the content store is unreachable
	FailSilently bool `yaml:"fail_silently" env:"MINIO_FAIL_SILENTLY"`
}

const (
	defaultUploadTimeout = 30 * time.Second
	defaultMaxRetries    = 3
)

// NewConfig returns a new MinIO configuration with default values.
func NewConfig() *Config {
	return &Config{
		Enabled:       false,
		Endpoint:      "localhost:9000",
		UseSSL:        false,
		Bucket:        "pages-content",
		UploadTimeout: defaultUploadTimeout,
		MaxRetries:    defaultMaxRetries,
		FailSilently:  true,
	}
}

// Validate validates the MinIO configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Endpoint == "" {
		return errors.New("minio endpoint required when enabled")
	}
	if c.AccessKey == "" {
		return errors.New("minio access_key required when enabled")
	}
	if c.SecretKey == "" {
		return errors.New("minio secret_key required when enabled")
	}
	if c.Bucket == "" {
		return errors.New("minio bucket required when enabled")
	}
	if c.UploadTimeout <= 0 {
		return errors.New("minio upload_timeout must be greater than 0")
	}
	if c.MaxRetries < 0 {
		return errors.New("minio max_retries must be non-negative")
	}

	return nil
}
