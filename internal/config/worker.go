// Package config provides the worker process's startup configuration.
package config

import (
	"errors"
	"time"

	"github.com/jonesrussell/crawld/internal/config/elasticsearch"
	"github.com/jonesrussell/crawld/internal/config/minio"
	infraconfig "github.com/jonesrussell/crawld/internal/infra/config"
	"github.com/jonesrussell/crawld/internal/infra/logger"
	rediscfg "github.com/jonesrussell/crawld/internal/infra/redis"
)

// Defaults mirror the worker startup configuration enumerated in the
// component design for the frontier, politeness controller and worker loop.
const (
	DefaultMaxPages              = 0 // unlimited
	DefaultBatchSize             = 50
	DefaultBatchAge              = 5 * time.Second
	DefaultFetchTimeout          = 10 * time.Second
	DefaultCrawlDelay            = 1 * time.Second
	DefaultClaimTTL              = 600 * time.Second
	DefaultLeaseTTL              = 30 * time.Second
	DefaultFilterCapacity        = 10_000_000
	DefaultFilterErrorRate       = 0.001
	DefaultMaxRetries            = 3
	DefaultUserAgent             = "crawld/1.0 (+https://github.com/jonesrussell/crawld)"
	DefaultIdleBackoff           = 1 * time.Second
	DefaultMaxIdlePolls          = 30
	DefaultHostClaimBudget       = 5
	DefaultGracePeriod           = 10 * time.Second
	DefaultMaxContentBytes int64 = 10 * 1024 * 1024
	DefaultSweepInterval         = 15 * time.Second
	DefaultRobotsCacheTTL        = time.Hour
)

// WorkerConfig is the complete configuration surface for a crawld worker
// process: the enumerated worker startup fields plus the ambient stack's
// connection settings (Redis, Elasticsearch, MinIO, logging).
type WorkerConfig struct {
	WorkerID string `yaml:"worker_id" env:"WORKER_ID"`
	MaxPages int    `yaml:"max_pages" env:"MAX_PAGES"`

	BatchSize         int           `yaml:"batch_size"            env:"BATCH_SIZE"`
	BatchAge          time.Duration `yaml:"batch_age_seconds"     env:"BATCH_AGE_SECONDS"`
	FetchTimeout      time.Duration `yaml:"fetch_timeout_seconds" env:"FETCH_TIMEOUT_SECONDS"`
	DefaultCrawlDelay time.Duration `yaml:"default_crawl_delay_seconds" env:"DEFAULT_CRAWL_DELAY_SECONDS"`
	ClaimTTL          time.Duration `yaml:"claim_ttl_seconds"     env:"CLAIM_TTL_SECONDS"`
	LeaseTTL          time.Duration `yaml:"lease_ttl_seconds"     env:"LEASE_TTL_SECONDS"`
	FilterCapacity    uint64        `yaml:"filter_capacity"       env:"FILTER_CAPACITY"`
	FilterErrorRate   float64       `yaml:"filter_error_rate"     env:"FILTER_ERROR_RATE"`
	MaxRetries        int           `yaml:"max_retries"           env:"MAX_RETRIES"`
	UserAgent         string        `yaml:"user_agent"            env:"USER_AGENT"`

	IdleBackoff     time.Duration `yaml:"idle_backoff"      env:"IDLE_BACKOFF"`
	MaxIdlePolls    int           `yaml:"max_idle_polls"    env:"MAX_IDLE_POLLS"`
	HostClaimBudget int           `yaml:"host_claim_budget" env:"HOST_CLAIM_BUDGET"`
	GracePeriod     time.Duration `yaml:"grace_period"      env:"GRACE_PERIOD"`
	MaxContentBytes int64         `yaml:"max_content_bytes" env:"MAX_CONTENT_BYTES"`
	SweepInterval   time.Duration `yaml:"sweep_interval"    env:"SWEEP_INTERVAL"`
	RobotsCacheTTL  time.Duration `yaml:"robots_cache_ttl"  env:"ROBOTS_CACHE_TTL"`

	Redis         rediscfg.Config      `yaml:"redis"`
	Elasticsearch elasticsearch.Config `yaml:"elasticsearch"`
	Minio         minio.Config         `yaml:"minio"`
	Logger        logger.Config        `yaml:"logger"`
}

// ErrWorkerIDRequired is returned by Validate when no worker id could be
// determined at all (should not happen once WithDefaults has run).
var ErrWorkerIDRequired = errors.New("worker_id is required")

// WithDefaults fills in every zero-valued field with its documented default.
func (c *WorkerConfig) WithDefaults() *WorkerConfig {
	if c.WorkerID == "" {
		c.WorkerID = generateWorkerID()
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchAge == 0 {
		c.BatchAge = DefaultBatchAge
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.DefaultCrawlDelay == 0 {
		c.DefaultCrawlDelay = DefaultCrawlDelay
	}
	if c.ClaimTTL == 0 {
		c.ClaimTTL = DefaultClaimTTL
	}
	if c.LeaseTTL == 0 {
		c.LeaseTTL = DefaultLeaseTTL
	}
	if c.FilterCapacity == 0 {
		c.FilterCapacity = DefaultFilterCapacity
	}
	if c.FilterErrorRate == 0 {
		c.FilterErrorRate = DefaultFilterErrorRate
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.IdleBackoff == 0 {
		c.IdleBackoff = DefaultIdleBackoff
	}
	if c.MaxIdlePolls == 0 {
		c.MaxIdlePolls = DefaultMaxIdlePolls
	}
	if c.HostClaimBudget == 0 {
		c.HostClaimBudget = DefaultHostClaimBudget
	}
	if c.GracePeriod == 0 {
		c.GracePeriod = DefaultGracePeriod
	}
	if c.MaxContentBytes == 0 {
		c.MaxContentBytes = DefaultMaxContentBytes
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.RobotsCacheTTL == 0 {
		c.RobotsCacheTTL = DefaultRobotsCacheTTL
	}
	if len(c.Elasticsearch.Addresses) == 0 {
		c.Elasticsearch = *elasticsearch.NewConfig()
	}
	if c.Minio.Bucket == "" {
		c.Minio = *minio.NewConfig()
	}
	c.Logger.SetDefaults()
	return c
}

// Validate checks that the resolved configuration is internally consistent.
func (c *WorkerConfig) Validate() error {
	if c.WorkerID == "" {
		return ErrWorkerIDRequired
	}
	if err := c.Minio.Validate(); err != nil {
		return err
	}
	return nil
}

// Load reads worker configuration from the YAML file at path, applies
// environment variable overrides on top of it (see internal/infra/config for
// precedence rules), then applies defaults to any field left unset. With an
// empty path no file is read and environment variables are not applied
// either: every field takes its default.
func Load(path string) (*WorkerConfig, error) {
	var cfg *WorkerConfig
	if path != "" {
		loaded, err := infraconfig.Load[WorkerConfig](path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = &WorkerConfig{}
	}
	return cfg.WithDefaults(), nil
}
