package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Environment names accepted by per-request repository selection.
const (
	RepositoryEnvProduction = "production"
	RepositoryEnvStaging    = "staging"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	RepositoryProductionURL string        `envconfig:"REPOSITORY_PRODUCTION_URL" default:"https://redaktion.openeduhub.net/edu-sharing/rest"`
	RepositoryStagingURL    string        `envconfig:"REPOSITORY_STAGING_URL" default:"https://repository.staging.openeduhub.net/edu-sharing/rest"`
	RepositoryID            string        `envconfig:"REPOSITORY_ID" default:"-home-"`
	RepositoryTimeout       time.Duration `envconfig:"REPOSITORY_TIMEOUT" default:"60s"`
	RepositoryMaxRetries    int           `envconfig:"REPOSITORY_MAX_RETRIES" default:"3"`
	SearchPageSize          int           `envconfig:"SEARCH_PAGE_SIZE" default:"100"`
	SearchWorkers           int           `envconfig:"SEARCH_WORKERS" default:"10"`

	FingerprintThreshold float64 `envconfig:"FINGERPRINT_THRESHOLD" default:"0.9"`
	FingerprintHashes    int     `envconfig:"FINGERPRINT_HASHES" default:"100"`
	EmbeddingThreshold   float64 `envconfig:"EMBEDDING_THRESHOLD" default:"0.95"`

	EmbeddingEndpoint      string        `envconfig:"EMBEDDING_ENDPOINT" default:"http://127.0.0.1:8844/embed"`
	EmbeddingModel         string        `envconfig:"EMBEDDING_MODEL" default:"paraphrase-multilingual-MiniLM-L12-v2"`
	EmbeddingTimeout       time.Duration `envconfig:"EMBEDDING_TIMEOUT" default:"45s"`
	EmbeddingMaxTextChars  int           `envconfig:"EMBEDDING_MAX_TEXT_CHARS" default:"10000"`
	RedirectTimeout        time.Duration `envconfig:"REDIRECT_TIMEOUT" default:"10s"`
	DetectRatePerMinute    int           `envconfig:"DETECT_RATE_PER_MINUTE" default:"200"`
	DetectRateBurst        int           `envconfig:"DETECT_RATE_BURST" default:"20"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.RepositoryProductionURL) == "" {
		return fmt.Errorf("REPOSITORY_PRODUCTION_URL is required")
	}
	if strings.TrimSpace(c.RepositoryID) == "" {
		return fmt.Errorf("REPOSITORY_ID is required")
	}
	if c.RepositoryMaxRetries < 0 {
		return fmt.Errorf("REPOSITORY_MAX_RETRIES must be >= 0")
	}
	if c.SearchPageSize < 1 {
		return fmt.Errorf("SEARCH_PAGE_SIZE must be >= 1")
	}
	if c.SearchWorkers < 1 {
		return fmt.Errorf("SEARCH_WORKERS must be >= 1")
	}
	if c.FingerprintThreshold < 0 || c.FingerprintThreshold > 1 {
		return fmt.Errorf("FINGERPRINT_THRESHOLD must be between 0 and 1")
	}
	if c.EmbeddingThreshold < 0 || c.EmbeddingThreshold > 1 {
		return fmt.Errorf("EMBEDDING_THRESHOLD must be between 0 and 1")
	}
	if c.FingerprintHashes < 1 {
		return fmt.Errorf("FINGERPRINT_HASHES must be >= 1")
	}
	if c.DetectRatePerMinute < 1 {
		return fmt.Errorf("DETECT_RATE_PER_MINUTE must be >= 1")
	}
	return nil
}

// RepositoryURL maps a per-request environment name to its base URL.
// Unknown or blank names fall back to production.
func (c *Config) RepositoryURL(environment string) string {
	if strings.EqualFold(strings.TrimSpace(environment), RepositoryEnvStaging) {
		return c.RepositoryStagingURL
	}
	return c.RepositoryProductionURL
}
