package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"CULLDRON_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"CULLDRON_DB_MAX_CONNS" default:"8"`

	EmbeddingEndpoint       string        `envconfig:"EMBEDDING_ENDPOINT" default:"http://127.0.0.1:8844/embed"`
	EmbeddingMaxLength      int           `envconfig:"EMBEDDING_MAX_LENGTH" default:"256"`
	EmbeddingRequestTimeout time.Duration `envconfig:"EMBEDDING_REQUEST_TIMEOUT" default:"45s"`

	ThemeMatchThreshold float64 `envconfig:"THEME_MATCH_THRESHOLD" default:"0.8"`
	ThesisTopN          int     `envconfig:"THESIS_TOP_N" default:"2"`

	FeedFetchTimeout time.Duration `envconfig:"FEED_FETCH_TIMEOUT" default:"20s"`
	FeedUserAgent    string        `envconfig:"FEED_USER_AGENT" default:""`
	FeedsFile        string        `envconfig:"FEEDS_FILE" default:"feeds.yaml"`

	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
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
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("CULLDRON_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("CULLDRON_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("CULLDRON_DB_MIN_CONNS (%d) cannot exceed CULLDRON_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if strings.TrimSpace(c.EmbeddingEndpoint) == "" {
		return fmt.Errorf("EMBEDDING_ENDPOINT is required")
	}
	if c.EmbeddingMaxLength < 1 {
		return fmt.Errorf("EMBEDDING_MAX_LENGTH must be >= 1")
	}
	if c.EmbeddingRequestTimeout <= 0 {
		return fmt.Errorf("EMBEDDING_REQUEST_TIMEOUT must be > 0")
	}
	if c.ThemeMatchThreshold < 0 || c.ThemeMatchThreshold > 1 {
		return fmt.Errorf("THEME_MATCH_THRESHOLD must be within [0,1], got %v", c.ThemeMatchThreshold)
	}
	if c.ThesisTopN < 1 {
		return fmt.Errorf("THESIS_TOP_N must be >= 1")
	}
	if c.FeedFetchTimeout <= 0 {
		return fmt.Errorf("FEED_FETCH_TIMEOUT must be > 0")
	}
	return nil
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
