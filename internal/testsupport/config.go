// Package testsupport provides shared helpers for package tests: temp-dir
// configs and store lifecycle management.
package testsupport

import (
	"path/filepath"
	"testing"

	"parley/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Firecrawl.APIKey = "fc-test"
	cfg.LLM.APIKey = "sk-test"
	cfg.Tavus.APIKey = "tv-test"
	cfg.Tavus.ReplicaID = "r-test"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithMaxPages overrides the crawl page limit on the test config.
func WithMaxPages(n int) ConfigOption {
	return func(c *config.Config) {
		c.Scrape.MaxPages = n
	}
}

// WithContextCap overrides the combined-context budget on the test config.
func WithContextCap(n int) ConfigOption {
	return func(c *config.Config) {
		c.Session.MaxContextChars = n
	}
}
