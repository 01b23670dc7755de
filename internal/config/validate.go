package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCredentials(); err != nil {
		return err
	}
	if err := c.validateScrape(); err != nil {
		return err
	}
	if err := c.validateSession(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// CheckCredentials reports which service credentials are configured.
// Used by `parley config check` to show a readiness summary.
func (c *Config) CheckCredentials() map[string]bool {
	return map[string]bool{
		"firecrawl": strings.TrimSpace(c.Firecrawl.APIKey) != "",
		"llm":       strings.TrimSpace(c.LLM.APIKey) != "",
		"tavus":     strings.TrimSpace(c.Tavus.APIKey) != "",
	}
}

func (c *Config) validateCredentials() error {
	// Keys are checked lazily by the clients so read-only commands (jobs
	// list, config show) work without credentials. Only structural problems
	// fail validation.
	if strings.TrimSpace(c.Firecrawl.BaseURL) == "" {
		return errors.New("firecrawl.base_url must be set")
	}
	if strings.TrimSpace(c.LLM.BaseURL) == "" {
		return errors.New("llm.base_url must be set")
	}
	if strings.TrimSpace(c.Tavus.BaseURL) == "" {
		return errors.New("tavus.base_url must be set")
	}
	return nil
}

func (c *Config) validateScrape() error {
	if c.Scrape.MaxPages < 1 || c.Scrape.MaxPages > 500 {
		return fmt.Errorf("scrape.max_pages must be between 1 and 500, got %d", c.Scrape.MaxPages)
	}
	if c.Scrape.PageConcurrency < 1 || c.Scrape.PageConcurrency > 32 {
		return fmt.Errorf("scrape.page_concurrency must be between 1 and 32, got %d", c.Scrape.PageConcurrency)
	}
	if c.Scrape.SummaryCharLimit < 200 {
		return fmt.Errorf("scrape.summary_char_limit must be at least 200, got %d", c.Scrape.SummaryCharLimit)
	}
	return nil
}

func (c *Config) validateSession() error {
	if c.Session.MaxContextChars < 1000 {
		return fmt.Errorf("session.max_context_chars must be at least 1000, got %d", c.Session.MaxContextChars)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	return nil
}
