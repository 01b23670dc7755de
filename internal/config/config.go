package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Firecrawl contains configuration for the scraping service.
type Firecrawl struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// LLM contains configuration for the summarization service.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Tavus contains configuration for the conversational avatar service.
type Tavus struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	ReplicaID      string `toml:"replica_id"`
	EnableVision   bool   `toml:"enable_vision"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Scrape contains configuration for the scrape orchestrator.
type Scrape struct {
	MaxPages         int `toml:"max_pages"`
	PageConcurrency  int `toml:"page_concurrency"`
	SummaryCharLimit int `toml:"summary_char_limit"`
}

// Session contains configuration for persona and session assembly.
type Session struct {
	MaxContextChars int `toml:"max_context_chars"`
}

// Daemon contains configuration for background sweeps and polling.
type Daemon struct {
	StaleJobTimeoutSeconds int `toml:"stale_job_timeout_seconds"`
	SweepIntervalSeconds   int `toml:"sweep_interval_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	BatchEvents    bool   `toml:"batch_events"`
	SessionEvents  bool   `toml:"session_events"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// Config encapsulates all configuration values for Parley.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - Firecrawl: website mapping and scraping service
//   - LLM: summarization service (OpenAI-compatible chat completions)
//   - Tavus: conversational avatar service
//   - Scrape: orchestrator page limits and fan-out
//   - Session: combined-context budget
//   - Daemon: stale-job sweeps and intervals
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and rotation
type Config struct {
	Paths         Paths         `toml:"paths"`
	Firecrawl     Firecrawl     `toml:"firecrawl"`
	LLM           LLM           `toml:"llm"`
	Tavus         Tavus         `toml:"tavus"`
	Scrape        Scrape        `toml:"scrape"`
	Session       Session       `toml:"session"`
	Daemon        Daemon        `toml:"daemon"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/parley/config.toml")
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, normalizes, and validates a configuration file.
// It returns the config, the resolved path, and whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("parley.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}

	c.Firecrawl.APIKey = firstNonEmpty(c.Firecrawl.APIKey, os.Getenv("FIRECRAWL_API_KEY"))
	c.Firecrawl.BaseURL = firstNonEmpty(strings.TrimSpace(c.Firecrawl.BaseURL), defaultFirecrawlBaseURL)
	if c.Firecrawl.TimeoutSeconds <= 0 {
		c.Firecrawl.TimeoutSeconds = defaultClientTimeoutSeconds
	}

	c.LLM.APIKey = firstNonEmpty(c.LLM.APIKey, os.Getenv("OPENAI_API_KEY"))
	c.LLM.BaseURL = firstNonEmpty(strings.TrimSpace(c.LLM.BaseURL), defaultLLMBaseURL)
	c.LLM.Model = firstNonEmpty(strings.TrimSpace(c.LLM.Model), defaultLLMModel)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultClientTimeoutSeconds
	}

	c.Tavus.APIKey = firstNonEmpty(c.Tavus.APIKey, os.Getenv("TAVUS_API_KEY"))
	c.Tavus.BaseURL = firstNonEmpty(strings.TrimSpace(c.Tavus.BaseURL), defaultTavusBaseURL)
	c.Tavus.ReplicaID = firstNonEmpty(strings.TrimSpace(c.Tavus.ReplicaID), os.Getenv("TAVUS_REPLICA_ID"))
	if c.Tavus.TimeoutSeconds <= 0 {
		c.Tavus.TimeoutSeconds = defaultClientTimeoutSeconds
	}

	if c.Scrape.MaxPages <= 0 {
		c.Scrape.MaxPages = defaultScrapeMaxPages
	}
	if c.Scrape.PageConcurrency <= 0 {
		c.Scrape.PageConcurrency = defaultScrapePageConcurrency
	}
	if c.Scrape.SummaryCharLimit <= 0 {
		c.Scrape.SummaryCharLimit = defaultSummaryCharLimit
	}
	if c.Session.MaxContextChars <= 0 {
		c.Session.MaxContextChars = defaultSessionMaxContextChars
	}
	if c.Daemon.StaleJobTimeoutSeconds <= 0 {
		c.Daemon.StaleJobTimeoutSeconds = defaultStaleJobTimeoutSeconds
	}
	if c.Daemon.SweepIntervalSeconds <= 0 {
		c.Daemon.SweepIntervalSeconds = defaultSweepIntervalSeconds
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeoutSeconds
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups <= 0 {
		c.Logging.MaxBackups = defaultLogMaxBackups
	}
	return nil
}

// EnsureDirectories creates the directories required for operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return filepath.Abs(trimmed)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
