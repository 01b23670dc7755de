package config

const (
	defaultDataDir                = "~/.local/share/parley"
	defaultLogDir                 = "~/.local/share/parley/logs"
	defaultAPIBind                = "127.0.0.1:7311"
	defaultFirecrawlBaseURL       = "https://api.firecrawl.dev/v1"
	defaultLLMBaseURL             = "https://api.openai.com/v1"
	defaultLLMModel               = "gpt-4o-mini"
	defaultTavusBaseURL           = "https://tavusapi.com/v2"
	defaultClientTimeoutSeconds   = 30
	defaultScrapeMaxPages         = 10
	defaultScrapePageConcurrency  = 4
	defaultSummaryCharLimit       = 4000
	defaultSessionMaxContextChars = 24000
	defaultStaleJobTimeoutSeconds = 600
	defaultSweepIntervalSeconds   = 60
	defaultNotifyTimeoutSeconds   = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogMaxSizeMB           = 20
	defaultLogMaxBackups          = 5
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Firecrawl: Firecrawl{
			BaseURL:        defaultFirecrawlBaseURL,
			TimeoutSeconds: defaultClientTimeoutSeconds,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultClientTimeoutSeconds,
		},
		Tavus: Tavus{
			BaseURL:        defaultTavusBaseURL,
			TimeoutSeconds: defaultClientTimeoutSeconds,
		},
		Scrape: Scrape{
			MaxPages:         defaultScrapeMaxPages,
			PageConcurrency:  defaultScrapePageConcurrency,
			SummaryCharLimit: defaultSummaryCharLimit,
		},
		Session: Session{
			MaxContextChars: defaultSessionMaxContextChars,
		},
		Daemon: Daemon{
			StaleJobTimeoutSeconds: defaultStaleJobTimeoutSeconds,
			SweepIntervalSeconds:   defaultSweepIntervalSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeoutSeconds,
			BatchEvents:    true,
			SessionEvents:  true,
			Errors:         true,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
		},
	}
}
