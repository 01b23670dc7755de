package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"parley/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigCheckCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool
	var prompt bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				abs, err := filepath.Abs(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = abs
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			content := config.SampleConfig()
			if prompt {
				secrets, err := promptForSecrets(cmd)
				if err != nil {
					return err
				}
				content = applySecrets(content, secrets)
			}

			if err := os.WriteFile(target, []byte(content), 0o600); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			if !prompt {
				fmt.Fprintln(out, "Edit the file to set your Firecrawl, LLM, and Tavus API keys before running Parley.")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	cmd.Flags().BoolVar(&prompt, "prompt", false, "Prompt for API keys instead of leaving them blank")
	return cmd
}

// promptForSecrets reads the three service API keys without echo. Empty
// answers leave the corresponding key blank in the written file.
func promptForSecrets(cmd *cobra.Command) (map[string]string, error) {
	stdin, ok := cmd.InOrStdin().(*os.File)
	if !ok || !term.IsTerminal(int(stdin.Fd())) {
		return nil, fmt.Errorf("--prompt requires an interactive terminal")
	}

	out := cmd.OutOrStdout()
	secrets := make(map[string]string, 3)
	for _, entry := range []struct {
		section string
		label   string
	}{
		{"firecrawl", "Firecrawl API key"},
		{"llm", "LLM API key"},
		{"tavus", "Tavus API key"},
	} {
		fmt.Fprintf(out, "%s (leave blank to skip): ", entry.label)
		value, err := term.ReadPassword(int(stdin.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.label, err)
		}
		secrets[entry.section] = strings.TrimSpace(string(value))
	}
	return secrets, nil
}

// applySecrets fills the api_key line of each named section in the sample
// config. Section headers scope the replacement since every service uses the
// same key name.
func applySecrets(content string, secrets map[string]string) string {
	lines := strings.Split(content, "\n")
	section := ""
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			section = strings.Trim(trimmed, "[]")
			continue
		}
		if !strings.HasPrefix(trimmed, "api_key") {
			continue
		}
		if value := secrets[section]; value != "" {
			lines[i] = fmt.Sprintf("api_key = %q", value)
		}
	}
	return strings.Join(lines, "\n")
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, redactedSettings(cfg))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			rows := make([][]string, 0, 16)
			for _, setting := range settingRows(cfg) {
				rows = append(rows, setting)
			}
			fmt.Fprint(out, renderTable(
				[]string{"Setting", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of tables")
	return cmd
}

func newConfigCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and report credential readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)

			ready := true
			credentials := cfg.CheckCredentials()
			for _, name := range []string{"firecrawl", "llm", "tavus"} {
				if credentials[name] {
					fmt.Fprintln(out, renderStatusLine(name, statusOK, "credential configured", colorize))
				} else {
					ready = false
					fmt.Fprintln(out, renderStatusLine(name, statusWarn, "credential missing", colorize))
				}
			}

			if cfg.Tavus.ReplicaID == "" {
				fmt.Fprintln(out, renderStatusLine("replica", statusWarn, "tavus.replica_id not set; sessions need a persona default", colorize))
			}

			fmt.Fprintln(out, "Configuration valid")
			if !ready {
				fmt.Fprintln(out, "Set the missing keys before scraping; read-only commands work without them.")
			}
			return nil
		},
	}
}

func settingRows(cfg *config.Config) [][]string {
	return [][]string{
		{"paths.data_dir", cfg.Paths.DataDir},
		{"paths.log_dir", cfg.Paths.LogDir},
		{"paths.api_bind", cfg.Paths.APIBind},
		{"paths.api_token", redact(cfg.Paths.APIToken)},
		{"firecrawl.api_key", redact(cfg.Firecrawl.APIKey)},
		{"firecrawl.base_url", cfg.Firecrawl.BaseURL},
		{"llm.api_key", redact(cfg.LLM.APIKey)},
		{"llm.base_url", cfg.LLM.BaseURL},
		{"llm.model", cfg.LLM.Model},
		{"tavus.api_key", redact(cfg.Tavus.APIKey)},
		{"tavus.replica_id", cfg.Tavus.ReplicaID},
		{"tavus.enable_vision", yesNo(cfg.Tavus.EnableVision)},
		{"scrape.max_pages", fmt.Sprintf("%d", cfg.Scrape.MaxPages)},
		{"scrape.page_concurrency", fmt.Sprintf("%d", cfg.Scrape.PageConcurrency)},
		{"scrape.summary_char_limit", fmt.Sprintf("%d", cfg.Scrape.SummaryCharLimit)},
		{"session.max_context_chars", fmt.Sprintf("%d", cfg.Session.MaxContextChars)},
		{"notifications.ntfy_topic", cfg.Notifications.NtfyTopic},
		{"logging.format", cfg.Logging.Format},
		{"logging.level", cfg.Logging.Level},
	}
}

func redactedSettings(cfg *config.Config) map[string]string {
	settings := make(map[string]string)
	for _, row := range settingRows(cfg) {
		settings[row[0]] = row[1]
	}
	return settings
}

func redact(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return "(set)"
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
