package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"parley/internal/config"
)

func TestConfigInitWritesSample(t *testing.T) {
	tmp := t.TempDir()
	target := filepath.Join(tmp, "config.toml")

	out, _, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	requireContains(t, string(data), "[firecrawl]")
	requireContains(t, string(data), "[tavus]")

	// refuses to clobber without --overwrite
	_, _, err = runCLI(t, "", "config", "init", "--path", target)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected overwrite refusal, got %v", err)
	}

	if _, _, err := runCLI(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigCheckAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "config", "check")
	if err != nil {
		t.Fatalf("config check: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "credential configured")

	out, _, err = runCLI(t, env.configPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "paths.api_bind")
	requireContains(t, out, "(set)")
	if strings.Contains(out, "fc-test") {
		t.Fatalf("config show leaked a credential:\n%s", out)
	}
}

func TestApplySecretsScopesBySection(t *testing.T) {
	content := applySecrets(config.SampleConfig(), map[string]string{
		"firecrawl": "fc-live",
		"tavus":     "tv-live",
	})

	section := ""
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") {
			section = strings.Trim(trimmed, "[]")
			continue
		}
		if !strings.HasPrefix(trimmed, "api_key") {
			continue
		}
		switch section {
		case "firecrawl":
			if trimmed != `api_key = "fc-live"` {
				t.Fatalf("firecrawl key not applied: %s", trimmed)
			}
		case "tavus":
			if trimmed != `api_key = "tv-live"` {
				t.Fatalf("tavus key not applied: %s", trimmed)
			}
		case "llm":
			if trimmed != `api_key = ""` {
				t.Fatalf("llm key should stay blank: %s", trimmed)
			}
		}
	}
}
