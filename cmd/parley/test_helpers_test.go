package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"parley/internal/config"
	"parley/internal/daemon"
	"parley/internal/logging"
	"parley/internal/orchestrator"
	"parley/internal/services/firecrawl"
	"parley/internal/services/tavus"
	"parley/internal/session"
	"parley/internal/testsupport"
)

type fakeSource struct{}

func (fakeSource) MapSite(ctx context.Context, siteURL string, limit int) ([]string, error) {
	return []string{siteURL, siteURL + "/about"}, nil
}

func (fakeSource) ScrapePage(ctx context.Context, pageURL string) (firecrawl.PageRecord, error) {
	return firecrawl.PageRecord{
		URL:           pageURL,
		Title:         "Page",
		ExtractedText: "Content of " + pageURL,
		Language:      "eng",
	}, nil
}

type fakeSummarizer struct{}

func (fakeSummarizer) Summarize(ctx context.Context, text string, charLimit int) (string, error) {
	return "Summary: " + text, nil
}

type fakeAvatar struct {
	ended []string
}

func (f *fakeAvatar) CreatePersona(ctx context.Context, params tavus.PersonaParams) (string, error) {
	return "p-1", nil
}

func (f *fakeAvatar) CreateConversation(ctx context.Context, params tavus.ConversationParams) (tavus.Conversation, error) {
	return tavus.Conversation{ConversationID: "c-1", ConversationURL: "https://tavus.daily.co/c-1"}, nil
}

func (f *fakeAvatar) EndConversation(ctx context.Context, conversationID string) error {
	f.ended = append(f.ended, conversationID)
	return nil
}

func (f *fakeAvatar) ListPersonas(ctx context.Context) ([]tavus.Persona, error) {
	return []tavus.Persona{{PersonaID: "p-1", PersonaName: "Guide"}}, nil
}

func (f *fakeAvatar) ListReplicas(ctx context.Context) ([]tavus.Replica, error) {
	return []tavus.Replica{{ReplicaID: "r-1", ReplicaName: "Anna", Status: "ready"}}, nil
}

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	avatar     *fakeAvatar
	configPath string
}

// setupCLITestEnv starts a daemon on an ephemeral port backed by fake
// upstream services and writes a config file pointing the CLI at it.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	avatar := &fakeAvatar{}
	orch := orchestrator.New(cfg, st, fakeSource{}, fakeSummarizer{}, nil, logging.NewNop())
	asm := session.New(cfg, st, avatar, logging.NewNop())

	d, err := daemon.New(daemon.Options{
		Config:    cfg,
		Logger:    logging.NewNop(),
		Store:     st,
		Orch:      orch,
		Assembler: asm,
		Avatar:    avatar,
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	writeTestConfig(t, configPath, cfg, d.APIAddr())

	return &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		avatar:     avatar,
		configPath: configPath,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config, apiBind string) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
api_bind = %q

[firecrawl]
api_key = "fc-test"

[llm]
api_key = "sk-test"

[tavus]
api_key = "tv-test"
replica_id = "r-test"
`, cfg.Paths.DataDir, cfg.Paths.LogDir, apiBind)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}
