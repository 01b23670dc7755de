package main

import (
	"strings"
	"testing"
)

func TestCLIScrapeJobsAndSession(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "scrape", "https://acme.example", "--wait", "--poll-interval", "20ms")
	if err != nil {
		t.Fatalf("scrape --wait: %v", err)
	}
	requireContains(t, out, "acme.example")
	requireContains(t, out, "completed")
	requireContains(t, out, "2 pages")

	out, _, err = runCLI(t, env.configPath, "jobs", "list")
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, "acme.example")

	jobID := firstJobID(t, out)

	out, _, err = runCLI(t, env.configPath, "jobs", "show", jobID)
	if err != nil {
		t.Fatalf("jobs show: %v", err)
	}
	requireContains(t, out, "Source:  https://acme.example")
	requireContains(t, out, "Status:  completed")
	requireContains(t, out, "Context:")
	requireContains(t, out, "Summary: Content of https://acme.example")

	out, _, err = runCLI(t, env.configPath, "session", "create", jobID)
	if err != nil {
		t.Fatalf("session create: %v", err)
	}
	requireContains(t, out, "Session ready:")
	requireContains(t, out, "https://tavus.daily.co/c-1")
	requireContains(t, out, "p-1")

	out, _, err = runCLI(t, env.configPath, "conversation", "end", "c-1")
	if err != nil {
		t.Fatalf("conversation end: %v", err)
	}
	requireContains(t, out, "Ended conversation c-1")
	if len(env.avatar.ended) != 1 || env.avatar.ended[0] != "c-1" {
		t.Fatalf("expected conversation c-1 ended, got %v", env.avatar.ended)
	}

	out, _, err = runCLI(t, env.configPath, "jobs", "clear")
	if err != nil {
		t.Fatalf("jobs clear: %v", err)
	}
	requireContains(t, out, "Cleared 1 jobs")

	out, _, err = runCLI(t, env.configPath, "jobs", "list")
	if err != nil {
		t.Fatalf("jobs list after clear: %v", err)
	}
	requireContains(t, out, "No jobs found")
}

func TestCLIScrapeRejectsInvalidURLs(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env.configPath, "scrape", "not-a-url")
	if err == nil {
		t.Fatal("expected scrape with invalid URL to fail")
	}
	if !strings.Contains(err.Error(), "no valid urls") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCLIStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Parley status")
	requireContains(t, out, "daemon:")
	requireContains(t, out, "running at")
	requireContains(t, out, "credential configured")
	requireContains(t, out, "No jobs recorded")
}

func TestCLIPersonasAndReplicas(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "personas")
	if err != nil {
		t.Fatalf("personas: %v", err)
	}
	requireContains(t, out, "Guide")

	out, _, err = runCLI(t, env.configPath, "replicas")
	if err != nil {
		t.Fatalf("replicas: %v", err)
	}
	requireContains(t, out, "Anna")
	requireContains(t, out, "ready")
}

// firstJobID pulls the first UUID-shaped cell out of a jobs table.
func firstJobID(t *testing.T, tableOut string) string {
	t.Helper()
	for _, line := range strings.Split(tableOut, "\n") {
		fields := strings.Fields(strings.Trim(line, "│| "))
		if len(fields) == 0 {
			continue
		}
		candidate := fields[0]
		if strings.Count(candidate, "-") == 4 && len(candidate) == 36 {
			return candidate
		}
	}
	t.Fatalf("no job id found in output:\n%s", tableOut)
	return ""
}
