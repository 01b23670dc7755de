package daemon

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"parley/internal/api"
	"parley/internal/config"
	"parley/internal/logging"
	"parley/internal/orchestrator"
	"parley/internal/services/firecrawl"
	"parley/internal/services/tavus"
	"parley/internal/session"
	"parley/internal/store"
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

func startTestDaemon(t *testing.T, mutate func(*config.Config)) (*Daemon, *api.Client, *fakeAvatar) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if mutate != nil {
		mutate(cfg)
	}
	st := testsupport.MustOpenStore(t, cfg)

	avatar := &fakeAvatar{}
	orch := orchestrator.New(cfg, st, fakeSource{}, fakeSummarizer{}, nil, logging.NewNop())
	asm := session.New(cfg, st, avatar, logging.NewNop())

	d, err := New(Options{
		Config:    cfg,
		Logger:    logging.NewNop(),
		Store:     st,
		Orch:      orch,
		Assembler: asm,
		Avatar:    avatar,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(d.Stop)

	client := api.NewClient(d.server.Addr(), cfg.Paths.APIToken)
	return d, client, avatar
}

func waitForTerminal(t *testing.T, client *api.Client, jobIDs []string) []api.JobView {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		views, err := client.Jobs(context.Background())
		if err != nil {
			t.Fatalf("Jobs failed: %v", err)
		}
		done := len(views) > 0
		for _, view := range views {
			status := store.Status(view.Status)
			if !status.IsTerminal() {
				done = false
			}
		}
		if done {
			return views
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("jobs never reached a terminal state")
	return nil
}

func TestDaemonScrapeAndSessionFlow(t *testing.T) {
	_, client, avatar := startTestDaemon(t, nil)
	ctx := context.Background()

	submit, err := client.Submit(ctx, api.SubmitRequest{URLs: []string{"https://acme.example"}})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if len(submit.JobIDs) != 1 {
		t.Fatalf("expected one job id, got %#v", submit)
	}

	views := waitForTerminal(t, client, submit.JobIDs)
	if views[0].Status != string(store.StatusCompleted) {
		t.Fatalf("expected completed job, got %s (%s)", views[0].Status, views[0].ErrorMessage)
	}
	if len(views[0].Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(views[0].Pages))
	}

	job, err := client.Job(ctx, submit.JobIDs[0])
	if err != nil {
		t.Fatalf("Job failed: %v", err)
	}
	if job.FinalContext == "" {
		t.Fatal("job view missing final context")
	}

	sess, err := client.CreateSession(ctx, api.SessionRequest{JobIDs: submit.JobIDs})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if sess.ConversationID != "c-1" || sess.ConversationURL == "" {
		t.Fatalf("unexpected session: %#v", sess)
	}
	if sess.PersonaID != "p-1" || sess.PersonaError != "" {
		t.Fatalf("unexpected persona result: %#v", sess)
	}

	if err := client.EndConversation(ctx, sess.ConversationID); err != nil {
		t.Fatalf("EndConversation failed: %v", err)
	}
	if len(avatar.ended) != 1 || avatar.ended[0] != "c-1" {
		t.Fatalf("conversation not ended upstream: %#v", avatar.ended)
	}
}

func TestDaemonRejectsInvalidSubmissions(t *testing.T) {
	_, client, _ := startTestDaemon(t, nil)

	_, err := client.Submit(context.Background(), api.SubmitRequest{URLs: []string{"notaurl"}})
	var statusErr *api.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}

	_, err = client.Submit(context.Background(), api.SubmitRequest{URLs: []string{"https://acme.example"}, Mode: "bogus"})
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown mode, got %v", err)
	}
}

func TestDaemonStatusAndClear(t *testing.T) {
	_, client, _ := startTestDaemon(t, nil)
	ctx := context.Background()

	submit, err := client.Submit(ctx, api.SubmitRequest{URLs: []string{"https://acme.example"}})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitForTerminal(t, client, submit.JobIDs)

	status, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.Running {
		t.Fatal("status should report running")
	}
	if status.Jobs[string(store.StatusCompleted)] != 1 {
		t.Fatalf("unexpected job stats: %#v", status.Jobs)
	}

	removed, err := client.ClearJobs(ctx)
	if err != nil {
		t.Fatalf("ClearJobs failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
}

func TestDaemonListsPersonasAndReplicas(t *testing.T) {
	_, client, _ := startTestDaemon(t, nil)
	ctx := context.Background()

	personas, err := client.Personas(ctx)
	if err != nil {
		t.Fatalf("Personas failed: %v", err)
	}
	if len(personas) != 1 || personas[0].PersonaID != "p-1" {
		t.Fatalf("unexpected personas: %#v", personas)
	}

	replicas, err := client.Replicas(ctx)
	if err != nil {
		t.Fatalf("Replicas failed: %v", err)
	}
	if len(replicas) != 1 || replicas[0].Status != "ready" {
		t.Fatalf("unexpected replicas: %#v", replicas)
	}
}

func TestDaemonRequiresToken(t *testing.T) {
	d, _, _ := startTestDaemon(t, func(cfg *config.Config) {
		cfg.Paths.APIToken = "secret"
	})

	unauthed := api.NewClient(d.server.Addr(), "")
	_, err := unauthed.Status(context.Background())
	var statusErr *api.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}

	authed := api.NewClient(d.server.Addr(), "secret")
	if _, err := authed.Status(context.Background()); err != nil {
		t.Fatalf("authed request failed: %v", err)
	}
}

func TestDaemonSingleInstanceLock(t *testing.T) {
	d, _, _ := startTestDaemon(t, nil)

	cfg := d.cfg
	other, err := New(Options{
		Config:    cfg,
		Logger:    logging.NewNop(),
		Store:     d.store,
		Orch:      d.orch,
		Assembler: d.assembler,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := other.Start(context.Background()); err == nil {
		other.Stop()
		t.Fatal("second daemon should fail to acquire the lock")
	}
}

func TestDaemonServesMetrics(t *testing.T) {
	d, _, _ := startTestDaemon(t, nil)

	resp, err := http.Get("http://" + d.server.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected metrics status: %d", resp.StatusCode)
	}
}
