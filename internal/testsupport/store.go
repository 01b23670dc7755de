package testsupport

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"parley/internal/config"
	"parley/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewJob creates and persists a queued job for tests.
func NewJob(t testing.TB, st *store.Store, sourceURL string) *store.Job {
	t.Helper()

	job := &store.Job{
		ID:        uuid.NewString(),
		SourceURL: sourceURL,
		Mode:      store.ModeCrawl,
		Status:    store.StatusQueued,
	}
	if err := st.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("store.CreateJob: %v", err)
	}
	return job
}
