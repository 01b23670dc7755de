package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"parley/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrUpstream, "firecrawl", "scrape", "page fetch", base)
	if !errors.Is(err, services.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatal("expected wrapped cause to survive")
	}
	for _, want := range []string{"firecrawl", "scrape", "page fetch", "boom"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("message %q missing %q", err.Error(), want)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "tavus", "create persona", "", nil)
	if !errors.Is(err, services.ErrUpstream) {
		t.Fatalf("expected default ErrUpstream, got %v", err)
	}
}

func TestClassifyHTTP(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"deadline", fmt.Errorf("do: %w", context.DeadlineExceeded), services.ErrTimeout},
		{"generic", errors.New("connection refused"), services.ErrUpstream},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := services.ClassifyHTTP("llm", "summarize", tc.in)
			if tc.want == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if !errors.Is(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestConcurrencyLimitDistinctFromUpstream(t *testing.T) {
	err := services.Wrap(services.ErrConcurrencyLimit, "tavus", "create conversation", "", nil)
	if errors.Is(err, services.ErrUpstream) {
		t.Fatal("concurrency limit must not satisfy ErrUpstream")
	}
	if !errors.Is(err, services.ErrConcurrencyLimit) {
		t.Fatal("expected ErrConcurrencyLimit")
	}
}
