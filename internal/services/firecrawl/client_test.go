package firecrawl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"parley/internal/services"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title>Acme Robotics</title>
  <meta name="description" content="Industrial automation for small shops.">
</head>
<body>
  <nav>Home About Contact</nav>
  <script>window.analytics = true;</script>
  <main>
    <h1>Acme Robotics</h1>
    <p>We build affordable robotic arms for machine shops and assembly lines.</p>
    <p>Our flagship product handles payloads up to twenty kilograms.</p>
  </main>
  <footer>Copyright Acme</footer>
</body>
</html>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{APIKey: "fc-test", BaseURL: server.URL})
}

func TestMapSiteReturnsDedupedLinks(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/map" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer fc-test" {
			t.Fatalf("unexpected authorization header: %q", auth)
		}
		var req mapRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.URL != "https://acme.example" {
			t.Fatalf("unexpected url: %q", req.URL)
		}
		json.NewEncoder(w).Encode(mapResponse{
			Success: true,
			Links: []string{
				"https://acme.example",
				"https://acme.example/",
				"https://acme.example/products",
				"https://acme.example/about",
			},
		})
	})

	links, err := client.MapSite(context.Background(), "https://acme.example", 10)
	if err != nil {
		t.Fatalf("MapSite failed: %v", err)
	}
	want := []string{"https://acme.example", "https://acme.example/products", "https://acme.example/about"}
	if len(links) != len(want) {
		t.Fatalf("expected %d links, got %v", len(want), links)
	}
	for i, link := range want {
		if links[i] != link {
			t.Fatalf("link %d: expected %q, got %q", i, link, links[i])
		}
	}
}

func TestMapSiteHonorsLimit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(mapResponse{
			Success: true,
			Links:   []string{"https://a.example/1", "https://a.example/2", "https://a.example/3"},
		})
	})

	links, err := client.MapSite(context.Background(), "https://a.example", 2)
	if err != nil {
		t.Fatalf("MapSite failed: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}
}

func TestMapSiteUpstreamFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("bad gateway"))
	})

	_, err := client.MapSite(context.Background(), "https://acme.example", 10)
	if !errors.Is(err, services.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestMapSiteRejectedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(mapResponse{Success: false, Error: "invalid target"})
	})

	_, err := client.MapSite(context.Background(), "https://acme.example", 10)
	if !errors.Is(err, services.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid target") {
		t.Fatalf("error should carry upstream message: %v", err)
	}
}

func TestScrapePageExtractsContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/scrape" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var resp scrapeResponse
		resp.Success = true
		resp.Data.HTML = samplePage
		resp.Data.Metadata.Title = "Acme Robotics"
		resp.Data.Metadata.SourceURL = "https://acme.example/"
		json.NewEncoder(w).Encode(resp)
	})

	record, err := client.ScrapePage(context.Background(), "https://acme.example")
	if err != nil {
		t.Fatalf("ScrapePage failed: %v", err)
	}
	if record.Title != "Acme Robotics" {
		t.Fatalf("unexpected title: %q", record.Title)
	}
	if record.URL != "https://acme.example/" {
		t.Fatalf("expected canonical source url, got %q", record.URL)
	}
	if !strings.Contains(record.ExtractedText, "robotic arms") {
		t.Fatalf("extracted text missing body copy: %q", record.ExtractedText)
	}
	if strings.Contains(record.ExtractedText, "window.analytics") {
		t.Fatalf("script content leaked into extraction: %q", record.ExtractedText)
	}
	if strings.Contains(record.ExtractedText, "Copyright Acme") {
		t.Fatalf("footer chrome leaked into extraction: %q", record.ExtractedText)
	}
	if record.Language != "eng" {
		t.Fatalf("expected eng language, got %q", record.Language)
	}
}

func TestScrapePageFallsBackToMarkdown(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var resp scrapeResponse
		resp.Success = true
		resp.Data.Markdown = "# Acme\n\nWe build robotic arms."
		json.NewEncoder(w).Encode(resp)
	})

	record, err := client.ScrapePage(context.Background(), "https://acme.example")
	if err != nil {
		t.Fatalf("ScrapePage failed: %v", err)
	}
	if !strings.Contains(record.ExtractedText, "robotic arms") {
		t.Fatalf("markdown fallback missing: %q", record.ExtractedText)
	}
}

func TestScrapePageNoUsableContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var resp scrapeResponse
		resp.Success = true
		resp.Data.HTML = "<html><body><script>init()</script></body></html>"
		json.NewEncoder(w).Encode(resp)
	})

	_, err := client.ScrapePage(context.Background(), "https://acme.example")
	if !errors.Is(err, services.ErrNoUsableContent) {
		t.Fatalf("expected ErrNoUsableContent, got %v", err)
	}
}

func TestClientRequiresInput(t *testing.T) {
	client := NewClient(Config{APIKey: "fc-test"})
	if _, err := client.MapSite(context.Background(), "  ", 5); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank url, got %v", err)
	}

	noKey := NewClient(Config{})
	if _, err := noKey.ScrapePage(context.Background(), "https://acme.example"); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing key, got %v", err)
	}
}

func TestExtractTextTitleAndDescription(t *testing.T) {
	extraction, err := ExtractText(samplePage)
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}
	if extraction.Title != "Acme Robotics" {
		t.Fatalf("unexpected title: %q", extraction.Title)
	}
	if extraction.Description != "Industrial automation for small shops." {
		t.Fatalf("unexpected description: %q", extraction.Description)
	}
}

func TestDetectLanguageEmpty(t *testing.T) {
	if lang := DetectLanguage("   "); lang != "" {
		t.Fatalf("expected empty language, got %q", lang)
	}
}
