package firecrawl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"parley/internal/services"
)

const defaultHTTPTimeout = 30 * time.Second

// Config captures the runtime settings required to talk to Firecrawl.
type Config struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
}

// HTTPDoer describes the HTTP client used by the Firecrawl service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// PageRecord is a scraped page as returned by ScrapePage: the raw markup plus
// the cleaned extraction derived from it.
type PageRecord struct {
	URL           string
	Title         string
	RawContent    string
	ExtractedText string
	Language      string
}

// Client wraps the Firecrawl map/scrape endpoints.
type Client struct {
	cfg    Config
	client HTTPDoer
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.client = doer
		}
	}
}

// NewClient constructs a Firecrawl client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		client: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://api.firecrawl.dev/v1"
	}
	if client.client == nil {
		client.client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

type mapRequest struct {
	URL   string `json:"url"`
	Limit int    `json:"limit,omitempty"`
}

type mapResponse struct {
	Success bool     `json:"success"`
	Links   []string `json:"links"`
	Error   string   `json:"error"`
}

// MapSite discovers up to limit page URLs under the given site. The root URL
// always leads the result when the API returns it.
func (c *Client) MapSite(ctx context.Context, siteURL string, limit int) ([]string, error) {
	siteURL = strings.TrimSpace(siteURL)
	if siteURL == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "firecrawl", "map site", "url required", nil)
	}
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "firecrawl", "map site", "api key required", nil)
	}

	var parsed mapResponse
	if err := c.postJSON(ctx, "/map", mapRequest{URL: siteURL, Limit: limit}, &parsed); err != nil {
		return nil, services.ClassifyHTTP("firecrawl", "map site", err)
	}
	if !parsed.Success {
		message := strings.TrimSpace(parsed.Error)
		if message == "" {
			message = "map request rejected"
		}
		return nil, services.Wrap(services.ErrUpstream, "firecrawl", "map site", message, nil)
	}

	links := dedupeLinks(parsed.Links, limit)
	if len(links) == 0 {
		return nil, services.Wrap(services.ErrUpstream, "firecrawl", "map site", "no links discovered", nil)
	}
	return links, nil
}

type scrapeRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		HTML     string `json:"html"`
		Markdown string `json:"markdown"`
		Metadata struct {
			Title     string `json:"title"`
			SourceURL string `json:"sourceURL"`
			Language  string `json:"language"`
		} `json:"metadata"`
	} `json:"data"`
}

// ScrapePage fetches a single page and returns it with extracted text and a
// detected language. Pages with no extractable text return ErrNoUsableContent.
func (c *Client) ScrapePage(ctx context.Context, pageURL string) (PageRecord, error) {
	var empty PageRecord
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return empty, services.Wrap(services.ErrInvalidInput, "firecrawl", "scrape page", "url required", nil)
	}
	if c.cfg.APIKey == "" {
		return empty, services.Wrap(services.ErrInvalidInput, "firecrawl", "scrape page", "api key required", nil)
	}

	var parsed scrapeResponse
	payload := scrapeRequest{URL: pageURL, Formats: []string{"html", "markdown"}}
	if err := c.postJSON(ctx, "/scrape", payload, &parsed); err != nil {
		return empty, services.ClassifyHTTP("firecrawl", "scrape page", err)
	}
	if !parsed.Success {
		message := strings.TrimSpace(parsed.Error)
		if message == "" {
			message = "scrape request rejected"
		}
		return empty, services.Wrap(services.ErrUpstream, "firecrawl", "scrape page", message, nil)
	}

	record := PageRecord{
		URL:        pageURL,
		Title:      strings.TrimSpace(parsed.Data.Metadata.Title),
		RawContent: parsed.Data.HTML,
	}
	if source := strings.TrimSpace(parsed.Data.Metadata.SourceURL); source != "" {
		record.URL = source
	}

	extraction, err := ExtractText(parsed.Data.HTML)
	if err == nil && extraction.Text != "" {
		record.ExtractedText = extraction.Text
		if record.Title == "" {
			record.Title = extraction.Title
		}
	} else if markdown := strings.TrimSpace(parsed.Data.Markdown); markdown != "" {
		record.ExtractedText = markdown
	}
	if strings.TrimSpace(record.ExtractedText) == "" {
		return empty, services.Wrap(services.ErrNoUsableContent, "firecrawl", "scrape page", pageURL, nil)
	}
	record.Language = DetectLanguage(record.ExtractedText)
	return record, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, target any) error {
	endpoint, err := url.JoinPath(c.cfg.BaseURL, path)
	if err != nil {
		return fmt.Errorf("build url: %w", err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func dedupeLinks(links []string, limit int) []string {
	seen := make(map[string]struct{}, len(links))
	var out []string
	for _, link := range links {
		link = strings.TrimSpace(link)
		if link == "" {
			continue
		}
		normalized := strings.TrimRight(link, "/")
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, link)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
