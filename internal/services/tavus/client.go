package tavus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"parley/internal/services"
)

const defaultHTTPTimeout = 30 * time.Second

// Config captures the runtime settings required to talk to Tavus.
type Config struct {
	APIKey         string
	BaseURL        string
	ReplicaID      string
	EnableVision   bool
	TimeoutSeconds int
}

// HTTPDoer describes the HTTP client used by the Tavus service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client wraps the Tavus persona and conversation endpoints.
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

// NewClient constructs a Tavus client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			ReplicaID:      strings.TrimSpace(cfg.ReplicaID),
			EnableVision:   cfg.EnableVision,
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		client: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://tavusapi.com/v2"
	}
	if client.client == nil {
		client.client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// PersonaParams describes a persona to create.
type PersonaParams struct {
	Name         string
	SystemPrompt string
	Context      string
	ReplicaID    string
	EnableVision bool
}

type personaRequest struct {
	PersonaName      string         `json:"persona_name"`
	SystemPrompt     string         `json:"system_prompt"`
	Context          string         `json:"context,omitempty"`
	DefaultReplicaID string         `json:"default_replica_id,omitempty"`
	Layers           *personaLayers `json:"layers,omitempty"`
}

type personaLayers struct {
	Perception *perceptionLayer `json:"perception,omitempty"`
}

type perceptionLayer struct {
	PerceptionModel string `json:"perception_model"`
}

type personaResponse struct {
	PersonaID string `json:"persona_id"`
}

// CreatePersona registers a persona carrying the combined knowledge context.
func (c *Client) CreatePersona(ctx context.Context, params PersonaParams) (string, error) {
	if strings.TrimSpace(params.Name) == "" {
		return "", services.Wrap(services.ErrInvalidInput, "tavus", "create persona", "name required", nil)
	}
	if strings.TrimSpace(params.SystemPrompt) == "" {
		return "", services.Wrap(services.ErrInvalidInput, "tavus", "create persona", "system prompt required", nil)
	}
	if c.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrInvalidInput, "tavus", "create persona", "api key required", nil)
	}

	replicaID := strings.TrimSpace(params.ReplicaID)
	if replicaID == "" {
		replicaID = c.cfg.ReplicaID
	}
	payload := personaRequest{
		PersonaName:      strings.TrimSpace(params.Name),
		SystemPrompt:     params.SystemPrompt,
		Context:          params.Context,
		DefaultReplicaID: replicaID,
	}
	if params.EnableVision || c.cfg.EnableVision {
		payload.Layers = &personaLayers{
			Perception: &perceptionLayer{PerceptionModel: "raven-0"},
		}
	}

	var parsed personaResponse
	if err := c.do(ctx, http.MethodPost, "/personas", payload, &parsed); err != nil {
		return "", c.classify("create persona", err)
	}
	if parsed.PersonaID == "" {
		return "", services.Wrap(services.ErrUpstream, "tavus", "create persona", "response missing persona_id", nil)
	}
	return parsed.PersonaID, nil
}

// ConversationParams describes a conversation session to start.
type ConversationParams struct {
	PersonaID string
	ReplicaID string
	Name      string
	Greeting  string
}

type conversationRequest struct {
	ReplicaID        string `json:"replica_id,omitempty"`
	PersonaID        string `json:"persona_id,omitempty"`
	ConversationName string `json:"conversation_name,omitempty"`
	CustomGreeting   string `json:"custom_greeting,omitempty"`
}

// Conversation is a live avatar session.
type Conversation struct {
	ConversationID  string `json:"conversation_id"`
	ConversationURL string `json:"conversation_url"`
	Status          string `json:"status"`
}

// CreateConversation starts an avatar session. Either PersonaID or ReplicaID
// must be supplied; a 400 response reporting the concurrent conversation cap
// maps to ErrConcurrencyLimit.
func (c *Client) CreateConversation(ctx context.Context, params ConversationParams) (Conversation, error) {
	var empty Conversation
	replicaID := strings.TrimSpace(params.ReplicaID)
	if replicaID == "" && strings.TrimSpace(params.PersonaID) == "" {
		replicaID = c.cfg.ReplicaID
	}
	if replicaID == "" && strings.TrimSpace(params.PersonaID) == "" {
		return empty, services.Wrap(services.ErrInvalidInput, "tavus", "create conversation", "persona or replica required", nil)
	}
	if c.cfg.APIKey == "" {
		return empty, services.Wrap(services.ErrInvalidInput, "tavus", "create conversation", "api key required", nil)
	}

	payload := conversationRequest{
		ReplicaID:        replicaID,
		PersonaID:        strings.TrimSpace(params.PersonaID),
		ConversationName: strings.TrimSpace(params.Name),
		CustomGreeting:   strings.TrimSpace(params.Greeting),
	}
	var parsed Conversation
	if err := c.do(ctx, http.MethodPost, "/conversations", payload, &parsed); err != nil {
		return empty, c.classify("create conversation", err)
	}
	if parsed.ConversationID == "" || parsed.ConversationURL == "" {
		return empty, services.Wrap(services.ErrSessionCreation, "tavus", "create conversation", "response missing conversation fields", nil)
	}
	return parsed, nil
}

// EndConversation terminates a live session. Ending an already-ended
// conversation is not an error.
func (c *Client) EndConversation(ctx context.Context, conversationID string) error {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return services.Wrap(services.ErrInvalidInput, "tavus", "end conversation", "conversation id required", nil)
	}
	if c.cfg.APIKey == "" {
		return services.Wrap(services.ErrInvalidInput, "tavus", "end conversation", "api key required", nil)
	}
	err := c.do(ctx, http.MethodPost, "/conversations/"+url.PathEscape(conversationID)+"/end", nil, nil)
	if err != nil {
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil
		}
		return c.classify("end conversation", err)
	}
	return nil
}

// Persona is a registered Tavus persona.
type Persona struct {
	PersonaID   string `json:"persona_id"`
	PersonaName string `json:"persona_name"`
	CreatedAt   string `json:"created_at"`
}

// ListPersonas returns the account's registered personas.
func (c *Client) ListPersonas(ctx context.Context) ([]Persona, error) {
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "tavus", "list personas", "api key required", nil)
	}
	var parsed struct {
		Data []Persona `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/personas", nil, &parsed); err != nil {
		return nil, c.classify("list personas", err)
	}
	return parsed.Data, nil
}

// Replica is a trained avatar model.
type Replica struct {
	ReplicaID   string `json:"replica_id"`
	ReplicaName string `json:"replica_name"`
	Status      string `json:"status"`
}

// ListReplicas returns the account's trained replicas.
func (c *Client) ListReplicas(ctx context.Context) ([]Replica, error) {
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "tavus", "list replicas", "api key required", nil)
	}
	var parsed struct {
		Data []Replica `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/replicas", nil, &parsed); err != nil {
		return nil, c.classify("list replicas", err)
	}
	return parsed.Data, nil
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// classify maps a transport error onto the service error taxonomy. Tavus
// reports the concurrent conversation cap as a 400 whose body names the
// maximum, so that case gets its own marker.
func (c *Client) classify(operation string, err error) error {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		lower := strings.ToLower(statusErr.Body)
		if statusErr.StatusCode == http.StatusBadRequest &&
			strings.Contains(lower, "maximum concurrent conversations") {
			return services.Wrap(services.ErrConcurrencyLimit, "tavus", operation, statusErr.Body, nil)
		}
	}
	return services.ClassifyHTTP("tavus", operation, err)
}

func (c *Client) do(ctx context.Context, method, path string, payload, target any) error {
	endpoint, err := url.JoinPath(c.cfg.BaseURL, path)
	if err != nil {
		return fmt.Errorf("build url: %w", err)
	}
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return &httpStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if target != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, target); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
