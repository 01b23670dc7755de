package tavus

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"parley/internal/services"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{APIKey: "tv-test", BaseURL: server.URL, ReplicaID: "r-default"})
}

func TestCreatePersona(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/personas" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if key := r.Header.Get("x-api-key"); key != "tv-test" {
			t.Fatalf("unexpected api key header: %q", key)
		}
		var req personaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.PersonaName != "Acme Guide" {
			t.Fatalf("unexpected persona name: %q", req.PersonaName)
		}
		if req.DefaultReplicaID != "r-default" {
			t.Fatalf("config replica not applied: %q", req.DefaultReplicaID)
		}
		if req.Layers != nil {
			t.Fatalf("vision layer should be absent: %#v", req.Layers)
		}
		json.NewEncoder(w).Encode(personaResponse{PersonaID: "p-123"})
	})

	id, err := client.CreatePersona(context.Background(), PersonaParams{
		Name:         "Acme Guide",
		SystemPrompt: "You are a helpful guide.",
		Context:      "Acme builds robotic arms.",
	})
	if err != nil {
		t.Fatalf("CreatePersona failed: %v", err)
	}
	if id != "p-123" {
		t.Fatalf("unexpected persona id: %q", id)
	}
}

func TestCreatePersonaVisionLayer(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req personaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Layers == nil || req.Layers.Perception == nil || req.Layers.Perception.PerceptionModel != "raven-0" {
			t.Fatalf("expected perception layer, got %#v", req.Layers)
		}
		json.NewEncoder(w).Encode(personaResponse{PersonaID: "p-vision"})
	})

	if _, err := client.CreatePersona(context.Background(), PersonaParams{
		Name:         "Seer",
		SystemPrompt: "prompt",
		EnableVision: true,
	}); err != nil {
		t.Fatalf("CreatePersona failed: %v", err)
	}
}

func TestCreatePersonaValidation(t *testing.T) {
	client := NewClient(Config{APIKey: "tv-test"})
	_, err := client.CreatePersona(context.Background(), PersonaParams{SystemPrompt: "prompt"})
	if !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateConversation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/conversations" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var req conversationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.PersonaID != "p-123" {
			t.Fatalf("unexpected persona id: %q", req.PersonaID)
		}
		if req.CustomGreeting == "" {
			t.Fatal("expected custom greeting")
		}
		json.NewEncoder(w).Encode(Conversation{
			ConversationID:  "c-999",
			ConversationURL: "https://tavus.daily.co/c-999",
			Status:          "active",
		})
	})

	conv, err := client.CreateConversation(context.Background(), ConversationParams{
		PersonaID: "p-123",
		Name:      "Acme session",
		Greeting:  "Hello! Ask me about Acme.",
	})
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if conv.ConversationID != "c-999" || conv.ConversationURL == "" {
		t.Fatalf("unexpected conversation: %#v", conv)
	}
}

func TestCreateConversationConcurrencyLimit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"User has reached maximum concurrent conversations"}`))
	})

	_, err := client.CreateConversation(context.Background(), ConversationParams{PersonaID: "p-123"})
	if !errors.Is(err, services.ErrConcurrencyLimit) {
		t.Fatalf("expected ErrConcurrencyLimit, got %v", err)
	}
	if errors.Is(err, services.ErrUpstream) {
		t.Fatalf("concurrency limit should not carry the upstream marker: %v", err)
	}
}

func TestCreateConversationOtherBadRequest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"invalid replica_id"}`))
	})

	_, err := client.CreateConversation(context.Background(), ConversationParams{PersonaID: "p-123"})
	if !errors.Is(err, services.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestCreateConversationMissingFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
	})

	_, err := client.CreateConversation(context.Background(), ConversationParams{PersonaID: "p-123"})
	if !errors.Is(err, services.ErrSessionCreation) {
		t.Fatalf("expected ErrSessionCreation, got %v", err)
	}
}

func TestEndConversation(t *testing.T) {
	var called bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/conversations/c-999/end" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		called = true
		w.WriteHeader(http.StatusOK)
	})

	if err := client.EndConversation(context.Background(), "c-999"); err != nil {
		t.Fatalf("EndConversation failed: %v", err)
	}
	if !called {
		t.Fatal("expected end endpoint to be called")
	}
}

func TestEndConversationNotFoundTolerated(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	if err := client.EndConversation(context.Background(), "ghost"); err != nil {
		t.Fatalf("404 should not be an error: %v", err)
	}
}

func TestListPersonasAndReplicas(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/personas":
			json.NewEncoder(w).Encode(map[string]any{
				"data": []Persona{{PersonaID: "p-1", PersonaName: "Guide"}},
			})
		case "/replicas":
			json.NewEncoder(w).Encode(map[string]any{
				"data": []Replica{{ReplicaID: "r-1", ReplicaName: "Anna", Status: "ready"}},
			})
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	})

	personas, err := client.ListPersonas(context.Background())
	if err != nil {
		t.Fatalf("ListPersonas failed: %v", err)
	}
	if len(personas) != 1 || personas[0].PersonaID != "p-1" {
		t.Fatalf("unexpected personas: %#v", personas)
	}

	replicas, err := client.ListReplicas(context.Background())
	if err != nil {
		t.Fatalf("ListReplicas failed: %v", err)
	}
	if len(replicas) != 1 || replicas[0].Status != "ready" {
		t.Fatalf("unexpected replicas: %#v", replicas)
	}
}
