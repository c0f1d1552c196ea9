package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChatReturnsFirstChoice(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "resposta"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	content, err := c.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "olá"}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if content != "resposta" {
		t.Fatalf("content = %q", content)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotBody["model"] != "gpt-4.1-mini" {
		t.Errorf("default model = %v", gotBody["model"])
	}
}

func TestChatRequiresKeyAndMessages(t *testing.T) {
	c := NewClient("http://unused", "")
	if _, err := c.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}

	c = NewClient("http://unused", "key")
	if _, err := c.Chat(context.Background(), ChatRequest{}); err == nil {
		t.Fatal("empty messages should fail")
	}
}

func TestChatUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key")
	_, err := c.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}})
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("err = %v, want UpstreamError", err)
	}
	if upstream.Status != http.StatusTooManyRequests {
		t.Errorf("status = %d", upstream.Status)
	}
}

func TestVectorSearchCollectsChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/vector_stores/vs_123/search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("OpenAI-Beta"); got != "assistants=v2" {
			t.Errorf("beta header = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"content": []map[string]any{{"text": "trecho um"}, {"text": "linha dois"}}},
				{"content": []map[string]any{{"text": ""}}},
				{"content": []map[string]any{{"text": "trecho dois"}}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key")
	chunks, err := c.VectorSearch(context.Background(), VectorSearchRequest{
		VectorStoreID: "vs_123",
		Query:         "autodiscernimento",
	})
	if err != nil {
		t.Fatalf("VectorSearch: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("chunks = %v, want 2 entries", chunks)
	}
	if chunks[0] != "trecho um\nlinha dois" {
		t.Errorf("chunk[0] = %q", chunks[0])
	}
}

func TestVectorSearchValidates(t *testing.T) {
	c := NewClient("http://unused", "key")
	if _, err := c.VectorSearch(context.Background(), VectorSearchRequest{Query: "x"}); err == nil {
		t.Fatal("missing vector store id should fail")
	}
	if _, err := c.VectorSearch(context.Background(), VectorSearchRequest{VectorStoreID: "vs"}); err == nil {
		t.Fatal("missing query should fail")
	}
}
