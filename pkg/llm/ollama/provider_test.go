package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ai-deepsearch-be/pkg/llm"
	"ai-deepsearch-be/pkg/provider"
)

func TestChatParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s, want /api/chat", r.URL.Path)
		}
		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("Chat should request stream=false")
		}
		if req.Model != "llama3.1" {
			t.Errorf("model = %s, want llama3.1", req.Model)
		}
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: ollamaMessage{Role: "assistant", Content: "hello there"},
			Done:    true,
		})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3.1")
	got, err := p.Chat(context.Background(), []llm.Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if got != "hello there" {
		t.Errorf("Chat = %q, want %q", got, "hello there")
	}
}

func TestChatMapsModelRoleToAssistant(t *testing.T) {
	var seen []ollamaMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		seen = req.Messages
		json.NewEncoder(w).Encode(ollamaChatResponse{Done: true})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3.1")
	_, err := p.Chat(context.Background(), []llm.Message{
		{Role: "user", Content: "a"},
		{Role: "model", Content: "b"},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if len(seen) != 2 || seen[1].Role != "assistant" {
		t.Errorf("messages = %+v, want second role mapped to assistant", seen)
	}
}

func TestChatErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "missing")
	_, err := p.Chat(context.Background(), []llm.Message{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	pe, ok := provider.AsError(err)
	if !ok {
		t.Fatalf("error type = %T, want *provider.Error", err)
	}
	if pe.Status != http.StatusNotFound {
		t.Errorf("Status = %d, want %d", pe.Status, http.StatusNotFound)
	}
	if pe.Provider != "ollama" || pe.Operation != "chat" {
		t.Errorf("Provider/Operation = %s/%s, want ollama/chat", pe.Provider, pe.Operation)
	}
}

func TestStreamDeliversChunksInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			t.Error("Stream should request stream=true")
		}
		enc := json.NewEncoder(w)
		enc.Encode(ollamaChatResponse{Message: ollamaMessage{Content: "Hel"}})
		enc.Encode(ollamaChatResponse{Message: ollamaMessage{Content: "lo "}})
		enc.Encode(ollamaChatResponse{Message: ollamaMessage{Content: "world"}})
		enc.Encode(ollamaChatResponse{Done: true})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3.1")
	stream, err := p.Stream(context.Background(), []llm.Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	var got string
	for chunk := range stream {
		if chunk.Err != nil {
			t.Fatalf("unexpected chunk error: %v", chunk.Err)
		}
		got += chunk.Text
	}
	if got != "Hello world" {
		t.Errorf("streamed text = %q, want %q", got, "Hello world")
	}
}

func TestStreamStopsOnCancel(t *testing.T) {
	firstChunk := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		enc := json.NewEncoder(w)
		enc.Encode(ollamaChatResponse{Message: ollamaMessage{Content: "first"}})
		flusher.Flush()
		close(firstChunk)
		// Keep the connection open; the client is expected to hang up.
		for i := 0; i < 100; i++ {
			if _, err := w.Write([]byte("\n")); err != nil {
				return
			}
			flusher.Flush()
			time.Sleep(10 * time.Millisecond)
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewOllamaProvider(srv.URL, "llama3.1")
	stream, err := p.Stream(ctx, []llm.Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	<-firstChunk
	cancel()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-stream:
			if !ok {
				return // channel closed, connection released
			}
		case <-deadline:
			t.Fatal("stream did not close after cancellation")
		}
	}
}

func TestStreamErrorStatusFailsBeforeChannel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3.1")
	_, err := p.Stream(context.Background(), []llm.Message{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
	pe, ok := provider.AsError(err)
	if !ok || pe.Status != http.StatusServiceUnavailable {
		t.Errorf("error = %v, want provider error with status 503", err)
	}
}
