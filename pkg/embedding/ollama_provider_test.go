package embedding

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"ai-deepsearch-be/pkg/provider"
)

func TestNormalizeVector(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
		want []float32
	}{
		{"scales to unit length", []float32{3, 4, 0}, []float32{0.6, 0.8, 0}},
		{"zero vector unchanged", []float32{0, 0}, []float32{0, 0}},
		{"already normalized", []float32{1, 0}, []float32{1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeVector(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("normalizeVector() length = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if math.Abs(float64(got[i]-tt.want[i])) > 1e-6 {
					t.Errorf("normalizeVector()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestOllamaGenerateNormalizesEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("path = %s, want /api/embeddings", r.URL.Path)
		}
		var req ollamaEmbeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("model = %q, want default nomic-embed-text", req.Model)
		}
		if req.Prompt != "hello world" {
			t.Errorf("prompt = %q, want hello world", req.Prompt)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"embedding": []float64{3, 4}})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "")
	resp, err := p.Generate("hello world", TaskDocument)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	got := resp.Embedding.Values
	want := []float32{0.6, 0.8}
	if len(got) != len(want) {
		t.Fatalf("embedding length = %d, want %d", len(got), len(want))
	}
	var magnitude float64
	for i := range got {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("embedding[%d] = %v, want %v", i, got[i], want[i])
		}
		magnitude += float64(got[i]) * float64(got[i])
	}
	if math.Abs(magnitude-1) > 1e-6 {
		t.Errorf("embedding magnitude = %v, want 1", magnitude)
	}
}

func TestOllamaGenerateReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "missing-model")
	_, err := p.Generate("some text", TaskQuery)
	if err == nil {
		t.Fatal("Generate() succeeded against a 404")
	}
	perr, ok := provider.AsError(err)
	if !ok {
		t.Fatalf("error %v is not a provider error", err)
	}
	if perr.Status != http.StatusNotFound {
		t.Errorf("Status = %d, want %d", perr.Status, http.StatusNotFound)
	}
}
