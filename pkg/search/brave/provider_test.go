package brave

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"ai-deepsearch-be/pkg/provider"
)

func TestSearchParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Subscription-Token"); got != "brave-key" {
			t.Errorf("X-Subscription-Token = %q, want brave-key", got)
		}
		if got := r.URL.Query().Get("q"); got != "solar power" {
			t.Errorf("q = %q, want %q", got, "solar power")
		}
		if got := r.URL.Query().Get("count"); got != "5" {
			t.Errorf("count = %q, want 5", got)
		}
		fmt.Fprint(w, `{"web":{"results":[
			{"title":"Solar Basics","url":"https://www.energy.gov/solar","description":"How panels work"},
			{"title":"PV Tech","url":"https://pv.example.com/tech","description":"Cell efficiency"}
		]}}`)
	}))
	defer srv.Close()

	p := NewBraveProvider("brave-key")
	p.BaseURL = srv.URL

	sources, err := p.Search(context.Background(), "solar power", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("len = %d, want 2", len(sources))
	}
	if sources[0].Domain != "energy.gov" {
		t.Errorf("Domain = %q, want energy.gov", sources[0].Domain)
	}
	if sources[1].Snippet != "Cell efficiency" {
		t.Errorf("Snippet = %q", sources[1].Snippet)
	}
}

func TestSearchEmptyResultsIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"web":{"results":[]}}`)
	}))
	defer srv.Close()

	p := NewBraveProvider("brave-key")
	p.BaseURL = srv.URL

	sources, err := p.Search(context.Background(), "gibberish qzxv", 5)
	if err != nil {
		t.Fatalf("empty results should not error, got %v", err)
	}
	if len(sources) != 0 {
		t.Errorf("len = %d, want 0", len(sources))
	}
}

func TestSearchErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewBraveProvider("brave-key")
	p.BaseURL = srv.URL

	_, err := p.Search(context.Background(), "anything", 5)
	pe, ok := provider.AsError(err)
	if !ok {
		t.Fatalf("error type = %T, want *provider.Error", err)
	}
	if pe.Status != http.StatusTooManyRequests {
		t.Errorf("Status = %d, want 429", pe.Status)
	}
	if pe.Provider != "brave" {
		t.Errorf("Provider = %q, want brave", pe.Provider)
	}
}
