package search

import (
	"testing"
)

func TestDomainOf(t *testing.T) {
	tests := []struct {
		rawURL string
		want   string
	}{
		{"https://www.example.com/page", "example.com"},
		{"https://example.com", "example.com"},
		{"http://blog.example.co.uk/a/b?q=1", "blog.example.co.uk"},
		{"https://www.nasa.gov:8080/missions", "nasa.gov"},
		{"not a url at all", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.rawURL, func(t *testing.T) {
			if got := DomainOf(tt.rawURL); got != tt.want {
				t.Errorf("DomainOf(%q) = %q, want %q", tt.rawURL, got, tt.want)
			}
		})
	}
}

func TestMergeSourcesDeduplicatesByURL(t *testing.T) {
	existing := []Source{
		{Title: "A", URL: "https://a.com"},
		{Title: "B", URL: "https://b.com", Content: "kept"},
	}
	incoming := []Source{
		{Title: "A again", URL: "https://a.com", Content: "filled in"},
		{Title: "B again", URL: "https://b.com", Content: "ignored"},
		{Title: "C", URL: "https://c.com"},
	}

	merged := MergeSources(existing, incoming)

	if len(merged) != 3 {
		t.Fatalf("len = %d, want 3", len(merged))
	}
	if merged[0].Title != "A" {
		t.Errorf("first occurrence should win, got title %q", merged[0].Title)
	}
	if merged[0].Content != "filled in" {
		t.Errorf("empty content should be filled from duplicate, got %q", merged[0].Content)
	}
	if merged[1].Content != "kept" {
		t.Errorf("existing content should not be overwritten, got %q", merged[1].Content)
	}
	if merged[2].URL != "https://c.com" {
		t.Errorf("new source should be appended, got %q", merged[2].URL)
	}
}

func TestMergeSourcesPreservesOrder(t *testing.T) {
	var merged []Source
	merged = MergeSources(merged, []Source{{URL: "u1"}, {URL: "u2"}})
	merged = MergeSources(merged, []Source{{URL: "u3"}, {URL: "u1"}})

	want := []string{"u1", "u2", "u3"}
	if len(merged) != len(want) {
		t.Fatalf("len = %d, want %d", len(merged), len(want))
	}
	for i, u := range want {
		if merged[i].URL != u {
			t.Errorf("merged[%d].URL = %q, want %q", i, merged[i].URL, u)
		}
	}
}
