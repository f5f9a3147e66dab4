package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/dupscan/internal/metadata"
)

func newTestEnricher(t *testing.T, nodes map[string]map[string]any) (*Enricher, func()) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for id, node := range nodes {
			if r.URL.Path == "/node/v1/nodes/-home-/"+id+"/metadata" {
				_ = json.NewEncoder(w).Encode(map[string]any{"node": node})
				return
			}
		}
		http.NotFound(w, r)
	}))
	client := NewClient(Config{BaseURL: server.URL, Timeout: 5 * time.Second}, zerolog.Nop())
	return NewEnricher(client, zerolog.Nop()), server.Close
}

func fullNode(id string) map[string]any {
	return map[string]any{
		"ref": map[string]any{"id": id},
		"properties": map[string]any{
			"cclom:title":               []string{"Der Wasserkreislauf"},
			"cclom:general_description": []string{"Verdunstung und Niederschlag."},
			"cclom:general_keyword":     []string{"Wasser", "Geografie"},
			"ccm:wwwurl":                []string{"https://example.com/wasser"},
		},
	}
}

func TestEnrich(t *testing.T) {
	t.Parallel()

	t.Run("complete metadata is left alone", func(t *testing.T) {
		t.Parallel()

		enricher, done := newTestEnricher(t, nil)
		defer done()

		source := metadata.ContentMetadata{
			Title:       "Der Wasserkreislauf",
			Description: "Verdunstung und Niederschlag.",
		}
		result := enricher.Enrich(context.Background(), source, nil)
		if result.Enriched {
			t.Fatal("expected no enrichment for complete metadata")
		}
		if !reflect.DeepEqual(result.Metadata, source) {
			t.Fatalf("metadata changed: %+v", result.Metadata)
		}
	})

	t.Run("url match fills missing fields", func(t *testing.T) {
		t.Parallel()

		enricher, done := newTestEnricher(t, map[string]map[string]any{"node-1": fullNode("node-1")})
		defer done()

		source := metadata.ContentMetadata{URL: "http://www.example.com/wasser/"}
		candidates := map[metadata.SearchField][]metadata.CandidateRecord{
			metadata.FieldURL: {{ID: "node-1", URL: "https://example.com/wasser"}},
		}

		result := enricher.Enrich(context.Background(), source, candidates)
		if !result.Enriched {
			t.Fatal("expected enrichment")
		}
		if result.SourceID != "node-1" {
			t.Fatalf("source id = %q", result.SourceID)
		}
		if result.SourceField != string(metadata.FieldURL) {
			t.Fatalf("source field = %q, want %q", result.SourceField, metadata.FieldURL)
		}
		if result.Metadata.Title != "Der Wasserkreislauf" {
			t.Fatalf("title = %q", result.Metadata.Title)
		}
		if result.Metadata.Description != "Verdunstung und Niederschlag." {
			t.Fatalf("description = %q", result.Metadata.Description)
		}
		// The source URL is kept, not overwritten.
		if result.Metadata.URL != "http://www.example.com/wasser/" {
			t.Fatalf("url = %q, want the original source url", result.Metadata.URL)
		}
	})

	t.Run("title match requires exact title", func(t *testing.T) {
		t.Parallel()

		enricher, done := newTestEnricher(t, map[string]map[string]any{"node-2": fullNode("node-2")})
		defer done()

		source := metadata.ContentMetadata{Title: "der wasserkreislauf"}
		candidates := map[metadata.SearchField][]metadata.CandidateRecord{
			metadata.FieldTitle: {
				{ID: "near", Title: "Der Wasserkreislauf erklärt"},
				{ID: "node-2", Title: "Der Wasserkreislauf"},
			},
		}

		result := enricher.Enrich(context.Background(), source, candidates)
		if !result.Enriched || result.SourceID != "node-2" {
			t.Fatalf("expected enrichment from node-2, got %+v", result)
		}
		if result.SourceField != string(metadata.FieldTitle) {
			t.Fatalf("source field = %q, want %q", result.SourceField, metadata.FieldTitle)
		}
		if len(result.Metadata.Keywords) == 0 {
			t.Fatal("expected keywords to be filled in")
		}
		if result.Metadata.URL != "https://example.com/wasser" {
			t.Fatalf("url = %q, want filled from the record", result.Metadata.URL)
		}
	})

	t.Run("no identifying candidate is a no-op", func(t *testing.T) {
		t.Parallel()

		enricher, done := newTestEnricher(t, nil)
		defer done()

		source := metadata.ContentMetadata{Title: "Der Wasserkreislauf"}
		candidates := map[metadata.SearchField][]metadata.CandidateRecord{
			metadata.FieldTitle: {{ID: "other", Title: "Etwas anderes"}},
		}

		result := enricher.Enrich(context.Background(), source, candidates)
		if result.Enriched {
			t.Fatalf("expected no enrichment, got %+v", result)
		}
	})

	t.Run("fetch failure is a no-op", func(t *testing.T) {
		t.Parallel()

		enricher, done := newTestEnricher(t, nil)
		defer done()

		source := metadata.ContentMetadata{Title: "Der Wasserkreislauf"}
		candidates := map[metadata.SearchField][]metadata.CandidateRecord{
			metadata.FieldTitle: {{ID: "gone", Title: "Der Wasserkreislauf"}},
		}

		result := enricher.Enrich(context.Background(), source, candidates)
		if result.Enriched {
			t.Fatal("expected no enrichment when the fetch fails")
		}
		if !reflect.DeepEqual(result.Metadata, source) {
			t.Fatalf("metadata changed: %+v", result.Metadata)
		}
	})

	t.Run("redirect target may identify the record", func(t *testing.T) {
		t.Parallel()

		enricher, done := newTestEnricher(t, map[string]map[string]any{"node-3": fullNode("node-3")})
		defer done()

		source := metadata.ContentMetadata{
			URL:         "https://short.link/w",
			RedirectURL: "https://example.com/wasser",
		}
		candidates := map[metadata.SearchField][]metadata.CandidateRecord{
			metadata.FieldURL: {{ID: "node-3", URL: "https://www.example.com/wasser/"}},
		}

		result := enricher.Enrich(context.Background(), source, candidates)
		if !result.Enriched || result.SourceID != "node-3" {
			t.Fatalf("expected enrichment via redirect target, got %+v", result)
		}
	})
}
