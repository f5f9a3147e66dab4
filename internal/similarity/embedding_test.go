package similarity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeEmbedServer returns a one-hot vector per distinct text so tests can
// predict exact similarities.
func fakeEmbedServer(t *testing.T) *httptest.Server {
	t.Helper()

	known := map[string][]float64{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Texts []string `json:"texts"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		embeddings := make([][]float64, 0, len(req.Texts))
		for _, text := range req.Texts {
			vector, ok := known[text]
			if !ok {
				vector = make([]float64, 8)
				vector[len(known)%8] = 1
				known[text] = vector
			}
			embeddings = append(embeddings, vector)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
	}))
}

func newTestEmbeddingBackend(endpoint string) *EmbeddingBackend {
	return NewEmbeddingBackend(EmbeddingConfig{
		Endpoint:     endpoint,
		Model:        "test-model",
		Timeout:      5 * time.Second,
		MaxTextChars: 100,
	}, zerolog.Nop())
}

func TestEmbeddingBackend(t *testing.T) {
	t.Parallel()

	t.Run("batch keeps positions and nil holes", func(t *testing.T) {
		t.Parallel()

		server := fakeEmbedServer(t)
		defer server.Close()

		backend := newTestEmbeddingBackend(server.URL)
		reprs, err := backend.BatchRepresentations(context.Background(), []string{"alpha", "", "beta"})
		if err != nil {
			t.Fatalf("BatchRepresentations: %v", err)
		}
		if len(reprs) != 3 {
			t.Fatalf("expected 3 representations, got %d", len(reprs))
		}
		if reprs[0] == nil || reprs[2] == nil {
			t.Fatal("expected vectors for non-empty texts")
		}
		if reprs[1] != nil {
			t.Fatal("expected nil slot for empty text")
		}
	})

	t.Run("identical text identical vector", func(t *testing.T) {
		t.Parallel()

		server := fakeEmbedServer(t)
		defer server.Close()

		backend := newTestEmbeddingBackend(server.URL)
		a, err := backend.Representation(context.Background(), "the water cycle")
		if err != nil {
			t.Fatalf("Representation: %v", err)
		}
		b, err := backend.Representation(context.Background(), "the water cycle")
		if err != nil {
			t.Fatalf("Representation: %v", err)
		}
		if got := backend.Similarity(a, b); got != 1 {
			t.Fatalf("Similarity(a, a) = %f, want 1", got)
		}
	})

	t.Run("ensure ready succeeds against live server", func(t *testing.T) {
		t.Parallel()

		server := fakeEmbedServer(t)
		defer server.Close()

		backend := newTestEmbeddingBackend(server.URL)
		if err := backend.EnsureReady(context.Background()); err != nil {
			t.Fatalf("EnsureReady: %v", err)
		}
		// Cached, no further probing needed.
		if err := backend.EnsureReady(context.Background()); err != nil {
			t.Fatalf("EnsureReady (cached): %v", err)
		}
	})

	t.Run("concurrent first calls share one probe", func(t *testing.T) {
		t.Parallel()

		var probes atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			probes.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float64{{1}}})
		}))
		defer server.Close()

		backend := newTestEmbeddingBackend(server.URL)

		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = backend.EnsureReady(context.Background())
			}()
		}
		wg.Wait()

		for i, err := range errs {
			if err != nil {
				t.Fatalf("EnsureReady #%d: %v", i, err)
			}
		}
		if got := probes.Load(); got != 1 {
			t.Fatalf("expected a single probe, got %d", got)
		}
	})

	t.Run("unreachable server reports unavailable", func(t *testing.T) {
		t.Parallel()

		backend := newTestEmbeddingBackend("http://127.0.0.1:1/embed")
		err := backend.EnsureReady(context.Background())
		if !errors.Is(err, ErrBackendUnavailable) {
			t.Fatalf("expected ErrBackendUnavailable, got %v", err)
		}
		if _, err := backend.Representation(context.Background(), "text"); !errors.Is(err, ErrBackendUnavailable) {
			t.Fatalf("expected ErrBackendUnavailable from Representation, got %v", err)
		}
	})

	t.Run("server error reports unavailable", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		backend := newTestEmbeddingBackend(server.URL)
		if err := backend.EnsureReady(context.Background()); !errors.Is(err, ErrBackendUnavailable) {
			t.Fatalf("expected ErrBackendUnavailable, got %v", err)
		}
	})

	t.Run("openai style endpoint", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Input []string `json:"input"`
				Model string   `json:"model"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if req.Model != "test-model" {
				http.Error(w, "unexpected model", http.StatusBadRequest)
				return
			}
			data := make([]map[string]any, 0, len(req.Input))
			for range req.Input {
				data = append(data, map[string]any{"embedding": []float64{1, 0}})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
		}))
		defer server.Close()

		backend := newTestEmbeddingBackend(server.URL + "/v1/embeddings")
		repr, err := backend.Representation(context.Background(), "hello")
		if err != nil {
			t.Fatalf("Representation: %v", err)
		}
		if len(repr) != 2 || repr[0] != 1 {
			t.Fatalf("unexpected vector %v", repr)
		}
	})

	t.Run("long text is truncated", func(t *testing.T) {
		t.Parallel()

		var received string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Texts []string `json:"texts"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			if len(req.Texts) > 0 {
				received = req.Texts[0]
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float64{{1}}})
		}))
		defer server.Close()

		backend := newTestEmbeddingBackend(server.URL)
		long := make([]byte, 500)
		for i := range long {
			long[i] = 'x'
		}
		if _, err := backend.Representation(context.Background(), string(long)); err != nil {
			t.Fatalf("Representation: %v", err)
		}
		if len(received) != 100 {
			t.Fatalf("server received %d chars, want 100", len(received))
		}
	})
}
