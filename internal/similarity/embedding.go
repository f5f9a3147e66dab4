package similarity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EmbeddingConfig configures the remote embedding backend.
type EmbeddingConfig struct {
	Endpoint     string
	Model        string
	Timeout      time.Duration
	MaxTextChars int
}

// EmbeddingBackend scores texts by the cosine similarity of sentence
// embeddings produced by a remote model server. The server speaks either
// the plain {"texts": ...} protocol or the OpenAI-compatible
// /v1/embeddings protocol; the endpoint path decides which.
type EmbeddingBackend struct {
	endpoint     string
	model        string
	maxTextChars int
	client       *http.Client
	logger       zerolog.Logger

	mu         sync.Mutex
	ready      bool
	readyModel string
}

// NewEmbeddingBackend builds a backend for the given endpoint. No network
// traffic happens until EnsureReady or the first representation call.
func NewEmbeddingBackend(cfg EmbeddingConfig, logger zerolog.Logger) *EmbeddingBackend {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	maxChars := cfg.MaxTextChars
	if maxChars <= 0 {
		maxChars = 10000
	}
	return &EmbeddingBackend{
		endpoint:     strings.TrimSpace(cfg.Endpoint),
		model:        strings.TrimSpace(cfg.Model),
		maxTextChars: maxChars,
		client:       &http.Client{Timeout: timeout},
		logger:       logger.With().Str("component", "embedding_backend").Logger(),
	}
}

func (b *EmbeddingBackend) Name() string {
	return "embedding"
}

// ModelID reports the configured model identifier.
func (b *EmbeddingBackend) ModelID() string {
	return b.model
}

// EnsureReady probes the embedding server once and caches success for the
// configured model id. The probe runs under the lock, so concurrent first
// calls block behind a single probe instead of each issuing their own. A
// failed probe is retried on the next call, so a server that comes up
// later becomes usable without a restart.
func (b *EmbeddingBackend) EnsureReady(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ready && b.readyModel == b.model {
		return nil
	}

	vectors, err := b.embed(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return fmt.Errorf("%w: embedding server returned no vectors", ErrBackendUnavailable)
	}

	b.ready = true
	b.readyModel = b.model
	return nil
}

func (b *EmbeddingBackend) Representation(ctx context.Context, text string) ([]float64, error) {
	vectors, err := b.BatchRepresentations(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// BatchRepresentations embeds all usable texts in one request. Blank texts
// keep a nil slot so positions line up with the input.
func (b *EmbeddingBackend) BatchRepresentations(ctx context.Context, texts []string) ([][]float64, error) {
	representations := make([][]float64, len(texts))

	payload := make([]string, 0, len(texts))
	positions := make([]int, 0, len(texts))
	for i, text := range texts {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			continue
		}
		payload = append(payload, b.truncate(trimmed))
		positions = append(positions, i)
	}
	if len(payload) == 0 {
		return representations, nil
	}

	vectors, err := b.embed(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if len(vectors) != len(payload) {
		return nil, fmt.Errorf("%w: embedding server returned %d vectors for %d texts",
			ErrBackendUnavailable, len(vectors), len(payload))
	}

	for i, position := range positions {
		if len(vectors[i]) > 0 {
			representations[position] = vectors[i]
		}
	}
	return representations, nil
}

func (b *EmbeddingBackend) Similarity(a, c []float64) float64 {
	return Cosine(a, c)
}

func (b *EmbeddingBackend) truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= b.maxTextChars {
		return text
	}
	return string(runes[:b.maxTextChars])
}

type embedRequest struct {
	Texts     []string `json:"texts,omitempty"`
	Input     []string `json:"input,omitempty"`
	Model     string   `json:"model,omitempty"`
	MaxLength int      `json:"max_length,omitempty"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Data       []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func (b *EmbeddingBackend) embed(ctx context.Context, texts []string) ([][]float64, error) {
	if b.endpoint == "" {
		return nil, fmt.Errorf("no embedding endpoint configured")
	}

	openAIStyle := strings.Contains(b.endpoint, "/v1/embeddings")

	var request embedRequest
	if openAIStyle {
		request.Input = texts
		request.Model = b.model
	} else {
		request.Texts = texts
		request.MaxLength = b.maxTextChars
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call embedding server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding server returned status %d", resp.StatusCode)
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}

	vectors := decoded.Embeddings
	if len(vectors) == 0 && len(decoded.Data) > 0 {
		vectors = make([][]float64, 0, len(decoded.Data))
		for _, item := range decoded.Data {
			vectors = append(vectors, item.Embedding)
		}
	}

	b.logger.Debug().
		Int("texts", len(texts)).
		Int("vectors", len(vectors)).
		Dur("duration", time.Since(start)).
		Msg("embedded texts")

	return vectors, nil
}
