package similarity

import (
	"context"

	"horse.fit/dupscan/internal/fingerprint"
)

// fingerprintSeed fixes the hash family so signatures stay comparable
// across processes and restarts.
const fingerprintSeed = 42

// FingerprintBackend scores texts by the cosine similarity of their
// MinHash signatures. It is fully local and always available.
type FingerprintBackend struct {
	engine *fingerprint.Engine
}

// NewFingerprintBackend builds a backend with numHashes hash functions.
func NewFingerprintBackend(numHashes int) *FingerprintBackend {
	return &FingerprintBackend{
		engine: fingerprint.NewEngine(numHashes, fingerprintSeed),
	}
}

func (b *FingerprintBackend) Name() string {
	return "fingerprint"
}

func (b *FingerprintBackend) EnsureReady(context.Context) error {
	return nil
}

func (b *FingerprintBackend) Representation(_ context.Context, text string) ([]float64, error) {
	return b.engine.Signature(text), nil
}

func (b *FingerprintBackend) BatchRepresentations(_ context.Context, texts []string) ([][]float64, error) {
	representations := make([][]float64, len(texts))
	for i, text := range texts {
		representations[i] = b.engine.Signature(text)
	}
	return representations, nil
}

func (b *FingerprintBackend) Similarity(a, c []float64) float64 {
	return fingerprint.Cosine(a, c)
}
