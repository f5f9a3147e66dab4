// Package similarity scores how alike two metadata texts are. Scoring is
// split into interchangeable backends: a local MinHash fingerprint backend
// and a remote embedding backend behind the same interface.
package similarity

import (
	"context"
	"errors"
	"math"
)

// ErrBackendUnavailable signals that a backend cannot serve requests right
// now, e.g. the embedding service is down. Callers should fail the whole
// detection run rather than silently return an empty result.
var ErrBackendUnavailable = errors.New("similarity backend unavailable")

// Backend turns text into a numeric representation and scores pairs of
// representations. A nil representation means the text carried nothing
// comparable; Similarity on nil input returns 0.
type Backend interface {
	// Name identifies the backend in responses and logs.
	Name() string

	// EnsureReady verifies the backend can serve requests. It returns an
	// error wrapping ErrBackendUnavailable when it cannot.
	EnsureReady(ctx context.Context) error

	// Representation computes the comparable form of one text, or nil when
	// the text has no usable content.
	Representation(ctx context.Context, text string) ([]float64, error)

	// BatchRepresentations computes representations for many texts at
	// once. The result always has the same length as the input; entries
	// for unusable texts are nil.
	BatchRepresentations(ctx context.Context, texts []string) ([][]float64, error)

	// Similarity scores two representations in [0, 1].
	Similarity(a, b []float64) float64
}

// Cosine returns the cosine similarity of two vectors, or 0 when they
// differ in length or either is empty or zero.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
