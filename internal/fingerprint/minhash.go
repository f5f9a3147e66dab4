// Package fingerprint computes MinHash signatures over token shingles so
// that near-identical texts compare with high cosine similarity without
// ever storing the full text.
package fingerprint

import (
	"hash/crc32"
	"math"
	"math/rand"
	"strings"
)

// nextPrime is the smallest prime above 2^32; the hash family
// h(x) = (a*x + b) mod nextPrime stays collision-friendly for 32-bit
// shingle hashes.
const nextPrime = 4294967311

const shingleSize = 3

// Engine holds a fixed family of hash functions. Signatures produced by
// engines built with the same parameters are comparable; the coefficient
// generation is fully deterministic for a given seed.
type Engine struct {
	coeffA []uint64
	coeffB []uint64
}

// NewEngine builds an engine with numHashes hash functions derived from
// the given seed.
func NewEngine(numHashes int, seed int64) *Engine {
	if numHashes < 1 {
		numHashes = 1
	}
	rng := rand.New(rand.NewSource(seed))
	return &Engine{
		coeffA: uniqueCoefficients(rng, numHashes),
		coeffB: uniqueCoefficients(rng, numHashes),
	}
}

// uniqueCoefficients draws distinct values from [0, 2^32). Duplicates are
// redrawn so every hash function in the family is different.
func uniqueCoefficients(rng *rand.Rand, count int) []uint64 {
	seen := make(map[uint64]struct{}, count)
	coefficients := make([]uint64, 0, count)
	for len(coefficients) < count {
		candidate := uint64(rng.Int63n(1 << 32))
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		coefficients = append(coefficients, candidate)
	}
	return coefficients
}

// NumHashes returns the signature length.
func (e *Engine) NumHashes() int {
	return len(e.coeffA)
}

// Tokenize lowercases the text, splits on whitespace and drops one-letter
// tokens.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if len([]rune(field)) > 1 {
			tokens = append(tokens, field)
		}
	}
	return tokens
}

// Shingles hashes every run of three consecutive tokens with CRC32. Texts
// with fewer than three tokens contribute a single shingle over the whole
// token run, so short titles still get a usable signature.
func Shingles(tokens []string) map[uint32]struct{} {
	if len(tokens) == 0 {
		return nil
	}

	shingles := make(map[uint32]struct{})
	if len(tokens) < shingleSize {
		shingles[crc32.ChecksumIEEE([]byte(strings.Join(tokens, " ")))] = struct{}{}
		return shingles
	}
	for i := 0; i+shingleSize <= len(tokens); i++ {
		shingle := strings.Join(tokens[i:i+shingleSize], " ")
		shingles[crc32.ChecksumIEEE([]byte(shingle))] = struct{}{}
	}
	return shingles
}

// Signature computes the MinHash signature of the text, or nil when the
// text has no usable tokens.
func (e *Engine) Signature(text string) []float64 {
	shingles := Shingles(Tokenize(text))
	if len(shingles) == 0 {
		return nil
	}

	signature := make([]float64, len(e.coeffA))
	for i := range e.coeffA {
		minHash := uint64(math.MaxUint64)
		for shingle := range shingles {
			hashed := (e.coeffA[i]*uint64(shingle) + e.coeffB[i]) % nextPrime
			if hashed < minHash {
				minHash = hashed
			}
		}
		signature[i] = float64(minHash)
	}
	return signature
}

// Cosine returns the cosine similarity of two signatures, or 0 when they
// differ in length or either is empty.
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
