package fingerprint

import (
	"math"
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "lowercases and splits", in: "Die Photosynthese der Pflanzen", want: []string{"die", "photosynthese", "der", "pflanzen"}},
		{name: "drops one-letter tokens", in: "a b photosynthesis c plants", want: []string{"photosynthesis", "plants"}},
		{name: "collapses whitespace", in: "  water \t cycle \n explained ", want: []string{"water", "cycle", "explained"}},
		{name: "empty", in: "", want: []string{}},
		{name: "umlaut tokens survive", in: "Gewässer und Flüsse", want: []string{"gewässer", "und", "flüsse"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Tokenize(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestShingles(t *testing.T) {
	t.Parallel()

	t.Run("three-token windows", func(t *testing.T) {
		t.Parallel()
		shingles := Shingles([]string{"the", "water", "cycle", "explained"})
		if len(shingles) != 2 {
			t.Fatalf("expected 2 shingles, got %d", len(shingles))
		}
	})

	t.Run("short input falls back to one shingle", func(t *testing.T) {
		t.Parallel()
		shingles := Shingles([]string{"water", "cycle"})
		if len(shingles) != 1 {
			t.Fatalf("expected 1 shingle, got %d", len(shingles))
		}
	})

	t.Run("no tokens no shingles", func(t *testing.T) {
		t.Parallel()
		if shingles := Shingles(nil); shingles != nil {
			t.Fatalf("expected nil, got %v", shingles)
		}
	})
}

func TestSignature(t *testing.T) {
	t.Parallel()

	engine := NewEngine(100, 42)

	t.Run("deterministic", func(t *testing.T) {
		t.Parallel()
		text := "the water cycle explained for students"
		a := engine.Signature(text)
		b := engine.Signature(text)
		if !reflect.DeepEqual(a, b) {
			t.Fatal("identical text must produce identical signatures")
		}
		if len(a) != 100 {
			t.Fatalf("signature length = %d, want 100", len(a))
		}
	})

	t.Run("engines with same seed agree", func(t *testing.T) {
		t.Parallel()
		other := NewEngine(100, 42)
		text := "photosynthesis in green plants"
		if !reflect.DeepEqual(engine.Signature(text), other.Signature(text)) {
			t.Fatal("same-seed engines must produce identical signatures")
		}
	})

	t.Run("empty text yields nil", func(t *testing.T) {
		t.Parallel()
		if sig := engine.Signature("   "); sig != nil {
			t.Fatal("expected nil signature for blank text")
		}
		if sig := engine.Signature("a b c"); sig != nil {
			t.Fatal("expected nil signature when all tokens are dropped")
		}
	})

	t.Run("values stay below the modulus", func(t *testing.T) {
		t.Parallel()
		for i, v := range engine.Signature("water cycle explained") {
			if v < 0 || v >= 4294967311 {
				t.Fatalf("signature[%d] = %f out of range", i, v)
			}
		}
	})
}

func TestCosine(t *testing.T) {
	t.Parallel()

	engine := NewEngine(100, 42)

	t.Run("identical texts score 1", func(t *testing.T) {
		t.Parallel()
		sig := engine.Signature("the water cycle explained for students in school")
		if got := Cosine(sig, sig); math.Abs(got-1) > 1e-9 {
			t.Fatalf("Cosine(sig, sig) = %f, want 1", got)
		}
	})

	t.Run("near-duplicates score higher than unrelated texts", func(t *testing.T) {
		t.Parallel()
		base := engine.Signature("the water cycle explained for students in school with experiments")
		near := engine.Signature("the water cycle explained for students in class with experiments")
		far := engine.Signature("introduction to roman history and the fall of the empire")

		nearScore := Cosine(base, near)
		farScore := Cosine(base, far)
		if nearScore <= farScore {
			t.Fatalf("near score %f not above unrelated score %f", nearScore, farScore)
		}
	})

	t.Run("mismatched lengths score 0", func(t *testing.T) {
		t.Parallel()
		if got := Cosine([]float64{1, 2}, []float64{1, 2, 3}); got != 0 {
			t.Fatalf("Cosine on mismatched lengths = %f, want 0", got)
		}
	})

	t.Run("empty signatures score 0", func(t *testing.T) {
		t.Parallel()
		if got := Cosine(nil, nil); got != 0 {
			t.Fatalf("Cosine(nil, nil) = %f, want 0", got)
		}
	})
}
