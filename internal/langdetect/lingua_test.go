package langdetect

import "testing"

func TestDetectISO6391(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "german", in: "Der Wasserkreislauf beschreibt die Bewegung des Wassers in der Natur", want: "de"},
		{name: "english", in: "The water cycle describes the movement of water in nature", want: "en"},
		{name: "french", in: "Le cycle de l'eau décrit le mouvement de l'eau dans la nature", want: "fr"},
		{name: "empty", in: "", want: ""},
		{name: "too short", in: "ab cd", want: ""},
		{name: "digits only", in: "12345 67890", want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := DetectISO6391(tt.in); got != tt.want {
				t.Fatalf("DetectISO6391(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
