package metadata

import (
	"reflect"
	"testing"
)

func TestText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		in         string
		wantUsable bool
		wantValue  string
	}{
		{name: "real value", in: "Photosynthese", wantUsable: true, wantValue: "Photosynthese"},
		{name: "trims whitespace", in: "  Photosynthese  ", wantUsable: true, wantValue: "Photosynthese"},
		{name: "empty", in: "", wantUsable: false, wantValue: ""},
		{name: "whitespace only", in: "   ", wantUsable: false, wantValue: ""},
		{name: "placeholder", in: "string", wantUsable: false, wantValue: ""},
		{name: "placeholder case insensitive", in: "String", wantUsable: false, wantValue: ""},
		{name: "placeholder inside text is fine", in: "string theory", wantUsable: true, wantValue: "string theory"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v := Text(tt.in)
			if v.Usable() != tt.wantUsable {
				t.Fatalf("Text(%q).Usable() = %v, want %v", tt.in, v.Usable(), tt.wantUsable)
			}
			if v.Value() != tt.wantValue {
				t.Fatalf("Text(%q).Value() = %q, want %q", tt.in, v.Value(), tt.wantValue)
			}
		})
	}
}

func TestTextList(t *testing.T) {
	t.Parallel()

	t.Run("filters placeholders and blanks", func(t *testing.T) {
		t.Parallel()
		v := TextList([]string{"Biologie", "string", "", "  ", "Pflanzen"})
		if !v.Usable() {
			t.Fatal("expected usable list")
		}
		if got, want := v.List(), []string{"Biologie", "Pflanzen"}; !reflect.DeepEqual(got, want) {
			t.Fatalf("List() = %v, want %v", got, want)
		}
		if got := v.Value(); got != "Biologie Pflanzen" {
			t.Fatalf("Value() = %q, want %q", got, "Biologie Pflanzen")
		}
	})

	t.Run("placeholder-only list is unusable", func(t *testing.T) {
		t.Parallel()
		if v := TextList([]string{"string", ""}); v.Usable() {
			t.Fatal("expected placeholder-only list to be unusable")
		}
	})

	t.Run("empty list is unusable", func(t *testing.T) {
		t.Parallel()
		if v := TextList(nil); v.Usable() {
			t.Fatal("expected empty list to be unusable")
		}
	})
}

func TestContentMetadataField(t *testing.T) {
	t.Parallel()

	m := ContentMetadata{
		Title:    "Photosynthese",
		Keywords: []string{"Biologie", "string"},
		URL:      "https://example.com/photo",
	}

	if !m.Field(FieldTitle).Usable() {
		t.Fatal("expected usable title")
	}
	if m.Field(FieldDescription).Usable() {
		t.Fatal("expected missing description to be unusable")
	}
	if got := m.Field(FieldKeywords).Value(); got != "Biologie" {
		t.Fatalf("keywords value = %q, want %q", got, "Biologie")
	}
	if !m.HasContent() {
		t.Fatal("expected HasContent to be true")
	}

	empty := ContentMetadata{Title: "string", Keywords: []string{"string"}}
	if empty.HasContent() {
		t.Fatal("expected placeholder-only metadata to have no content")
	}
}

func TestContentMetadataAllURLs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		meta ContentMetadata
		want []string
	}{
		{
			name: "url and distinct redirect",
			meta: ContentMetadata{URL: "https://short.link/x", RedirectURL: "https://example.com/page"},
			want: []string{"https://short.link/x", "https://example.com/page"},
		},
		{
			name: "redirect equal to url is dropped",
			meta: ContentMetadata{URL: "https://example.com/page", RedirectURL: "https://example.com/page"},
			want: []string{"https://example.com/page"},
		},
		{
			name: "no urls",
			meta: ContentMetadata{Title: "x"},
			want: []string{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.meta.AllURLs(); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("AllURLs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseSearchField(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{"title", "Description", " KEYWORDS ", "url"} {
		if _, ok := ParseSearchField(valid); !ok {
			t.Fatalf("ParseSearchField(%q) rejected a valid field", valid)
		}
	}
	for _, invalid := range []string{"", "body", "titles"} {
		if _, ok := ParseSearchField(invalid); ok {
			t.Fatalf("ParseSearchField(%q) accepted an invalid field", invalid)
		}
	}
}
