package metadata

import "strings"

// placeholderValue is the literal Swagger UI leaves in untouched example
// fields; it must never count as real content.
const placeholderValue = "string"

// SearchField names a metadata attribute that can seed a candidate search.
type SearchField string

const (
	FieldTitle       SearchField = "title"
	FieldDescription SearchField = "description"
	FieldKeywords    SearchField = "keywords"
	FieldURL         SearchField = "url"
)

// AllFields returns every search field in canonical order.
func AllFields() []SearchField {
	return []SearchField{FieldTitle, FieldDescription, FieldKeywords, FieldURL}
}

// ParseSearchField validates a field name from user input.
func ParseSearchField(raw string) (SearchField, bool) {
	switch SearchField(strings.ToLower(strings.TrimSpace(raw))) {
	case FieldTitle:
		return FieldTitle, true
	case FieldDescription:
		return FieldDescription, true
	case FieldKeywords:
		return FieldKeywords, true
	case FieldURL:
		return FieldURL, true
	}
	return "", false
}

// ContentMetadata is the searchable surface of one repository record.
// Values are never mutated in place; enrichment builds a fresh instance.
type ContentMetadata struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	URL         string   `json:"url,omitempty"`
	RedirectURL string   `json:"redirect_url,omitempty"`
}

// HasContent reports whether at least one field carries usable content.
func (m ContentMetadata) HasContent() bool {
	for _, field := range AllFields() {
		if m.Field(field).Usable() {
			return true
		}
	}
	return false
}

// Field returns the tagged value for one search field.
func (m ContentMetadata) Field(field SearchField) FieldValue {
	switch field {
	case FieldTitle:
		return Text(m.Title)
	case FieldDescription:
		return Text(m.Description)
	case FieldKeywords:
		return TextList(m.Keywords)
	case FieldURL:
		return Text(m.URL)
	}
	return FieldValue{}
}

// NormalizedURL is the canonical form of the record URL.
func (m ContentMetadata) NormalizedURL() string {
	return NormalizeURL(m.URL)
}

// NormalizedRedirectURL is the canonical form of the resolved redirect URL.
func (m ContentMetadata) NormalizedRedirectURL() string {
	return NormalizeURL(m.RedirectURL)
}

// AllURLs lists the original URL plus the redirect destination when it
// differs, in search order.
func (m ContentMetadata) AllURLs() []string {
	urls := make([]string, 0, 2)
	if m.URL != "" {
		urls = append(urls, m.URL)
	}
	if m.RedirectURL != "" && m.RedirectURL != m.URL {
		urls = append(urls, m.RedirectURL)
	}
	return urls
}

// UsableKeywords filters blank and placeholder entries.
func (m ContentMetadata) UsableKeywords() []string {
	if len(m.Keywords) == 0 {
		return nil
	}
	usable := make([]string, 0, len(m.Keywords))
	for _, keyword := range m.Keywords {
		if Text(keyword).Usable() {
			usable = append(usable, keyword)
		}
	}
	return usable
}

// CandidateRecord is one raw result row from the repository search, keyed
// by its node id.
type CandidateRecord struct {
	ID          string   `json:"id"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	URL         string   `json:"url,omitempty"`
}

type fieldKind int

const (
	fieldAbsent fieldKind = iota
	fieldPlaceholder
	fieldText
	fieldTextList
)

// FieldValue is a tagged metadata field value. The tag makes placeholder
// filtering explicit instead of re-deriving it at every call site.
type FieldValue struct {
	kind fieldKind
	text string
	list []string
}

// Text wraps a scalar string field.
func Text(value string) FieldValue {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return FieldValue{kind: fieldAbsent}
	}
	if strings.EqualFold(trimmed, placeholderValue) {
		return FieldValue{kind: fieldPlaceholder}
	}
	return FieldValue{kind: fieldText, text: trimmed}
}

// TextList wraps a list-of-strings field. Placeholder and blank entries are
// dropped; a list with nothing left is treated as placeholder-only.
func TextList(values []string) FieldValue {
	if len(values) == 0 {
		return FieldValue{kind: fieldAbsent}
	}
	usable := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" || strings.EqualFold(trimmed, placeholderValue) {
			continue
		}
		usable = append(usable, trimmed)
	}
	if len(usable) == 0 {
		return FieldValue{kind: fieldPlaceholder}
	}
	return FieldValue{kind: fieldTextList, list: usable}
}

// Usable reports whether the field carries real content.
func (v FieldValue) Usable() bool {
	return v.kind == fieldText || v.kind == fieldTextList
}

// Value returns the scalar text, or the usable list joined by spaces.
func (v FieldValue) Value() string {
	switch v.kind {
	case fieldText:
		return v.text
	case fieldTextList:
		return strings.Join(v.list, " ")
	}
	return ""
}

// List returns the usable entries of a list field.
func (v FieldValue) List() []string {
	return v.list
}
