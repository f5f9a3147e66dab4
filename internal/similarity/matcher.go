package similarity

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"horse.fit/dupscan/internal/metadata"
)

// MatchSourceURLExact marks matches found through URL identity rather than
// text similarity. Similarity matches carry the search field they came
// from instead.
const MatchSourceURLExact = "url_exact"

// Match is one candidate that scored at or above the threshold, or whose
// URL points at the same resource as the source.
type Match struct {
	ID          string  `json:"id"`
	Title       string  `json:"title,omitempty"`
	URL         string  `json:"url,omitempty"`
	Similarity  float64 `json:"similarity"`
	MatchSource string  `json:"match_source"`
}

// Result carries the matches plus the best similarity seen per search
// field, which is useful diagnostics even when nothing cleared the
// threshold.
type Result struct {
	Matches  []Match                          `json:"matches"`
	FieldMax map[metadata.SearchField]float64 `json:"field_max"`
}

// Matcher scores candidate records against a source record with one
// similarity backend.
type Matcher struct {
	backend   Backend
	threshold float64
}

// NewMatcher builds a matcher; threshold is the minimum similarity for a
// candidate to count as a duplicate.
func NewMatcher(backend Backend, threshold float64) *Matcher {
	return &Matcher{backend: backend, threshold: threshold}
}

// FindDuplicates compares the source against every candidate, field by
// field in the order the caller searched them. A candidate whose normalized
// URL equals the source URL (or its redirect target) matches with
// similarity 1 regardless of text similarity. Each candidate id is scored
// at most once; the first field that carries it wins. Scores are rounded to
// four decimals.
func (m *Matcher) FindDuplicates(
	ctx context.Context,
	source metadata.ContentMetadata,
	candidates map[metadata.SearchField][]metadata.CandidateRecord,
	searched []metadata.SearchField,
) (Result, error) {
	result := Result{
		Matches:  []Match{},
		FieldMax: map[metadata.SearchField]float64{},
	}

	if err := m.backend.EnsureReady(ctx); err != nil {
		return result, err
	}

	fieldOrder := searched
	if len(fieldOrder) == 0 {
		fieldOrder = metadata.AllFields()
	}
	includeKeywords := containsField(searched, metadata.FieldKeywords)

	sourceText := buildComparisonText(source.Title, source.Description, source.UsableKeywords(), includeKeywords)
	sourceRepr, err := m.backend.Representation(ctx, sourceText)
	if err != nil {
		return result, fmt.Errorf("represent source: %w", err)
	}
	if sourceRepr == nil {
		return result, nil
	}

	sourceURL := source.NormalizedURL()
	sourceRedirect := source.NormalizedRedirectURL()

	representations, err := m.representCandidates(ctx, candidates, fieldOrder, includeKeywords)
	if err != nil {
		return result, fmt.Errorf("represent candidates: %w", err)
	}

	seen := make(map[string]struct{})

	for _, field := range fieldOrder {
		records := candidates[field]
		if len(records) == 0 {
			continue
		}
		if _, ok := result.FieldMax[field]; !ok {
			result.FieldMax[field] = 0
		}

		for i, record := range records {
			if record.ID == "" {
				continue
			}
			if _, done := seen[record.ID]; done {
				continue
			}

			if urlExact(record, sourceURL, sourceRedirect) {
				seen[record.ID] = struct{}{}
				result.Matches = append(result.Matches, Match{
					ID:          record.ID,
					Title:       record.Title,
					URL:         record.URL,
					Similarity:  1,
					MatchSource: MatchSourceURLExact,
				})
				updateFieldMax(result.FieldMax, field, 1)
				continue
			}

			repr := representations[field][i]
			if repr == nil {
				continue
			}
			seen[record.ID] = struct{}{}

			score := round4(m.backend.Similarity(sourceRepr, repr))
			updateFieldMax(result.FieldMax, field, score)

			if score >= m.threshold {
				result.Matches = append(result.Matches, Match{
					ID:          record.ID,
					Title:       record.Title,
					URL:         record.URL,
					Similarity:  score,
					MatchSource: string(field),
				})
			}
		}
	}

	sort.SliceStable(result.Matches, func(i, j int) bool {
		return result.Matches[i].Similarity > result.Matches[j].Similarity
	})

	return result, nil
}

// representCandidates batches every candidate text, across all fields,
// through the backend in one call, computing each distinct text only once.
func (m *Matcher) representCandidates(
	ctx context.Context,
	candidates map[metadata.SearchField][]metadata.CandidateRecord,
	fieldOrder []metadata.SearchField,
	includeKeywords bool,
) (map[metadata.SearchField][][]float64, error) {
	texts := make(map[metadata.SearchField][]string, len(candidates))
	unique := make([]string, 0)
	indexOf := make(map[string]int)

	for _, field := range fieldOrder {
		records := candidates[field]
		if len(records) == 0 {
			continue
		}
		fieldTexts := make([]string, len(records))
		for i, record := range records {
			keywords := metadata.TextList(record.Keywords).List()
			text := buildComparisonText(record.Title, record.Description, keywords, includeKeywords)
			fieldTexts[i] = text
			if _, ok := indexOf[text]; !ok {
				indexOf[text] = len(unique)
				unique = append(unique, text)
			}
		}
		texts[field] = fieldTexts
	}

	representations := make(map[metadata.SearchField][][]float64, len(texts))
	if len(unique) == 0 {
		return representations, nil
	}

	uniqueReprs, err := m.backend.BatchRepresentations(ctx, unique)
	if err != nil {
		return nil, err
	}

	for field, fieldTexts := range texts {
		fieldReprs := make([][]float64, len(fieldTexts))
		for i, text := range fieldTexts {
			fieldReprs[i] = uniqueReprs[indexOf[text]]
		}
		representations[field] = fieldReprs
	}
	return representations, nil
}

// buildComparisonText joins the fields both sides are compared on. The
// keyword part only participates when the keywords field was searched, so
// source and candidates are always built from the same fields.
func buildComparisonText(title, description string, keywords []string, includeKeywords bool) string {
	parts := make([]string, 0, 3)
	if v := metadata.Text(title); v.Usable() {
		parts = append(parts, v.Value())
	}
	if v := metadata.Text(description); v.Usable() {
		parts = append(parts, v.Value())
	}
	if includeKeywords && len(keywords) > 0 {
		parts = append(parts, strings.Join(keywords, " "))
	}
	return strings.Join(parts, " ")
}

func urlExact(record metadata.CandidateRecord, sourceURL, sourceRedirect string) bool {
	normalized := metadata.NormalizeURL(record.URL)
	if normalized == "" {
		return false
	}
	return (sourceURL != "" && normalized == sourceURL) ||
		(sourceRedirect != "" && normalized == sourceRedirect)
}

func updateFieldMax(fieldMax map[metadata.SearchField]float64, field metadata.SearchField, score float64) {
	if score > fieldMax[field] {
		fieldMax[field] = score
	}
}

func containsField(fields []metadata.SearchField, want metadata.SearchField) bool {
	for _, field := range fields {
		if field == want {
			return true
		}
	}
	return false
}

func round4(value float64) float64 {
	return math.Round(value*10000) / 10000
}
