package repository

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"horse.fit/dupscan/internal/metadata"
)

// EnrichmentResult reports whether sparse source metadata was filled in
// from a repository record, which one, and through which field the record
// was identified.
type EnrichmentResult struct {
	Metadata    metadata.ContentMetadata `json:"metadata"`
	Enriched    bool                     `json:"enriched"`
	SourceID    string                   `json:"source_id,omitempty"`
	SourceField string                   `json:"source_field,omitempty"`
	FieldsAdded []string                 `json:"fields_added,omitempty"`
}

// Enricher fills missing metadata fields from a candidate that clearly
// identifies the same resource.
type Enricher struct {
	client *Client
	logger zerolog.Logger
}

func NewEnricher(client *Client, logger zerolog.Logger) *Enricher {
	return &Enricher{
		client: client,
		logger: logger.With().Str("component", "enrichment").Logger(),
	}
}

// Enrich looks for a candidate that is the same resource as the source: a
// URL-field candidate whose normalized URL equals the source URL or its
// redirect target, or failing that a title-field candidate with the exact
// same title. When found, the candidate's full metadata is fetched and
// only the fields the source is missing are copied over. Enrichment never
// fails a detection run; any fetch error leaves the source unchanged.
func (e *Enricher) Enrich(
	ctx context.Context,
	source metadata.ContentMetadata,
	candidates map[metadata.SearchField][]metadata.CandidateRecord,
) EnrichmentResult {
	unchanged := EnrichmentResult{Metadata: source}

	hasTitle := source.Field(metadata.FieldTitle).Usable()
	hasDescription := source.Field(metadata.FieldDescription).Usable()
	hasKeywords := source.Field(metadata.FieldKeywords).Usable()
	if hasTitle && (hasDescription || hasKeywords) {
		return unchanged
	}

	sourceField := metadata.FieldURL
	match := e.findURLMatch(source, candidates[metadata.FieldURL])
	if match == "" && hasTitle {
		match = findTitleMatch(source, candidates[metadata.FieldTitle])
		sourceField = metadata.FieldTitle
	}
	if match == "" {
		return unchanged
	}

	node, err := e.client.FetchNodeMetadata(ctx, match)
	if err != nil {
		e.logger.Warn().Err(err).Str("node_id", match).Msg("enrichment fetch failed, keeping source as is")
		return unchanged
	}

	enriched := source
	added := make([]string, 0, 4)
	if !hasTitle && node.Metadata.Field(metadata.FieldTitle).Usable() {
		enriched.Title = node.Metadata.Title
		added = append(added, string(metadata.FieldTitle))
	}
	if !hasDescription && node.Metadata.Field(metadata.FieldDescription).Usable() {
		enriched.Description = node.Metadata.Description
		added = append(added, string(metadata.FieldDescription))
	}
	if !hasKeywords && node.Metadata.Field(metadata.FieldKeywords).Usable() {
		enriched.Keywords = node.Metadata.Keywords
		added = append(added, string(metadata.FieldKeywords))
	}
	if !source.Field(metadata.FieldURL).Usable() && node.Metadata.Field(metadata.FieldURL).Usable() {
		enriched.URL = node.Metadata.URL
		added = append(added, string(metadata.FieldURL))
	}

	if len(added) == 0 {
		return unchanged
	}

	e.logger.Info().
		Str("node_id", match).
		Str("source_field", string(sourceField)).
		Strs("fields_added", added).
		Msg("enriched sparse metadata from repository record")

	return EnrichmentResult{
		Metadata:    enriched,
		Enriched:    true,
		SourceID:    match,
		SourceField: string(sourceField),
		FieldsAdded: added,
	}
}

func (e *Enricher) findURLMatch(source metadata.ContentMetadata, records []metadata.CandidateRecord) string {
	sourceURL := source.NormalizedURL()
	sourceRedirect := source.NormalizedRedirectURL()
	if sourceURL == "" && sourceRedirect == "" {
		return ""
	}

	for _, record := range records {
		normalized := metadata.NormalizeURL(record.URL)
		if normalized == "" {
			continue
		}
		if normalized == sourceURL || (sourceRedirect != "" && normalized == sourceRedirect) {
			return record.ID
		}
	}
	return ""
}

func findTitleMatch(source metadata.ContentMetadata, records []metadata.CandidateRecord) string {
	want := strings.ToLower(strings.TrimSpace(source.Title))
	if want == "" {
		return ""
	}

	for _, record := range records {
		if strings.ToLower(strings.TrimSpace(record.Title)) == want {
			return record.ID
		}
	}
	return ""
}
