package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"horse.fit/dupscan/internal/metadata"
)

// Search properties understood by the edu-sharing ngsearch endpoint:
// free-text matching for title, description and keyword queries, exact
// matching for the stored URL.
const (
	propertySearchWord = "ngsearchword"
	propertyWWWURL     = "ccm:wwwurl"
)

const (
	// maxQueryKeywords caps how many keywords join the keyword query; past
	// the first few, additional keywords only dilute the result set.
	maxQueryKeywords = 5
	// descriptionQueryRunes limits the free-text description query; the
	// search endpoint scores long queries poorly.
	descriptionQueryRunes = 100
	// queryDisplayRunes truncates query strings in the reported stats.
	queryDisplayRunes = 80
)

// FieldStats reports what was searched for one field and how many
// candidates it returned before cross-field deduplication. Variants is the
// number of query variants tried, reported for the title and url fields.
type FieldStats struct {
	Queries  []string `json:"queries"`
	Count    int      `json:"count"`
	Variants int      `json:"variants,omitempty"`
}

// Searcher fans candidate searches out over a bounded worker pool and
// merges the results deterministically.
type Searcher struct {
	client      *Client
	workers     int
	maxPerField int
	logger      zerolog.Logger
}

// NewSearcher builds a searcher. maxPerField caps the candidates kept per
// search field; workers bounds concurrent repository requests.
func NewSearcher(client *Client, workers, maxPerField int, logger zerolog.Logger) *Searcher {
	if workers < 1 {
		workers = 1
	}
	if maxPerField < 1 {
		maxPerField = 100
	}
	return &Searcher{
		client:      client,
		workers:     workers,
		maxPerField: maxPerField,
		logger:      logger.With().Str("component", "candidate_search").Logger(),
	}
}

type searchTask struct {
	field    metadata.SearchField
	property string
	value    string
	display  string
	maxItems int
}

// SearchCandidates runs one search task per query variant concurrently and
// merges results per field in task order, so the output is deterministic
// regardless of completion order. The excluded node id (the source itself)
// never appears in the results. Stats count per-field hits before the
// cross-field dedupe; the candidate lists are deduped globally with the
// first field in the caller's order keeping the record.
func (s *Searcher) SearchCandidates(
	ctx context.Context,
	source metadata.ContentMetadata,
	fields []metadata.SearchField,
	excludeNodeID string,
) (map[metadata.SearchField][]metadata.CandidateRecord, map[metadata.SearchField]FieldStats, error) {
	tasks := s.buildTasks(source, fields)

	candidates := make(map[metadata.SearchField][]metadata.CandidateRecord, len(fields))
	stats := make(map[metadata.SearchField]FieldStats, len(fields))
	if len(tasks) == 0 {
		return candidates, stats, nil
	}

	results := make([][]*NodeMetadata, len(tasks))

	var mu sync.Mutex
	var firstErr error
	failures := 0

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)
	for i, task := range tasks {
		i, task := i, task
		group.Go(func() error {
			nodes, err := s.client.QueryByProperty(groupCtx, task.property, task.value, task.maxItems)
			if err != nil {
				s.logger.Warn().Err(err).
					Str("field", string(task.field)).
					Str("property", task.property).
					Msg("candidate search failed, continuing without its results")
				mu.Lock()
				failures++
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return nil
			}
			results[i] = nodes
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}
	if failures == len(tasks) && firstErr != nil {
		return nil, nil, fmt.Errorf("all candidate searches failed: %w", firstErr)
	}

	// Per-field merge, dedupe by node id within the field.
	fieldSeen := make(map[metadata.SearchField]map[string]struct{}, len(fields))
	for i, task := range tasks {
		fieldStats := stats[task.field]
		fieldStats.Queries = append(fieldStats.Queries, task.display)

		seen := fieldSeen[task.field]
		if seen == nil {
			seen = make(map[string]struct{})
			fieldSeen[task.field] = seen
		}

		for _, node := range results[i] {
			if node.ID == "" || node.ID == excludeNodeID {
				continue
			}
			if _, dup := seen[node.ID]; dup {
				continue
			}
			if len(candidates[task.field]) >= s.maxPerField {
				break
			}
			seen[node.ID] = struct{}{}
			candidates[task.field] = append(candidates[task.field], node.Candidate())
		}

		fieldStats.Count = len(candidates[task.field])
		if task.field == metadata.FieldTitle || task.field == metadata.FieldURL {
			fieldStats.Variants = len(fieldStats.Queries)
		}
		stats[task.field] = fieldStats
	}

	dedupeAcrossFields(candidates, fields)

	return candidates, stats, nil
}

// dedupeAcrossFields keeps each node id only in the first field, in the
// caller's field order, that found it.
func dedupeAcrossFields(candidates map[metadata.SearchField][]metadata.CandidateRecord, fields []metadata.SearchField) {
	seen := make(map[string]struct{})
	for _, field := range fields {
		records := candidates[field]
		if len(records) == 0 {
			continue
		}
		kept := records[:0]
		for _, record := range records {
			if _, dup := seen[record.ID]; dup {
				continue
			}
			seen[record.ID] = struct{}{}
			kept = append(kept, record)
		}
		candidates[field] = kept
	}
}

func (s *Searcher) buildTasks(source metadata.ContentMetadata, fields []metadata.SearchField) []searchTask {
	tasks := make([]searchTask, 0, 8)

	for _, field := range fields {
		switch field {
		case metadata.FieldTitle:
			tasks = append(tasks, s.titleTasks(source)...)
		case metadata.FieldDescription:
			tasks = append(tasks, s.descriptionTasks(source)...)
		case metadata.FieldKeywords:
			tasks = append(tasks, s.keywordTasks(source)...)
		case metadata.FieldURL:
			tasks = append(tasks, s.urlTasks(source)...)
		}
	}

	return tasks
}

func (s *Searcher) titleTasks(source metadata.ContentMetadata) []searchTask {
	title := source.Field(metadata.FieldTitle)
	if !title.Usable() {
		return nil
	}

	tasks := make([]searchTask, 0, 2)
	for _, variant := range metadata.TitleSearchVariants(title.Value()) {
		display := truncateRunes(variant, queryDisplayRunes)
		if variant != title.Value() {
			display = truncateRunes(title.Value(), queryDisplayRunes) + " → " + display
		}
		tasks = append(tasks, searchTask{
			field:    metadata.FieldTitle,
			property: propertySearchWord,
			value:    variant,
			display:  display,
			maxItems: s.maxPerField,
		})
	}
	return tasks
}

func (s *Searcher) descriptionTasks(source metadata.ContentMetadata) []searchTask {
	description := source.Field(metadata.FieldDescription)
	if !description.Usable() {
		return nil
	}

	query := truncateRunes(description.Value(), descriptionQueryRunes)
	return []searchTask{{
		field:    metadata.FieldDescription,
		property: propertySearchWord,
		value:    query,
		display:  truncateRunes(query, queryDisplayRunes),
		maxItems: s.maxPerField,
	}}
}

// keywordTasks joins the first usable keywords into one free-text query.
func (s *Searcher) keywordTasks(source metadata.ContentMetadata) []searchTask {
	keywords := source.UsableKeywords()
	if len(keywords) == 0 {
		return nil
	}
	if len(keywords) > maxQueryKeywords {
		keywords = keywords[:maxQueryKeywords]
	}

	query := strings.Join(keywords, " ")
	return []searchTask{{
		field:    metadata.FieldKeywords,
		property: propertySearchWord,
		value:    query,
		display:  truncateRunes(query, queryDisplayRunes),
		maxItems: s.maxPerField,
	}}
}

// urlTasks searches the stored URL property for the exact URL and its
// redirect target, then falls back to free-text search over the URL
// spelling variants at half the candidate budget each.
func (s *Searcher) urlTasks(source metadata.ContentMetadata) []searchTask {
	urls := source.AllURLs()
	if len(urls) == 0 {
		return nil
	}

	tasks := make([]searchTask, 0, 4)
	exact := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		exact[u] = struct{}{}
		tasks = append(tasks, searchTask{
			field:    metadata.FieldURL,
			property: propertyWWWURL,
			value:    u,
			display:  truncateRunes(u, queryDisplayRunes),
			maxItems: s.maxPerField,
		})
	}

	variantBudget := s.maxPerField / 2
	if variantBudget < 1 {
		variantBudget = 1
	}
	for _, variant := range metadata.URLSearchVariants(source.URL) {
		if _, done := exact[variant]; done {
			continue
		}
		tasks = append(tasks, searchTask{
			field:    metadata.FieldURL,
			property: propertySearchWord,
			value:    variant,
			display:  truncateRunes(variant, queryDisplayRunes),
			maxItems: variantBudget,
		})
	}
	return tasks
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
