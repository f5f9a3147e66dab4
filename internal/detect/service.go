// Package detect runs the full duplicate detection pipeline: load or
// accept source metadata, resolve redirects, search candidates, enrich
// sparse sources and score everything against a similarity backend.
package detect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/dupscan/internal/config"
	"horse.fit/dupscan/internal/metadata"
	"horse.fit/dupscan/internal/repository"
	"horse.fit/dupscan/internal/similarity"
)

// ErrNoSearchableContent is returned when the source metadata carries no
// usable field to search with.
var ErrNoSearchableContent = errors.New("metadata has no searchable content")

// Method selects the similarity backend.
type Method string

const (
	MethodFingerprint Method = "fingerprint"
	MethodEmbedding   Method = "embedding"
)

// ParseMethod validates a method name from user input.
func ParseMethod(raw string) (Method, bool) {
	switch Method(strings.ToLower(strings.TrimSpace(raw))) {
	case MethodFingerprint:
		return MethodFingerprint, true
	case MethodEmbedding:
		return MethodEmbedding, true
	}
	return "", false
}

// Params tunes one detection run.
type Params struct {
	// Environment selects the repository instance, "production" or
	// "staging". Blank falls back to production.
	Environment string
	// Fields limits the search; empty means all fields.
	Fields []metadata.SearchField
	// Threshold overrides the configured similarity threshold when > 0.
	Threshold float64
}

func (p Params) fields() []metadata.SearchField {
	if len(p.Fields) == 0 {
		return metadata.AllFields()
	}
	return p.Fields
}

// Timing reports per-stage wall clock times in milliseconds.
type Timing struct {
	FetchMillis    int64 `json:"fetch_ms,omitempty"`
	RedirectMillis int64 `json:"redirect_ms,omitempty"`
	SearchMillis   int64 `json:"search_ms"`
	EnrichMillis   int64 `json:"enrich_ms,omitempty"`
	MatchMillis    int64 `json:"match_ms"`
	TotalMillis    int64 `json:"total_ms"`
}

// Result is the full outcome of one detection run.
type Result struct {
	Method         Method                                         `json:"method"`
	Backend        string                                         `json:"backend"`
	Threshold      float64                                        `json:"threshold"`
	Environment    string                                         `json:"environment"`
	NodeID         string                                         `json:"node_id,omitempty"`
	Source         metadata.ContentMetadata                       `json:"source"`
	Enrichment     *repository.EnrichmentResult                   `json:"enrichment,omitempty"`
	SearchStats    map[metadata.SearchField]repository.FieldStats `json:"search_stats"`
	CandidateCount int                                            `json:"candidate_count"`
	Matches        []similarity.Match                             `json:"matches"`
	FieldMax       map[metadata.SearchField]float64               `json:"field_max"`
	Timing         Timing                                         `json:"timing"`
}

type environmentClients struct {
	client   *repository.Client
	searcher *repository.Searcher
	enricher *repository.Enricher
}

// Service owns one client set per repository environment plus the two
// similarity backends; it is safe for concurrent use.
type Service struct {
	cfg          *config.Config
	logger       zerolog.Logger
	environments map[string]environmentClients
	resolver     *metadata.RedirectResolver
	backends     map[Method]similarity.Backend
}

// New wires the detection service from configuration.
func New(cfg *config.Config, logger zerolog.Logger) *Service {
	environments := make(map[string]environmentClients, 2)
	for _, env := range []string{config.RepositoryEnvProduction, config.RepositoryEnvStaging} {
		client := repository.NewClient(repository.Config{
			BaseURL:      cfg.RepositoryURL(env),
			RepositoryID: cfg.RepositoryID,
			Timeout:      cfg.RepositoryTimeout,
			MaxRetries:   cfg.RepositoryMaxRetries,
			PageSize:     cfg.SearchPageSize,
		}, logger)
		environments[env] = environmentClients{
			client:   client,
			searcher: repository.NewSearcher(client, cfg.SearchWorkers, cfg.SearchPageSize, logger),
			enricher: repository.NewEnricher(client, logger),
		}
	}

	return &Service{
		cfg:          cfg,
		logger:       logger.With().Str("component", "detect_service").Logger(),
		environments: environments,
		resolver:     metadata.NewRedirectResolver(cfg.RedirectTimeout),
		backends: map[Method]similarity.Backend{
			MethodFingerprint: similarity.NewFingerprintBackend(cfg.FingerprintHashes),
			MethodEmbedding: similarity.NewEmbeddingBackend(similarity.EmbeddingConfig{
				Endpoint:     cfg.EmbeddingEndpoint,
				Model:        cfg.EmbeddingModel,
				Timeout:      cfg.EmbeddingTimeout,
				MaxTextChars: cfg.EmbeddingMaxTextChars,
			}, logger),
		},
	}
}

// Backend exposes the backend behind a method, for the utility endpoints.
func (s *Service) Backend(method Method) similarity.Backend {
	return s.backends[method]
}

// DetectByNode loads the node's metadata from the repository and runs
// detection against it, excluding the node itself from the candidates.
func (s *Service) DetectByNode(ctx context.Context, method Method, nodeID string, params Params) (*Result, error) {
	started := time.Now()
	env := s.environment(params.Environment)

	fetchStart := time.Now()
	node, err := s.environments[env].client.FetchNodeMetadata(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	fetchMillis := time.Since(fetchStart).Milliseconds()

	result, err := s.run(ctx, method, env, node.Metadata, nodeID, params)
	if err != nil {
		return nil, err
	}
	result.NodeID = nodeID
	result.Timing.FetchMillis = fetchMillis
	result.Timing.TotalMillis = time.Since(started).Milliseconds()
	return result, nil
}

// DetectByMetadata runs detection against caller-provided metadata.
func (s *Service) DetectByMetadata(ctx context.Context, method Method, source metadata.ContentMetadata, params Params) (*Result, error) {
	started := time.Now()
	env := s.environment(params.Environment)

	result, err := s.run(ctx, method, env, source, "", params)
	if err != nil {
		return nil, err
	}
	result.Timing.TotalMillis = time.Since(started).Milliseconds()
	return result, nil
}

func (s *Service) run(
	ctx context.Context,
	method Method,
	env string,
	source metadata.ContentMetadata,
	excludeNodeID string,
	params Params,
) (*Result, error) {
	backend, ok := s.backends[method]
	if !ok {
		return nil, fmt.Errorf("unknown detection method %q", method)
	}
	if !source.HasContent() {
		return nil, ErrNoSearchableContent
	}

	fields := params.fields()
	threshold := s.threshold(method, params)
	clients := s.environments[env]

	var timing Timing

	// Resolve where the source URL really points before searching; records
	// often store the pre-redirect form.
	if source.RedirectURL == "" && source.Field(metadata.FieldURL).Usable() {
		redirectStart := time.Now()
		if final, redirected := s.resolver.Resolve(ctx, source.URL); redirected {
			source.RedirectURL = final
		}
		timing.RedirectMillis = time.Since(redirectStart).Milliseconds()
	}

	searchStart := time.Now()
	candidates, stats, err := clients.searcher.SearchCandidates(ctx, source, fields, excludeNodeID)
	if err != nil {
		return nil, fmt.Errorf("candidate search: %w", err)
	}
	timing.SearchMillis = time.Since(searchStart).Milliseconds()

	var enrichment *repository.EnrichmentResult
	enrichStart := time.Now()
	if enriched := clients.enricher.Enrich(ctx, source, candidates); enriched.Enriched {
		enrichment = &enriched
		source = enriched.Metadata

		// The enriched fields open up searches that were impossible
		// before; re-run them and merge what is new.
		moreCandidates, moreStats, err := clients.searcher.SearchCandidates(ctx, source, fields, excludeNodeID)
		if err != nil {
			return nil, fmt.Errorf("post-enrichment search: %w", err)
		}
		mergeCandidates(candidates, moreCandidates)
		for field, fieldStats := range moreStats {
			if _, known := stats[field]; !known {
				stats[field] = fieldStats
			}
		}
	}
	timing.EnrichMillis = time.Since(enrichStart).Milliseconds()

	matcher := similarity.NewMatcher(backend, threshold)
	matchStart := time.Now()
	matchResult, err := matcher.FindDuplicates(ctx, source, candidates, fields)
	if err != nil {
		return nil, err
	}
	timing.MatchMillis = time.Since(matchStart).Milliseconds()

	count := 0
	for _, records := range candidates {
		count += len(records)
	}

	s.logger.Info().
		Str("method", string(method)).
		Str("environment", env).
		Int("candidates", count).
		Int("matches", len(matchResult.Matches)).
		Msg("detection run finished")

	return &Result{
		Method:         method,
		Backend:        backend.Name(),
		Threshold:      threshold,
		Environment:    env,
		Source:         source,
		Enrichment:     enrichment,
		SearchStats:    stats,
		CandidateCount: count,
		Matches:        matchResult.Matches,
		FieldMax:       matchResult.FieldMax,
		Timing:         timing,
	}, nil
}

// mergeCandidates appends candidates found after enrichment, keeping the
// global one-field-per-id invariant intact.
func mergeCandidates(existing, more map[metadata.SearchField][]metadata.CandidateRecord) {
	known := make(map[string]struct{})
	for _, records := range existing {
		for _, record := range records {
			known[record.ID] = struct{}{}
		}
	}

	for _, field := range metadata.AllFields() {
		for _, record := range more[field] {
			if _, dup := known[record.ID]; dup {
				continue
			}
			known[record.ID] = struct{}{}
			existing[field] = append(existing[field], record)
		}
	}
}

func (s *Service) environment(requested string) string {
	if strings.EqualFold(strings.TrimSpace(requested), config.RepositoryEnvStaging) {
		return config.RepositoryEnvStaging
	}
	return config.RepositoryEnvProduction
}

func (s *Service) threshold(method Method, params Params) float64 {
	if params.Threshold > 0 {
		return params.Threshold
	}
	if method == MethodEmbedding {
		return s.cfg.EmbeddingThreshold
	}
	return s.cfg.FingerprintThreshold
}
