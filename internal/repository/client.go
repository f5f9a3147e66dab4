// Package repository talks to the edu-sharing REST API: fetching node
// metadata and searching for candidate records by property.
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrNodeNotFound is returned when the repository has no node with the
// requested id.
var ErrNodeNotFound = errors.New("node not found")

// Config holds the connection settings for one repository instance.
type Config struct {
	// BaseURL is the REST root, e.g. "https://host/edu-sharing/rest".
	BaseURL string
	// RepositoryID selects the repository, usually "-home-".
	RepositoryID string
	Timeout      time.Duration
	MaxRetries   int
	// PageSize is the number of rows fetched per search request.
	PageSize int
}

// Client is a thin edu-sharing REST client. It retries transient failures
// and paginates search results transparently.
type Client struct {
	baseURL      string
	repositoryID string
	pageSize     int
	httpClient   *http.Client
	logger       zerolog.Logger
}

// NewClient builds a client for one repository base URL.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	repositoryID := cfg.RepositoryID
	if repositoryID == "" {
		repositoryID = "-home-"
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		repositoryID: repositoryID,
		pageSize:     pageSize,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &retryTransport{
				base:       http.DefaultTransport,
				maxRetries: cfg.MaxRetries,
				logger:     logger,
			},
		},
		logger: logger.With().Str("component", "repository_client").Logger(),
	}
}

// BaseURL reports the configured REST root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type nodeEnvelope struct {
	Node json.RawMessage `json:"node"`
}

type searchResponse struct {
	Nodes []json.RawMessage `json:"nodes"`
}

// FetchNodeMetadata loads the full property set of one node and extracts
// its searchable metadata.
func (c *Client) FetchNodeMetadata(ctx context.Context, nodeID string) (*NodeMetadata, error) {
	endpoint := fmt.Sprintf("%s/node/v1/nodes/%s/%s/metadata?propertyFilter=-all-",
		c.baseURL, url.PathEscape(c.repositoryID), url.PathEscape(nodeID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build node request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch node %s: %w", nodeID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("node %s: %w", nodeID, ErrNodeNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch node %s: repository returned status %d", nodeID, resp.StatusCode)
	}

	var envelope nodeEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode node %s: %w", nodeID, err)
	}
	if len(envelope.Node) == 0 {
		return nil, fmt.Errorf("node %s: %w", nodeID, ErrNodeNotFound)
	}

	node, err := parseNode(envelope.Node)
	if err != nil {
		return nil, fmt.Errorf("parse node %s: %w", nodeID, err)
	}
	return node, nil
}

type searchCriterion struct {
	Property string   `json:"property"`
	Values   []string `json:"values"`
}

type searchRequest struct {
	Criteria []searchCriterion `json:"criteria"`
}

// QueryByProperty searches nodes whose property carries the given value,
// following pagination up to maxItems rows. A failure after the first page
// returns the rows collected so far instead of an error; candidate search
// tolerates partial results.
func (c *Client) QueryByProperty(ctx context.Context, property, value string, maxItems int) ([]*NodeMetadata, error) {
	if maxItems <= 0 {
		maxItems = c.pageSize
	}

	body, err := json.Marshal(searchRequest{
		Criteria: []searchCriterion{{Property: property, Values: []string{value}}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	results := make([]*NodeMetadata, 0, c.pageSize)
	for skip := 0; len(results) < maxItems; skip += c.pageSize {
		pageSize := c.pageSize
		if remaining := maxItems - len(results); remaining < pageSize {
			pageSize = remaining
		}

		nodes, err := c.searchPage(ctx, body, pageSize, skip)
		if err != nil {
			if skip == 0 {
				return nil, err
			}
			c.logger.Warn().Err(err).
				Str("property", property).
				Int("skip", skip).
				Msg("search pagination aborted, returning partial results")
			break
		}

		for _, raw := range nodes {
			node, err := parseNode(raw)
			if err != nil {
				c.logger.Warn().Err(err).Str("property", property).Msg("skipping unparseable search result")
				continue
			}
			results = append(results, node)
		}

		if len(nodes) < pageSize {
			break
		}
	}

	return results, nil
}

func (c *Client) searchPage(ctx context.Context, body []byte, maxItems, skipCount int) ([]json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/search/v1/queries/%s/mds_oeh/ngsearch", c.baseURL, url.PathEscape(c.repositoryID))

	query := url.Values{}
	query.Set("contentType", "FILES")
	query.Set("maxItems", fmt.Sprintf("%d", maxItems))
	query.Set("skipCount", fmt.Sprintf("%d", skipCount))
	query.Set("propertyFilter", "-all-")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?"+query.Encode(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return decoded.Nodes, nil
}

// retryTransport retries idempotent-safe repository calls on transient
// failures: network errors, 429 and the usual 5xx gateway statuses. The
// search POST is a read and safe to repeat.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	logger     zerolog.Logger
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * 500 * time.Millisecond
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(backoff):
			}

			if req.Body != nil && req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				req.Body = body
			}
		}

		resp, err := t.base.RoundTrip(req)
		if err != nil {
			lastErr = err
			if req.Context().Err() != nil {
				return nil, err
			}
			continue
		}

		if !retriableStatus(resp.StatusCode) || attempt == t.maxRetries {
			return resp, nil
		}

		t.logger.Warn().
			Int("status", resp.StatusCode).
			Int("attempt", attempt+1).
			Str("url", req.URL.Path).
			Msg("retrying repository request")
		resp.Body.Close()
		lastErr = fmt.Errorf("repository returned status %d", resp.StatusCode)
	}

	return nil, lastErr
}

func retriableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
