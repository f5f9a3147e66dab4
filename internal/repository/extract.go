package repository

import (
	"encoding/json"
	"fmt"
	"strings"

	"horse.fit/dupscan/internal/metadata"
)

// edu-sharing property keys carrying the searchable metadata. Later keys
// in each chain are fallbacks for records that predate the LOM mapping.
var (
	titleProperties       = []string{"cclom:title", "cm:name", "cm:title"}
	descriptionProperties = []string{"cclom:general_description", "cm:description"}
	keywordProperty       = "cclom:general_keyword"
	urlProperties         = []string{"ccm:wwwurl", "cclom:location"}
)

// NodeMetadata is one repository node reduced to its id and searchable
// metadata.
type NodeMetadata struct {
	ID       string
	Metadata metadata.ContentMetadata
}

// Candidate converts the node into a candidate record for matching.
func (n *NodeMetadata) Candidate() metadata.CandidateRecord {
	return metadata.CandidateRecord{
		ID:          n.ID,
		Title:       n.Metadata.Title,
		Description: n.Metadata.Description,
		Keywords:    n.Metadata.Keywords,
		URL:         n.Metadata.URL,
	}
}

type rawNode struct {
	Ref struct {
		ID string `json:"id"`
	} `json:"ref"`
	Properties map[string]any `json:"properties"`
}

// parseNode extracts id and metadata from one edu-sharing node object.
// Property values arrive as scalars or lists depending on the property;
// both forms are handled.
func parseNode(raw json.RawMessage) (*NodeMetadata, error) {
	var node rawNode
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("unmarshal node: %w", err)
	}
	if node.Ref.ID == "" {
		return nil, fmt.Errorf("node without ref id")
	}

	return &NodeMetadata{
		ID: node.Ref.ID,
		Metadata: metadata.ContentMetadata{
			Title:       firstProperty(node.Properties, titleProperties),
			Description: firstProperty(node.Properties, descriptionProperties),
			Keywords:    propertyValues(node.Properties, keywordProperty),
			URL:         firstProperty(node.Properties, urlProperties),
		},
	}, nil
}

// firstProperty returns the first usable value across the fallback chain.
func firstProperty(properties map[string]any, keys []string) string {
	for _, key := range keys {
		for _, value := range propertyValues(properties, key) {
			if metadata.Text(value).Usable() {
				return value
			}
		}
	}
	return ""
}

// propertyValues normalizes a property to its string values, accepting
// both a plain string and a list of strings.
func propertyValues(properties map[string]any, key string) []string {
	raw, ok := properties[key]
	if !ok {
		return nil
	}

	switch typed := raw.(type) {
	case string:
		if strings.TrimSpace(typed) == "" {
			return nil
		}
		return []string{typed}
	case []any:
		values := make([]string, 0, len(typed))
		for _, item := range typed {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				values = append(values, s)
			}
		}
		if len(values) == 0 {
			return nil
		}
		return values
	}
	return nil
}
