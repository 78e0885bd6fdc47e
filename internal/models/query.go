package models

import "fmt"

// SearchMode selects how memories are matched and ranked.
type SearchMode string

const (
	// ModeSemantic ranks purely by cosine similarity to the query embedding.
	ModeSemantic SearchMode = "semantic"
	// ModeHybrid blends semantic similarity with normalized lexical rank.
	ModeHybrid SearchMode = "hybrid"
	// ModeKeyword uses the lexical index only.
	ModeKeyword SearchMode = "keyword"
)

// SearchRequest represents a search over stored memories.
type SearchRequest struct {
	Query          string     `json:"query"`
	Mode           SearchMode `json:"mode,omitempty"`
	Limit          int        `json:"limit,omitempty"`
	MinSimilarity  float64    `json:"min_similarity,omitempty"`
	Category       string     `json:"category,omitempty"`
	TextWeight     *float64   `json:"text_weight,omitempty"`
	SemanticWeight *float64   `json:"semantic_weight,omitempty"`
	BoostRecent    *bool      `json:"boost_recent,omitempty"`
}

// Validate checks the request and normalizes defaults in place.
// Returns an error if the query is empty or the mode is unknown.
func (r *SearchRequest) Validate() error {
	if r.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	switch r.Mode {
	case "":
		r.Mode = ModeHybrid
	case ModeSemantic, ModeHybrid, ModeKeyword:
	default:
		return fmt.Errorf("unknown search mode: %q", r.Mode)
	}
	if r.Limit <= 0 {
		r.Limit = 10
	}
	if r.Limit > 100 {
		r.Limit = 100
	}
	if r.TextWeight != nil && *r.TextWeight < 0 {
		return fmt.Errorf("text_weight must be non-negative")
	}
	if r.SemanticWeight != nil && *r.SemanticWeight < 0 {
		return fmt.Errorf("semantic_weight must be non-negative")
	}
	return nil
}
