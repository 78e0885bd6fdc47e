package models

// SearchResult is a single ranked memory hit.
type SearchResult struct {
	Memory *Memory `json:"memory"`
	// Similarity is the cosine similarity to the query embedding, in [-1, 1].
	// Zero when semantic scoring was unavailable for this result.
	Similarity float64 `json:"similarity"`
	// TextScore is the normalized lexical rank score in [0, 1].
	TextScore float64 `json:"text_score,omitempty"`
	// CombinedScore is the weighted blend used for hybrid ordering.
	CombinedScore float64 `json:"combined_score"`
	// Vector is the stored embedding, included only when requested.
	Vector []float32 `json:"vector,omitempty"`
}

// SearchResponse is the result set for a search request.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	Mode      SearchMode      `json:"mode"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query"`
	// Degraded is true when hybrid search fell back to lexical-only results
	// because the embedding provider was unavailable.
	Degraded bool `json:"degraded,omitempty"`
}

// Cluster is a group of mutually similar memories.
type Cluster struct {
	Members []*SearchResult `json:"members"`
	// AvgSimilarity is the mean of the similarities recorded when each member
	// joined the cluster; the seed contributes 1.0.
	AvgSimilarity float64 `json:"avg_similarity"`
}
