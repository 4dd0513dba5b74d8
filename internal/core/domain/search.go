package domain

const (
	// DefaultTopK is used when a caller or the model omits top_k
	DefaultTopK = 10

	// MaxTopK caps a single semantic query
	MaxTopK = 100
)

// SearchHit is one normalized semantic search match
type SearchHit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"` // Higher is more relevant; range depends on the embedding model
	Text  string  `json:"text"`
}

// SearchQuery describes a semantic query against one index namespace
type SearchQuery struct {
	Text      string `json:"query_text"`
	Namespace string `json:"namespace"`
	TopK      int    `json:"top_k"`
}

// NormalizeTopK clamps k into [1, MaxTopK], defaulting non-positive values
func NormalizeTopK(k int) int {
	if k < 1 {
		return DefaultTopK
	}
	if k > MaxTopK {
		return MaxTopK
	}
	return k
}
