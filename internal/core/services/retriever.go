package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/persona-core/internal/core/domain"
	"github.com/custodia-labs/persona-core/internal/core/ports/driven"
	"github.com/custodia-labs/persona-core/internal/core/ports/driving"
)

// Ensure retriever implements RetrievalService
var _ driving.RetrievalService = (*retriever)(nil)

const defaultCacheTTL = 5 * time.Minute

// RetrieverConfig holds configuration for the retriever
type RetrieverConfig struct {
	Index     driven.VectorIndex
	Cache     driven.HitCache // Optional
	CacheTTL  time.Duration
	TextField string // Record field holding the post text (default chunk_text)
	Logger    *slog.Logger
}

// retriever runs semantic queries and normalizes the raw hits
type retriever struct {
	index     driven.VectorIndex
	cache     driven.HitCache
	cacheTTL  time.Duration
	textField string
	logger    *slog.Logger
}

// NewRetriever creates a new RetrievalService
func NewRetriever(cfg RetrieverConfig) driving.RetrievalService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	textField := cfg.TextField
	if textField == "" {
		textField = domain.DefaultIndexSpec().TextField
	}

	return &retriever{
		index:     cfg.Index,
		cache:     cfg.Cache,
		cacheTTL:  ttl,
		textField: textField,
		logger:    logger,
	}
}

// Search returns up to TopK hits for the query. It never fails: transport errors,
// malformed responses and a missing index all yield an empty list.
func (r *retriever) Search(ctx context.Context, handle *domain.IndexHandle, query domain.SearchQuery) []domain.SearchHit {
	if strings.TrimSpace(query.Text) == "" {
		return []domain.SearchHit{}
	}
	if handle == nil {
		r.logger.Warn("search skipped, no index available", "query", query.Text)
		return []domain.SearchHit{}
	}
	query.TopK = domain.NormalizeTopK(query.TopK)

	key := cacheKey(handle.Name, query)
	if r.cache != nil {
		hits, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			r.logger.Warn("hit cache read failed", "error", err)
		} else if ok {
			return hits
		}
	}

	start := time.Now()
	resp, err := r.index.Search(ctx, handle, query, []string{r.textField})
	if err != nil {
		r.logger.Error("vector search failed",
			"index", handle.Name,
			"namespace", query.Namespace,
			"error", err,
		)
		return []domain.SearchHit{}
	}

	hits := r.normalize(resp)
	r.logger.Debug("vector search",
		"index", handle.Name,
		"namespace", query.Namespace,
		"top_k", query.TopK,
		"hits", len(hits),
		"took", time.Since(start),
	)

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, hits, r.cacheTTL); err != nil {
			r.logger.Warn("hit cache write failed", "error", err)
		}
	}
	return hits
}

// normalize maps raw service hits to {id, score, text}
func (r *retriever) normalize(resp *driven.RawSearchResponse) []domain.SearchHit {
	if resp == nil || resp.Result == nil {
		return []domain.SearchHit{}
	}

	hits := make([]domain.SearchHit, 0, len(resp.Result.Hits))
	for _, raw := range resp.Result.Hits {
		text, _ := raw.Fields[r.textField].(string)
		hits = append(hits, domain.SearchHit{
			ID:    raw.ID,
			Score: raw.Score,
			Text:  text,
		})
	}
	return hits
}

// cacheKey hashes everything that affects the result set
func cacheKey(index string, query domain.SearchQuery) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%d\x00%s", index, query.Namespace, query.TopK, query.Text)))
	return hex.EncodeToString(sum[:])
}
