package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/searchforge/searchforge/internal/degrade"
	"github.com/searchforge/searchforge/internal/model"
	"github.com/searchforge/searchforge/internal/repo"
)

const (
	defaultLimit       = 20
	minCandidateFetch  = 100
	candidateFetchMult = 2
)

// ItemSearchStore is the candidate-retrieval contract the searcher needs
// from the item store.
type ItemSearchStore interface {
	TextSearch(ctx context.Context, serverID, indexID, language, query string, limit int) ([]repo.TextHit, error)
	VectorSearch(ctx context.Context, serverID, indexID string, vec []float32, minSimilarity float64, limit int) ([]repo.VectorHit, error)
}

type Weights struct {
	Text      float64
	Vector    float64
	Threshold float64
}

// Searcher turns a search request into one ranked result set, fusing
// full-text rank with vector similarity. A failing embedding path always
// degrades to text-only; it never surfaces to the caller.
type Searcher struct {
	items    ItemSearchStore
	embedder Embedder
	defaults Weights
}

func NewSearcher(items ItemSearchStore, embedder Embedder, defaults Weights) *Searcher {
	if defaults.Text <= 0 {
		defaults.Text = 0.7
	}
	if defaults.Vector <= 0 {
		defaults.Vector = 0.3
	}
	if defaults.Threshold <= 0 {
		defaults.Threshold = 0.6
	}
	return &Searcher{items: items, embedder: embedder, defaults: defaults}
}

func (s *Searcher) Search(ctx context.Context, req *model.SearchRequest) ([]model.SearchResult, error) {
	if req.Query == "" {
		return []model.SearchResult{}, nil
	}
	mode := req.Mode
	if mode == "" {
		mode = model.SearchModeHybrid
	}
	switch mode {
	case model.SearchModeText:
		return s.textOnly(ctx, req)
	case model.SearchModeVector:
		return s.vectorOnly(ctx, req)
	case model.SearchModeHybrid:
		return s.hybrid(ctx, req)
	default:
		return nil, fmt.Errorf("unknown search mode: %s", mode)
	}
}

func (s *Searcher) textOnly(ctx context.Context, req *model.SearchRequest) ([]model.SearchResult, error) {
	limit, offset := pageOf(req)
	hits, err := s.items.TextSearch(ctx, req.ServerID, req.IndexID, req.Language, req.Query, limit+offset)
	if err != nil {
		return nil, degrade.Classify(err)
	}
	results := make([]model.SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, model.SearchResult{
			ItemID:   hit.ItemID,
			TextRank: hit.Rank,
			Score:    hit.Rank,
		})
	}
	return paginate(results, limit, offset), nil
}

func (s *Searcher) vectorOnly(ctx context.Context, req *model.SearchRequest) ([]model.SearchResult, error) {
	vec, ok := s.queryEmbedding(ctx, req.Query)
	if !ok {
		return s.textOnly(ctx, req)
	}
	weights := s.weightsOf(req)
	limit, offset := pageOf(req)
	hits, err := s.items.VectorSearch(ctx, req.ServerID, req.IndexID, vec, weights.Threshold, limit+offset)
	if err != nil {
		ev := degrade.Classify(err)
		if ev.ShouldLog {
			logutil.GetLogger(ctx).Warn("vector search failed, falling back to text", zap.Error(err))
		}
		return s.textOnly(ctx, req)
	}
	results := make([]model.SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, model.SearchResult{
			ItemID:     hit.ItemID,
			Similarity: hit.Similarity,
			Score:      hit.Similarity,
		})
	}
	return paginate(results, limit, offset), nil
}

func (s *Searcher) hybrid(ctx context.Context, req *model.SearchRequest) ([]model.SearchResult, error) {
	vec, ok := s.queryEmbedding(ctx, req.Query)
	if !ok {
		return s.textOnly(ctx, req)
	}
	weights := s.weightsOf(req)
	limit, offset := pageOf(req)
	fetch := (limit + offset) * candidateFetchMult
	if fetch < minCandidateFetch {
		fetch = minCandidateFetch
	}

	textHits, err := s.items.TextSearch(ctx, req.ServerID, req.IndexID, req.Language, req.Query, fetch)
	if err != nil {
		return nil, degrade.Classify(err)
	}
	// Vector candidates are fetched unthresholded here: a row below the
	// threshold can still qualify through its text match.
	vecHits, err := s.items.VectorSearch(ctx, req.ServerID, req.IndexID, vec, 0, fetch)
	if err != nil {
		ev := degrade.Classify(err)
		if ev.ShouldLog {
			logutil.GetLogger(ctx).Warn("vector search failed, falling back to text", zap.Error(err))
		}
		return s.textOnly(ctx, req)
	}

	results := fuseCandidates(textHits, vecHits, weights)
	return paginate(results, limit, offset), nil
}

// queryEmbedding generates the query vector synchronously; queries are never
// deferred to the queue. Any failure is a vector degradation, absorbed here.
func (s *Searcher) queryEmbedding(ctx context.Context, query string) ([]float32, bool) {
	if s.embedder == nil {
		return nil, false
	}
	vec, err := s.embedder.Embed(ctx, query, taskQuery)
	if err != nil {
		ev := degrade.Classify(err)
		if ev.ShouldLog {
			logutil.GetLogger(ctx).Warn("query embedding failed",
				zap.String("kind", string(ev.Kind)),
				zap.Error(err),
			)
		}
		return nil, false
	}
	if len(vec) == 0 {
		return nil, false
	}
	return vec, true
}

// fuseCandidates merges both candidate sets and scores each row:
// both arms present -> text_weight*rank + vector_weight*similarity;
// vector arm alone needs similarity >= threshold; text arm alone always
// qualifies. Ties break on ascending item id so pagination stays stable.
func fuseCandidates(textHits []repo.TextHit, vecHits []repo.VectorHit, w Weights) []model.SearchResult {
	type candidate struct {
		textRank   float64
		similarity float64
		hasText    bool
		hasVector  bool
	}
	merged := make(map[string]*candidate, len(textHits)+len(vecHits))
	for _, hit := range textHits {
		merged[hit.ItemID] = &candidate{textRank: hit.Rank, hasText: true}
	}
	for _, hit := range vecHits {
		c, ok := merged[hit.ItemID]
		if !ok {
			c = &candidate{}
			merged[hit.ItemID] = c
		}
		c.similarity = hit.Similarity
		c.hasVector = true
	}

	results := make([]model.SearchResult, 0, len(merged))
	for itemID, c := range merged {
		score, ok := fuseScore(c.textRank, c.similarity, c.hasText, c.hasVector, w)
		if !ok {
			continue
		}
		results = append(results, model.SearchResult{
			ItemID:     itemID,
			TextRank:   c.textRank,
			Similarity: c.similarity,
			Score:      score,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ItemID < results[j].ItemID
	})
	return results
}

func fuseScore(textRank, similarity float64, hasText, hasVector bool, w Weights) (float64, bool) {
	switch {
	case hasText && hasVector:
		return w.Text*textRank + w.Vector*similarity, true
	case hasVector:
		if similarity < w.Threshold {
			return 0, false
		}
		return w.Vector * similarity, true
	case hasText:
		return w.Text * textRank, true
	default:
		return 0, false
	}
}

func (s *Searcher) weightsOf(req *model.SearchRequest) Weights {
	w := s.defaults
	if req.TextWeight > 0 {
		w.Text = req.TextWeight
	}
	if req.VectorWeight > 0 {
		w.Vector = req.VectorWeight
	}
	if req.SimilarityThreshold > 0 {
		w.Threshold = req.SimilarityThreshold
	}
	return w
}

func pageOf(req *model.SearchRequest) (int, int) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func paginate(results []model.SearchResult, limit, offset int) []model.SearchResult {
	if offset >= len(results) {
		return []model.SearchResult{}
	}
	results = results[offset:]
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
