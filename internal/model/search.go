package model

const (
	SearchModeText   = "text_only"
	SearchModeVector = "vector_only"
	SearchModeHybrid = "hybrid"
)

type SearchRequest struct {
	ServerID            string  `json:"server_id"`
	IndexID             string  `json:"index_id"`
	Query               string  `json:"query"`
	Language            string  `json:"language,omitempty"`
	Mode                string  `json:"mode,omitempty"`
	TextWeight          float64 `json:"text_weight,omitempty"`
	VectorWeight        float64 `json:"vector_weight,omitempty"`
	SimilarityThreshold float64 `json:"similarity_threshold,omitempty"`
	Limit               int     `json:"limit,omitempty"`
	Offset              int     `json:"offset,omitempty"`
}

type SearchResult struct {
	ItemID     string  `json:"item_id"`
	TextRank   float64 `json:"text_rank"`
	Similarity float64 `json:"similarity"`
	Score      float64 `json:"score"`
}
