package model

type CacheEntry struct {
	Hash         string    `json:"hash"`
	Vector       []float32 `json:"vector"`
	CreatedAt    int64     `json:"created_at"`
	LastAccessed int64     `json:"last_accessed"`
	ExpiresAt    int64     `json:"expires_at"`
	HitCount     int64     `json:"hit_count"`
}

type CacheStats struct {
	Entries  int64 `json:"entries"`
	Expired  int64 `json:"expired"`
	TotalHit int64 `json:"total_hit"`
}
