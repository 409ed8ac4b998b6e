package model

// Field is a single named value of an item submitted for indexing. Only
// searchable fields contribute to the text blob and the embedding input.
type Field struct {
	Name       string `json:"name"`
	Value      string `json:"value"`
	Searchable bool   `json:"searchable"`
}

type Item struct {
	ServerID  string    `json:"server_id"`
	IndexID   string    `json:"index_id"`
	ItemID    string    `json:"item_id"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding,omitempty"`
	Mtime     int64     `json:"mtime"`
}
