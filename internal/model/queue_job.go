package model

const (
	OpGenerateSingle       = "generate_single"
	OpGenerateBatch        = "generate_batch"
	OpRegenerateIndexRange = "regenerate_index_range"
)

// QueuePayload carries the operation-specific fields of a queue job. Single
// jobs use ItemID+Text, batch jobs use Items, regeneration jobs use
// BatchSize+Offset.
type QueuePayload struct {
	ItemID    string            `json:"item_id,omitempty"`
	Text      string            `json:"text,omitempty"`
	Items     map[string]string `json:"items,omitempty"`
	BatchSize int               `json:"batch_size,omitempty"`
	Offset    int               `json:"offset,omitempty"`
}

type QueueJob struct {
	ID           int64        `json:"id"`
	Operation    string       `json:"operation"`
	ServerID     string       `json:"server_id"`
	IndexID      string       `json:"index_id"`
	Payload      QueuePayload `json:"payload"`
	Priority     int          `json:"priority"`
	EnqueuedAt   int64        `json:"enqueued_at"`
	Attempts     int          `json:"attempts,omitempty"`
	ClaimedBy    string       `json:"claimed_by,omitempty"`
	ClaimedUntil int64        `json:"claimed_until,omitempty"`
}

type QueueStats struct {
	Depth       int64            `json:"depth"`
	ByPriority  map[string]int64 `json:"by_priority"`
	ByOperation map[string]int64 `json:"by_operation"`
}
