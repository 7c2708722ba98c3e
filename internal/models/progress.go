package models

// ProgressUpdate is the JSON form of a conversion event, as pushed to
// websocket clients and returned by the events endpoint.
type ProgressUpdate struct {
	Seq     int64  `json:"seq"`
	BatchID string `json:"batchId"`
	Type    string `json:"type"` // progress, item_updated, status_changed, aggregate_totals, batch_completed
	Message string `json:"message,omitempty"`

	Index  *int   `json:"index,omitempty"`
	Status Status `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`

	Completed int     `json:"completed,omitempty"`
	Total     int     `json:"total,omitempty"`
	Progress  float64 `json:"progress"` // percentage, 0..100

	CompressedSize   int64   `json:"compressed_size,omitempty"`
	CompressionRatio float64 `json:"compression_ratio,omitempty"`

	TotalOriginal   int64 `json:"total_original,omitempty"`
	TotalCompressed int64 `json:"total_compressed,omitempty"`

	Done bool `json:"done"`
}
