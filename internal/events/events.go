// Package events carries progress and result notifications from conversion
// workers to a single consumer. Producers never block; the consumer polls.
package events

import "github.com/vrsandeep/webpress/internal/models"

type Kind string

const (
	KindProgress        Kind = "progress"
	KindItemUpdated     Kind = "item_updated"
	KindStatusChanged   Kind = "status_changed"
	KindAggregateTotals Kind = "aggregate_totals"
	KindBatchCompleted  Kind = "batch_completed"
)

// Event is implemented by every notification type below.
type Event interface {
	Kind() Kind
	Batch() string
}

// Progress reports the aggregate counter after one item finished.
type Progress struct {
	BatchID   string
	Completed int
	Total     int
}

// ItemUpdated reports the output size of a successfully converted item.
type ItemUpdated struct {
	BatchID          string
	Index            int
	CompressedSize   int64
	CompressionRatio float64
}

// StatusChanged reports a status transition of one item.
type StatusChanged struct {
	BatchID string
	Index   int
	Status  models.Status
	Error   string
}

// AggregateTotals reports byte totals over the succeeded items of a batch.
type AggregateTotals struct {
	BatchID         string
	TotalOriginal   int64
	TotalCompressed int64
}

// BatchCompleted is the last event of a batch.
type BatchCompleted struct {
	BatchID   string
	Cancelled bool
}

func (Progress) Kind() Kind        { return KindProgress }
func (ItemUpdated) Kind() Kind     { return KindItemUpdated }
func (StatusChanged) Kind() Kind   { return KindStatusChanged }
func (AggregateTotals) Kind() Kind { return KindAggregateTotals }
func (BatchCompleted) Kind() Kind  { return KindBatchCompleted }

func (e Progress) Batch() string        { return e.BatchID }
func (e ItemUpdated) Batch() string     { return e.BatchID }
func (e StatusChanged) Batch() string   { return e.BatchID }
func (e AggregateTotals) Batch() string { return e.BatchID }
func (e BatchCompleted) Batch() string  { return e.BatchID }

// ToUpdate converts an event into its JSON wire form.
func ToUpdate(e Event) models.ProgressUpdate {
	u := models.ProgressUpdate{BatchID: e.Batch(), Type: string(e.Kind())}
	switch ev := e.(type) {
	case Progress:
		u.Completed = ev.Completed
		u.Total = ev.Total
		if ev.Total > 0 {
			u.Progress = float64(ev.Completed) / float64(ev.Total) * 100
		}
	case ItemUpdated:
		u.Index = &ev.Index
		u.CompressedSize = ev.CompressedSize
		u.CompressionRatio = ev.CompressionRatio
	case StatusChanged:
		u.Index = &ev.Index
		u.Status = ev.Status
		u.Error = ev.Error
	case AggregateTotals:
		u.TotalOriginal = ev.TotalOriginal
		u.TotalCompressed = ev.TotalCompressed
	case BatchCompleted:
		u.Progress = 100
		u.Done = true
		u.Message = "Conversion complete!"
		if ev.Cancelled {
			u.Message = "Conversion cancelled."
		}
	}
	return u
}
