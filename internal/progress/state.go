// Package progress holds the state shared between conversion workers and the
// consumer that renders it: the aggregate counters, one result record per
// job and the set of items currently being converted.
package progress

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vrsandeep/webpress/internal/models"
)

var (
	// ErrUnknownIndex is returned for an index outside the current batch.
	ErrUnknownIndex = errors.New("no result record at index")
	// ErrInvalidTransition is returned when a record would leave the
	// loaded -> processing -> succeeded|failed order.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Aggregate is the batch-wide counter. 0 <= Completed <= Total.
type Aggregate struct {
	Total      int    `json:"total"`
	Completed  int    `json:"completed"`
	StatusText string `json:"status_text"`
}

// Outcome is what a worker reports when it finishes one item.
type Outcome struct {
	Err            error
	OriginalSize   int64
	CompressedSize int64
	OutputPath     string
	Timings        map[string]time.Duration
}

// Ratio returns the fraction of bytes removed, 1 - compressed/original.
// It is negative when the output is larger than the input.
func (o Outcome) Ratio() float64 {
	return CompressionRatio(o.OriginalSize, o.CompressedSize)
}

// CompressionRatio returns 1 - compressed/original, or 0 for an empty original.
func CompressionRatio(original, compressed int64) float64 {
	if original <= 0 {
		return 0
	}
	return 1 - float64(compressed)/float64(original)
}

// Snapshot is a point-in-time copy of State that callers may keep.
type Snapshot struct {
	BatchID         string                `json:"batch_id"`
	Aggregate       Aggregate             `json:"aggregate"`
	Records         []models.ResultRecord `json:"records"`
	Active          []int                 `json:"active"`
	TotalOriginal   int64                 `json:"total_original"`
	TotalCompressed int64                 `json:"total_compressed"`
}

// State is guarded by a single mutex. Methods hold it only for the
// duration of the read or update; callers publish events after they return.
type State struct {
	mu      sync.Mutex
	batchID string
	agg     Aggregate
	records []models.ResultRecord
	active  map[int]struct{}
}

func NewState() *State {
	return &State{active: make(map[int]struct{})}
}

// Reset replaces the whole batch: records from a previous batch are dropped,
// the aggregate becomes (len(records), 0).
func (s *State) Reset(batchID string, records []models.ResultRecord, statusText string) {
	recs := make([]models.ResultRecord, len(records))
	for i, r := range records {
		recs[i] = r.Clone()
		recs[i].Status = models.StatusLoaded
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchID = batchID
	s.records = recs
	s.agg = Aggregate{Total: len(recs), StatusText: statusText}
	s.active = make(map[int]struct{})
}

// BatchID returns the ID of the batch the state was last reset for.
func (s *State) BatchID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batchID
}

// Begin moves the record at index to processing and marks it active.
func (s *State) Begin(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.recordLocked(index)
	if err != nil {
		return err
	}
	if !rec.Status.CanAdvanceTo(models.StatusProcessing) {
		return fmt.Errorf("%w: %s -> %s at index %d", ErrInvalidTransition, rec.Status, models.StatusProcessing, index)
	}
	rec.Status = models.StatusProcessing
	s.active[index] = struct{}{}
	return nil
}

// Finish records the terminal outcome of index, counts it as completed and
// clears its active marker. It returns the resulting aggregate and the
// updated record. Finishing an index twice is an error and is not counted.
func (s *State) Finish(index int, out Outcome) (Aggregate, models.ResultRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.recordLocked(index)
	if err != nil {
		return s.agg, models.ResultRecord{}, err
	}

	next := models.StatusSucceeded
	if out.Err != nil {
		next = models.StatusFailed
	}
	if !rec.Status.CanAdvanceTo(next) {
		return s.agg, rec.Clone(), fmt.Errorf("%w: %s -> %s at index %d", ErrInvalidTransition, rec.Status, next, index)
	}

	rec.Status = next
	rec.Timings = out.Timings
	if out.Err != nil {
		rec.Error = out.Err.Error()
	} else {
		compressed := out.CompressedSize
		ratio := out.Ratio()
		rec.OriginalSize = out.OriginalSize
		rec.CompressedSize = &compressed
		rec.CompressionRatio = &ratio
		rec.OutputPath = out.OutputPath
	}

	if s.agg.Completed < s.agg.Total {
		s.agg.Completed++
	}
	s.agg.StatusText = fmt.Sprintf("Converting image %d of %d", s.agg.Completed, s.agg.Total)
	delete(s.active, index)
	return s.agg, rec.Clone(), nil
}

// SetStatusText replaces the human readable summary.
func (s *State) SetStatusText(text string) {
	s.mu.Lock()
	s.agg.StatusText = text
	s.mu.Unlock()
}

// Aggregate returns the current counters.
func (s *State) Aggregate() Aggregate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agg
}

// Record returns a copy of the record at index.
func (s *State) Record(index int) (models.ResultRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.recordLocked(index)
	if err != nil {
		return models.ResultRecord{}, false
	}
	return rec.Clone(), true
}

// Totals sums original and compressed sizes over succeeded records only.
func (s *State) Totals() (original, compressed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalsLocked()
}

// Snapshot copies the whole state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		BatchID:   s.batchID,
		Aggregate: s.agg,
		Records:   make([]models.ResultRecord, len(s.records)),
		Active:    make([]int, 0, len(s.active)),
	}
	for i, r := range s.records {
		snap.Records[i] = r.Clone()
	}
	for idx := range s.active {
		snap.Active = append(snap.Active, idx)
	}
	sort.Ints(snap.Active)
	snap.TotalOriginal, snap.TotalCompressed = s.totalsLocked()
	return snap
}

func (s *State) recordLocked(index int) (*models.ResultRecord, error) {
	if index < 0 || index >= len(s.records) {
		return nil, fmt.Errorf("%w %d", ErrUnknownIndex, index)
	}
	return &s.records[index], nil
}

func (s *State) totalsLocked() (original, compressed int64) {
	for _, r := range s.records {
		if r.Status != models.StatusSucceeded || r.CompressedSize == nil {
			continue
		}
		original += r.OriginalSize
		compressed += *r.CompressedSize
	}
	return original, compressed
}
