package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vrsandeep/webpress/internal/models"
)

// ErrBatchRunning is returned by Submit while another batch is in progress.
var ErrBatchRunning = errors.New("a batch is already running")

// BatchStatus describes the most recent batch for status endpoints.
type BatchStatus struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"` // "idle", "running", "success", "cancelled", "failed"
	Message   string    `json:"message"`
	Total     int       `json:"total"`
	OutputDir string    `json:"output_dir,omitempty"`
	StartTime time.Time `json:"start_time,omitempty"`
	EndTime   time.Time `json:"end_time,omitempty"`
}

// Batch is the handle of a submitted batch.
type Batch struct {
	ID        string
	Total     int
	OutputDir string
	cancel    context.CancelFunc
	done      chan struct{}
}

// Done is closed when the batch has finished and BatchCompleted was pushed.
func (b *Batch) Done() <-chan struct{} { return b.done }

// Wait blocks until the batch has finished.
func (b *Batch) Wait() { <-b.done }

// Cancel asks the batch to stop. Items already past their last step
// boundary still complete normally.
func (b *Batch) Cancel() { b.cancel() }

// Manager runs one batch at a time in the background.
type Manager struct {
	mu      sync.Mutex
	baseCtx context.Context
	prepare func(plan *Plan)
	run     func(ctx context.Context, plan *Plan)
	logger  Logger
	current *Batch
	status  BatchStatus
	running bool
}

// NewManager creates a manager whose batches are cancelled when ctx is.
func NewManager(ctx context.Context, scheduler *Scheduler, logger Logger) *Manager {
	return &Manager{
		baseCtx: ctx,
		prepare: scheduler.Prepare,
		run:     scheduler.Run,
		logger:  logger,
		status:  BatchStatus{Status: "idle"},
	}
}

// Submit plans a batch and starts converting it on a new goroutine. It
// returns ErrBatchRunning while a previous batch is still in progress.
func (m *Manager) Submit(inputs []string, opts models.Options) (*Batch, error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil, ErrBatchRunning
	}

	plan, err := NewPlan(uuid.NewString(), inputs, opts)
	if err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("plan batch: %w", err)
	}

	ctx, cancel := context.WithCancel(m.baseCtx)
	batch := &Batch{
		ID:        plan.ID,
		Total:     len(plan.Jobs),
		OutputDir: plan.OutputDir,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	// Pollers must never see the new batch ID next to the previous records.
	m.prepare(plan)
	m.running = true
	m.current = batch
	m.status = BatchStatus{
		ID:        plan.ID,
		Status:    "running",
		Message:   "Batch started...",
		Total:     len(plan.Jobs),
		OutputDir: plan.OutputDir,
		StartTime: time.Now(),
	}
	m.mu.Unlock()

	log.Printf("Starting batch %s with %d file(s)", plan.ID, len(plan.Jobs))
	go func() {
		status := "success"
		message := "Batch completed successfully."
		defer func() {
			// The scheduler recovers per item; this only guards the batch loop itself.
			if r := recover(); r != nil {
				log.Printf("Batch '%s' panicked: %v", plan.ID, r)
				status = "failed"
				message = fmt.Sprintf("Batch panicked: %v", r)
			}

			m.mu.Lock()
			m.status.Status = status
			m.status.Message = message
			m.status.EndTime = time.Now()
			m.running = false
			m.mu.Unlock()

			cancel()
			close(batch.done)
			log.Printf("Finished batch: %s (%s)", plan.ID, status)
		}()

		m.run(ctx, plan)
		if ctx.Err() != nil {
			status = "cancelled"
			message = "Batch cancelled."
		}
	}()

	return batch, nil
}

// Cancel cancels the running batch. It reports false when nothing is running.
func (m *Manager) Cancel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || m.current == nil {
		return false
	}
	m.current.Cancel()
	m.logger.Logf("Cancellation requested for batch %s", m.current.ID)
	return true
}

// Current returns the handle of the most recent batch, or nil.
func (m *Manager) Current() *Batch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Running reports whether a batch is in progress.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Status returns a copy of the most recent batch status.
func (m *Manager) Status() BatchStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}
