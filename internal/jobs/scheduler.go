package jobs

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"
	"time"

	"github.com/vrsandeep/webpress/internal/converter"
	"github.com/vrsandeep/webpress/internal/events"
	"github.com/vrsandeep/webpress/internal/logging"
	"github.com/vrsandeep/webpress/internal/models"
	"github.com/vrsandeep/webpress/internal/progress"
)

// ErrCancelled is the error of items that did not finish before their batch was cancelled.
var ErrCancelled = errors.New("cancelled")

// Logger is the log sink used for diagnostics. *logging.Buffer implements it.
type Logger interface {
	Logf(format string, args ...any)
}

// Scheduler converts the jobs of a Plan on a bounded pool of goroutines,
// updating the shared progress state and pushing events to the queue.
type Scheduler struct {
	state   *progress.State
	queue   *events.Queue
	logger  Logger
	workers int
}

// NewScheduler creates a scheduler. workers <= 0 uses one worker per CPU.
func NewScheduler(state *progress.State, queue *events.Queue, logger Logger, workers int) *Scheduler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Scheduler{state: state, queue: queue, logger: logger, workers: workers}
}

// Prepare replaces the shared state with the records of plan, so readers
// see the new batch at (N, 0) before any worker starts.
func (s *Scheduler) Prepare(plan *Plan) {
	if len(plan.Jobs) == 0 {
		s.state.Reset(plan.ID, nil, "No input files selected")
		return
	}
	s.state.Reset(plan.ID, plan.Records, "Starting conversion...")
}

// Run converts every job of plan and returns once all of them reached a
// terminal status and BatchCompleted was pushed. Cancelling ctx makes the
// remaining jobs fail at their next step boundary; they are still reported.
// The state is prepared first unless Prepare was already called for plan.
// Only one Run may use a scheduler's state at a time; Manager ensures that.
func (s *Scheduler) Run(ctx context.Context, plan *Plan) {
	s.logger.Logf("Starting conversion of batch %s", plan.ID)
	s.logger.Logf("%s", logging.MemoryUsage())
	if s.state.BatchID() != plan.ID {
		s.Prepare(plan)
	}

	if len(plan.Jobs) == 0 {
		s.logger.Logf("No input files selected")
		s.queue.Push(events.BatchCompleted{BatchID: plan.ID, Cancelled: ctx.Err() != nil})
		return
	}

	total := len(plan.Jobs)
	s.logger.Logf("Total files to process: %d", total)

	workers := s.workers
	if plan.Options.Workers > 0 {
		workers = plan.Options.Workers
	}
	workers = min(workers, total)
	s.logger.Logf("Starting %d workers", workers)

	start := time.Now()
	jobCh := make(chan models.Job)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for job := range jobCh {
				s.process(ctx, plan.ID, workerID, job)
			}
		}(i + 1)
	}

	// Every job is dispatched even after cancellation so each one still
	// reaches a terminal status.
	for _, job := range plan.Jobs {
		jobCh <- job
	}
	close(jobCh)
	wg.Wait()

	original, compressed := s.state.Totals()
	s.queue.Push(events.AggregateTotals{BatchID: plan.ID, TotalOriginal: original, TotalCompressed: compressed})

	cancelled := ctx.Err() != nil
	if cancelled {
		s.state.SetStatusText("Conversion cancelled.")
	} else {
		s.state.SetStatusText("Conversion complete!")
	}
	s.queue.Push(events.BatchCompleted{BatchID: plan.ID, Cancelled: cancelled})

	s.logger.Logf("Conversion process completed in %v", time.Since(start))
	s.logger.Logf("%s", logging.MemoryUsage())
}

// process drives one job through its whole lifecycle. It never panics and
// always finishes the job exactly once.
func (s *Scheduler) process(ctx context.Context, batchID string, workerID int, job models.Job) {
	if err := s.state.Begin(job.Index); err != nil {
		s.logger.Logf("Worker %d: cannot start item %d: %v", workerID, job.Index, err)
		s.queue.Push(events.StatusChanged{BatchID: batchID, Index: job.Index, Status: models.StatusFailed, Error: err.Error()})
		return
	}
	s.queue.Push(events.StatusChanged{BatchID: batchID, Index: job.Index, Status: models.StatusProcessing})
	s.logger.Logf("Worker %d: processing file: %s", workerID, job.SourcePath)

	out := s.convert(ctx, job)

	agg, rec, err := s.state.Finish(job.Index, out)
	if err != nil {
		s.logger.Logf("Worker %d: cannot finish item %d: %v", workerID, job.Index, err)
		s.queue.Push(events.StatusChanged{BatchID: batchID, Index: job.Index, Status: models.StatusFailed, Error: err.Error()})
		return
	}

	if out.Err == nil {
		s.queue.Push(events.ItemUpdated{
			BatchID:          batchID,
			Index:            job.Index,
			CompressedSize:   *rec.CompressedSize,
			CompressionRatio: *rec.CompressionRatio,
		})
		s.logger.Logf("Saved %s (%d -> %d bytes, %.1f%% smaller)",
			job.DestinationPath, rec.OriginalSize, *rec.CompressedSize, *rec.CompressionRatio*100)
	} else {
		s.logger.Logf("Failed %s: %v", job.SourcePath, out.Err)
	}
	s.queue.Push(events.StatusChanged{BatchID: batchID, Index: job.Index, Status: rec.Status, Error: rec.Error})
	s.queue.Push(events.Progress{BatchID: batchID, Completed: agg.Completed, Total: agg.Total})
	s.logger.Logf("%s", agg.StatusText)
}

// convert runs decode, resize, encode and write, checking for cancellation
// between steps. A panic in any step is turned into a failed outcome.
func (s *Scheduler) convert(ctx context.Context, job models.Job) (out progress.Outcome) {
	timings := make(map[string]time.Duration, 4)
	out.Timings = timings

	defer func() {
		if r := recover(); r != nil {
			s.logger.Logf("Conversion of %s panicked: %v", job.SourcePath, r)
			out = progress.Outcome{Err: fmt.Errorf("conversion panicked: %v", r), Timings: timings}
		}
	}()

	if err := ctx.Err(); err != nil {
		return fail(out, ErrCancelled)
	}
	img, d, err := converter.MeasureErr(func() (image.Image, error) {
		return converter.Decode(job.SourcePath)
	})
	timings["decode"] = d
	if err != nil {
		return fail(out, err)
	}
	s.logger.Logf("Loading image %s took %v", job.SourcePath, d)

	if job.Resize != nil {
		if err := ctx.Err(); err != nil {
			return fail(out, ErrCancelled)
		}
		img, d = converter.Measure(func() image.Image {
			return converter.Resize(img, job.Resize.Width, job.Resize.Height)
		})
		timings["resize"] = d
		s.logger.Logf("Resizing image to %dx%d took %v", job.Resize.Width, job.Resize.Height, d)
	}

	if err := ctx.Err(); err != nil {
		return fail(out, ErrCancelled)
	}
	data, d, err := converter.MeasureErr(func() ([]byte, error) {
		return converter.EncodeWebP(img, job.Quality)
	})
	timings["encode"] = d
	if err != nil {
		return fail(out, err)
	}
	s.logger.Logf("Encoding to WebP at quality %d took %v", job.Quality, d)

	if err := ctx.Err(); err != nil {
		return fail(out, ErrCancelled)
	}
	err, d = converter.Measure(func() error {
		return converter.Write(data, job.DestinationPath)
	})
	timings["write"] = d
	if err != nil {
		return fail(out, err)
	}
	s.logger.Logf("Saving WebP file %s took %v", job.DestinationPath, d)

	original, err := converter.FileSize(job.SourcePath)
	if err != nil {
		return fail(out, err)
	}
	compressed, err := converter.FileSize(job.DestinationPath)
	if err != nil {
		return fail(out, err)
	}
	out.OriginalSize = original
	out.CompressedSize = compressed
	out.OutputPath = job.DestinationPath
	return out
}

func fail(out progress.Outcome, err error) progress.Outcome {
	out.Err = err
	return out
}
