package jobs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrsandeep/webpress/internal/events"
	"github.com/vrsandeep/webpress/internal/jobs"
	"github.com/vrsandeep/webpress/internal/logging"
	"github.com/vrsandeep/webpress/internal/models"
	"github.com/vrsandeep/webpress/internal/progress"
	"github.com/vrsandeep/webpress/internal/testutil"
)

type harness struct {
	state     *progress.State
	queue     *events.Queue
	logs      *logging.Buffer
	scheduler *jobs.Scheduler
}

func newHarness(workers int) *harness {
	h := &harness{
		state: progress.NewState(),
		queue: events.NewQueue(),
		logs:  logging.NewBuffer(0, false),
	}
	h.scheduler = jobs.NewScheduler(h.state, h.queue, h.logs, workers)
	return h
}

func (h *harness) run(t *testing.T, ctx context.Context, inputs []string, opts models.Options) (*jobs.Plan, []events.Event) {
	t.Helper()
	plan, err := jobs.NewPlan("batch-1", inputs, opts)
	require.NoError(t, err)
	h.scheduler.Run(ctx, plan)
	return plan, h.queue.Drain()
}

// checkEventContract verifies the ordering guarantees of one batch's events.
func checkEventContract(t *testing.T, evs []events.Event, n int) {
	t.Helper()
	require.NotEmpty(t, evs)

	last := evs[len(evs)-1]
	assert.Equal(t, events.KindBatchCompleted, last.Kind(), "BatchCompleted must be the last event")

	completedCount := 0
	terminal := make(map[int]int)
	processing := make(map[int]bool)
	progressSeen := make(map[int]bool)
	for i, e := range evs {
		switch ev := e.(type) {
		case events.BatchCompleted:
			completedCount++
			assert.Equal(t, len(evs)-1, i)
		case events.StatusChanged:
			switch ev.Status {
			case models.StatusProcessing:
				assert.False(t, processing[ev.Index], "item %d started twice", ev.Index)
				processing[ev.Index] = true
			case models.StatusSucceeded, models.StatusFailed:
				assert.True(t, processing[ev.Index], "item %d finished before it started", ev.Index)
				terminal[ev.Index]++
			default:
				t.Errorf("unexpected status %q", ev.Status)
			}
		case events.Progress:
			assert.Equal(t, n, ev.Total)
			assert.GreaterOrEqual(t, ev.Completed, 1)
			assert.LessOrEqual(t, ev.Completed, n)
			assert.False(t, progressSeen[ev.Completed], "completed=%d reported twice", ev.Completed)
			progressSeen[ev.Completed] = true
		}
	}
	assert.Equal(t, 1, completedCount)
	assert.Len(t, terminal, n)
	for idx, c := range terminal {
		assert.Equal(t, 1, c, "item %d must have exactly one terminal event", idx)
	}
	assert.Len(t, progressSeen, n, "every increment of completed is reported once")
}

func TestScheduler_ScenarioA_DefaultQuality(t *testing.T) {
	dir := t.TempDir()
	inputs := []string{
		testutil.CreateTestJPEG(t, dir, "one.jpg", 64, 48),
		testutil.CreateTestJPEG(t, dir, "two.jpg", 32, 32),
		testutil.CreateTestJPEG(t, dir, "three.jpg", 80, 20),
	}

	h := newHarness(2)
	plan, evs := h.run(t, context.Background(), inputs, models.Options{Quality: 10})
	checkEventContract(t, evs, 3)

	for _, job := range plan.Jobs {
		assert.Equal(t, 80, job.Quality, "quality override disabled means the default is used")
		assert.Nil(t, job.Resize)
	}

	snap := h.state.Snapshot()
	assert.Equal(t, 3, snap.Aggregate.Completed)
	assert.Equal(t, 3, snap.Aggregate.Total)
	assert.Equal(t, "Conversion complete!", snap.Aggregate.StatusText)
	assert.Empty(t, snap.Active)
	for i, rec := range snap.Records {
		assert.Equal(t, models.StatusSucceeded, rec.Status, "record %d", i)
		require.NotNil(t, rec.CompressedSize)
		require.NotNil(t, rec.CompressionRatio)

		info, err := os.Stat(rec.OutputPath)
		require.NoError(t, err)
		assert.Equal(t, info.Size(), *rec.CompressedSize)
		assert.InDelta(t, 1-float64(*rec.CompressedSize)/float64(rec.OriginalSize), *rec.CompressionRatio, 1e-9)
		assert.Contains(t, rec.Timings, "decode")
		assert.Contains(t, rec.Timings, "encode")
		assert.Contains(t, rec.Timings, "write")
		assert.NotContains(t, rec.Timings, "resize")
	}
	assert.FileExists(t, filepath.Join(dir, "one.webp"))
	assert.FileExists(t, filepath.Join(dir, "two.webp"))
	assert.FileExists(t, filepath.Join(dir, "three.webp"))

	totals, ok := evs[len(evs)-2].(events.AggregateTotals)
	require.True(t, ok, "AggregateTotals precedes BatchCompleted")
	assert.Equal(t, snap.TotalOriginal, totals.TotalOriginal)
	assert.Equal(t, snap.TotalCompressed, totals.TotalCompressed)
}

func TestScheduler_ScenarioB_MissingSource(t *testing.T) {
	dir := t.TempDir()
	inputs := []string{
		testutil.CreateTestPNG(t, dir, "ok.png", 20, 20),
		filepath.Join(dir, "missing.jpg"),
	}

	h := newHarness(4)
	_, evs := h.run(t, context.Background(), inputs, models.Options{})
	checkEventContract(t, evs, 2)

	snap := h.state.Snapshot()
	assert.Equal(t, 2, snap.Aggregate.Completed)
	assert.Equal(t, models.StatusSucceeded, snap.Records[0].Status)
	assert.Equal(t, models.StatusFailed, snap.Records[1].Status)
	assert.Contains(t, snap.Records[1].Error, "failed to load")
	assert.Nil(t, snap.Records[1].CompressedSize)
	assert.Equal(t, snap.Records[0].OriginalSize, snap.TotalOriginal, "totals include succeeded items only")

	var failedEvent *events.StatusChanged
	for _, e := range evs {
		if sc, ok := e.(events.StatusChanged); ok && sc.Status == models.StatusFailed {
			failedEvent = &sc
		}
	}
	require.NotNil(t, failedEvent)
	assert.Equal(t, 1, failedEvent.Index)
	assert.Contains(t, failedEvent.Error, "missing.jpg")
}

func TestScheduler_ScenarioC_LegacyRenameOverwrites(t *testing.T) {
	dir := t.TempDir()
	out := t.TempDir()
	inputs := []string{
		testutil.CreateTestJPEG(t, dir, "a.jpg", 40, 40),
		testutil.CreateTestJPEG(t, dir, "b.jpg", 90, 30),
	}

	h := newHarness(2)
	plan, evs := h.run(t, context.Background(), inputs, models.Options{
		OutputDir:              out,
		RenameEnabled:          true,
		OutputFilename:         "out",
		LegacyRenameCollisions: true,
	})
	checkEventContract(t, evs, 2)

	// Known hazard: both items write the same file, the last writer wins.
	assert.Equal(t, plan.Jobs[0].DestinationPath, plan.Jobs[1].DestinationPath)
	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.webp", entries[0].Name())

	f, err := os.Open(filepath.Join(out, "out.webp"))
	require.NoError(t, err)
	defer f.Close()
	cfg, err := webp.DecodeConfig(f)
	require.NoError(t, err)
	assert.Contains(t, []int{40, 90}, cfg.Width)
}

func TestScheduler_RenameIndexesMultiItemBatches(t *testing.T) {
	dir := t.TempDir()
	out := t.TempDir()
	inputs := []string{
		testutil.CreateTestJPEG(t, dir, "a.jpg", 16, 16),
		testutil.CreateTestJPEG(t, dir, "b.jpg", 16, 16),
	}

	h := newHarness(2)
	_, evs := h.run(t, context.Background(), inputs, models.Options{
		OutputDir:      out,
		RenameEnabled:  true,
		OutputFilename: "out",
	})
	checkEventContract(t, evs, 2)
	assert.FileExists(t, filepath.Join(out, "out_1.webp"))
	assert.FileExists(t, filepath.Join(out, "out_2.webp"))
	assert.NoFileExists(t, filepath.Join(out, "out.webp"))
}

func TestScheduler_ScenarioD_ResizeStretches(t *testing.T) {
	dir := t.TempDir()
	inputs := []string{testutil.CreateTestPNG(t, dir, "wide.png", 300, 120)}

	h := newHarness(1)
	_, evs := h.run(t, context.Background(), inputs, models.Options{
		ResizeEnabled:  true,
		Width:          100,
		Height:         50,
		QualityEnabled: true,
		Quality:        90,
	})
	checkEventContract(t, evs, 1)

	rec, ok := h.state.Record(0)
	require.True(t, ok)
	require.Equal(t, models.StatusSucceeded, rec.Status, rec.Error)
	assert.Contains(t, rec.Timings, "resize")

	f, err := os.Open(rec.OutputPath)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := webp.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}

func TestScheduler_EmptyBatchStillCompletes(t *testing.T) {
	h := newHarness(0)
	_, evs := h.run(t, context.Background(), nil, models.Options{})
	require.Len(t, evs, 1)
	assert.Equal(t, events.KindBatchCompleted, evs[0].Kind())
	assert.Equal(t, progress.Aggregate{StatusText: "No input files selected"}, h.state.Aggregate())
}

func TestScheduler_CancelledBatchReportsEveryItem(t *testing.T) {
	dir := t.TempDir()
	inputs := []string{
		testutil.CreateTestJPEG(t, dir, "a.jpg", 16, 16),
		testutil.CreateTestJPEG(t, dir, "b.jpg", 16, 16),
		testutil.CreateTestJPEG(t, dir, "c.jpg", 16, 16),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := newHarness(2)
	_, evs := h.run(t, ctx, inputs, models.Options{})
	checkEventContract(t, evs, 3)

	done := evs[len(evs)-1].(events.BatchCompleted)
	assert.True(t, done.Cancelled)

	snap := h.state.Snapshot()
	assert.Equal(t, 3, snap.Aggregate.Completed)
	assert.Equal(t, "Conversion cancelled.", snap.Aggregate.StatusText)
	for _, rec := range snap.Records {
		assert.Equal(t, models.StatusFailed, rec.Status)
		assert.Equal(t, jobs.ErrCancelled.Error(), rec.Error)
	}
	assert.NoFileExists(t, filepath.Join(dir, "a.webp"))
}

func TestScheduler_NotAnImageFailsOnlyThatItem(t *testing.T) {
	dir := t.TempDir()
	inputs := []string{
		testutil.CreateTextFile(t, dir, "fake.jpg", "not really a jpeg"),
		testutil.CreateTestJPEG(t, dir, "real.jpg", 24, 24),
	}

	h := newHarness(2)
	_, evs := h.run(t, context.Background(), inputs, models.Options{})
	checkEventContract(t, evs, 2)

	snap := h.state.Snapshot()
	assert.Equal(t, models.StatusFailed, snap.Records[0].Status)
	assert.Equal(t, models.StatusSucceeded, snap.Records[1].Status)
}

func TestScheduler_WriteFailureIsPerItem(t *testing.T) {
	dir := t.TempDir()
	inputs := []string{testutil.CreateTestJPEG(t, dir, "a.jpg", 24, 24)}

	h := newHarness(1)
	_, evs := h.run(t, context.Background(), inputs, models.Options{
		OutputDir: filepath.Join(dir, "does", "not", "exist"),
	})
	checkEventContract(t, evs, 1)

	rec, _ := h.state.Record(0)
	assert.Equal(t, models.StatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "failed to create")
}

func TestScheduler_ReproducibleOutputSizes(t *testing.T) {
	dir := t.TempDir()
	inputs := []string{
		testutil.CreateTestJPEG(t, dir, "a.jpg", 120, 90),
		testutil.CreateTestPNG(t, dir, "b.png", 60, 60),
	}

	sizes := func() []int64 {
		out := t.TempDir()
		h := newHarness(2)
		h.run(t, context.Background(), inputs, models.Options{OutputDir: out})
		snap := h.state.Snapshot()
		got := make([]int64, len(snap.Records))
		for i, r := range snap.Records {
			require.NotNil(t, r.CompressedSize)
			got[i] = *r.CompressedSize
		}
		return got
	}
	assert.Equal(t, sizes(), sizes())
}

func TestScheduler_ManyItemsFewWorkers(t *testing.T) {
	dir := t.TempDir()
	var inputs []string
	for i := 0; i < 12; i++ {
		inputs = append(inputs, testutil.CreateTestPNG(t, dir, "img"+string(rune('a'+i))+".png", 8+i, 8))
	}

	h := newHarness(3)
	_, evs := h.run(t, context.Background(), inputs, models.Options{})
	checkEventContract(t, evs, 12)
	assert.Equal(t, 12, h.state.Aggregate().Completed)
	assert.NotEmpty(t, h.logs.Lines())
}
