package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrsandeep/webpress/internal/config"
	"github.com/vrsandeep/webpress/internal/models"
	"github.com/vrsandeep/webpress/internal/testutil"
)

func TestApp_BatchEventsReachPumpHistory(t *testing.T) {
	cfg := &config.Config{Workers: 2, PollIntervalMs: 10}
	cfg.Log.MaxLines = 100
	app := NewWithConfig(cfg)
	app.Start()
	defer app.Close()

	dir := t.TempDir()
	inputs := []string{
		testutil.CreateTestJPEG(t, dir, "a.jpg", 16, 16),
		testutil.CreateTestPNG(t, dir, "b.png", 16, 16),
	}
	batch, err := app.Manager.Submit(inputs, models.Options{})
	require.NoError(t, err)
	batch.Wait()

	var history []models.ProgressUpdate
	assert.Eventually(t, func() bool {
		history, _ = app.Pump.Since(0)
		return len(history) > 0 && history[len(history)-1].Done
	}, 2*time.Second, 10*time.Millisecond)

	last := history[len(history)-1]
	assert.Equal(t, batch.ID, last.BatchID)
	assert.Equal(t, "Conversion complete!", last.Message)
	assert.Equal(t, 2, app.Progress.Aggregate().Completed)
	assert.NotEmpty(t, app.Logs.Lines())
}

func TestApp_CloseCancelsRunningBatch(t *testing.T) {
	app := NewWithConfig(&config.Config{Workers: 1})
	app.Start()

	dir := t.TempDir()
	var inputs []string
	for _, name := range []string{"a.png", "b.png", "c.png", "d.png"} {
		inputs = append(inputs, testutil.CreateTestPNG(t, dir, name, 256, 256))
	}
	batch, err := app.Manager.Submit(inputs, models.Options{})
	require.NoError(t, err)

	app.Close()

	select {
	case <-batch.Done():
	default:
		t.Fatal("Close must wait for the running batch")
	}
	assert.Equal(t, 4, app.Progress.Aggregate().Completed)
	history, _ := app.Pump.Since(0)
	require.NotEmpty(t, history)
	assert.True(t, history[len(history)-1].Done)
}
