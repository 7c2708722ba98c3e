package api_test

import (
	"testing"

	"github.com/vrsandeep/webpress/internal/api"
	"github.com/vrsandeep/webpress/internal/config"
	"github.com/vrsandeep/webpress/internal/core"
)

func testConfig() *config.Config {
	cfg := &config.Config{Workers: 2, PollIntervalMs: 10}
	cfg.Log.MaxLines = 1000
	cfg.Defaults.Width = 800
	cfg.Defaults.Height = 600
	cfg.Defaults.Quality = 80
	cfg.Defaults.OutputFilename = "output"
	return cfg
}

// setupTestServer starts a full core.App behind an api.Server and closes it
// when the test ends.
func setupTestServer(t *testing.T) (*api.Server, *core.App) {
	t.Helper()
	app := core.NewWithConfig(testConfig())
	app.Version = "test"
	app.Start()
	t.Cleanup(app.Close)
	return api.NewServer(app), app
}
