package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vrsandeep/webpress/internal/config"
	"github.com/vrsandeep/webpress/internal/core"
	"github.com/vrsandeep/webpress/internal/events"
	"github.com/vrsandeep/webpress/internal/models"
	"github.com/vrsandeep/webpress/internal/progress"
	"github.com/vrsandeep/webpress/internal/util"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run converts the files named in args and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("webpress", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: webpress [flags] <image or folder>...")
		fs.PrintDefaults()
	}
	fs.StringP("output-dir", "o", "", "folder for the .webp files (default: folder of the first input)")
	fs.Bool("resize", false, "resize every image to --width x --height")
	fs.Int("width", 800, "resize width in pixels")
	fs.Int("height", 600, "resize height in pixels")
	fs.IntP("quality", "q", 80, "WebP quality 1-100, enables the quality override when set")
	fs.StringP("rename", "r", "", "base name for the outputs, numbered when converting several files")
	fs.Bool("legacy-rename", false, "with --rename, write every file to the same name")
	fs.IntP("workers", "w", 0, "number of parallel conversions (default: one per CPU)")
	fs.BoolP("verbose", "v", false, "print the conversion log")
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	v := viper.New()
	bindings := map[string]string{
		"defaults.output_dir":               "output-dir",
		"defaults.resize_enabled":           "resize",
		"defaults.width":                    "width",
		"defaults.height":                   "height",
		"defaults.quality":                  "quality",
		"defaults.legacy_rename_collisions": "legacy-rename",
		"workers":                           "workers",
	}
	for key, name := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			fmt.Fprintf(stderr, "webpress: %v\n", err)
			return 2
		}
	}

	cfg, err := config.LoadWith(v)
	if err != nil {
		fmt.Fprintf(stderr, "webpress: failed to load configuration: %v\n", err)
		return 1
	}
	// The log would tear the progress bar apart, so it is only echoed on request.
	cfg.Log.Echo, _ = fs.GetBool("verbose")
	opts := cfg.DefaultOptions()
	if fs.Changed("quality") {
		opts.QualityEnabled = true
	}
	if name, _ := fs.GetString("rename"); name != "" {
		opts.RenameEnabled = true
		opts.OutputFilename = name
	}
	if opts.OutputDir != "" {
		if err := util.ValidateOutputDir(opts.OutputDir); err != nil {
			fmt.Fprintf(stderr, "webpress: invalid output directory: %v\n", err)
			return 1
		}
		if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
			fmt.Fprintf(stderr, "webpress: %v\n", err)
			return 1
		}
	}

	inputs, err := util.CollectImages(fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "webpress: %v\n", err)
		return 1
	}
	if len(inputs) == 0 {
		fmt.Fprintln(stderr, "webpress: no JPEG or PNG files found")
		return 1
	}

	app := core.NewWithConfig(cfg)
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	batch, err := app.Manager.Submit(inputs, opts)
	if err != nil {
		fmt.Fprintf(stderr, "webpress: %v\n", err)
		return 1
	}

	bar := progressbar.NewOptions(batch.Total,
		progressbar.OptionSetWriter(stderr),
		progressbar.OptionSetDescription("Converting"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(50*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)

	failures := consume(ctx, app, bar, stderr)
	bar.Finish()

	printResults(stdout, app.Progress.Snapshot(), batch.OutputDir)
	if failures > 0 {
		return 1
	}
	return 0
}

// consume is the single consumer of the event queue while the batch runs.
// It cancels the batch on the first interrupt and returns the number of
// failed items.
func consume(ctx context.Context, app *core.App, bar *progressbar.ProgressBar, stderr io.Writer) int {
	batch := app.Manager.Current()
	ticker := time.NewTicker(app.Config.PollInterval())
	defer ticker.Stop()

	failures := 0
	completed := 0
	handle := func() bool {
		for _, e := range app.Events.Drain() {
			switch ev := e.(type) {
			case events.Progress:
				// Progress events of different workers may arrive out of order.
				if ev.Completed > completed {
					completed = ev.Completed
					bar.Set(completed)
				}
			case events.StatusChanged:
				if ev.Status == models.StatusFailed {
					failures++
					rec, _ := app.Progress.Record(ev.Index)
					bar.Clear()
					fmt.Fprintf(stderr, "failed: %s: %s\n", rec.Name, ev.Error)
				}
			case events.BatchCompleted:
				if ev.Cancelled {
					bar.Describe("Cancelled")
				}
				return true
			}
		}
		return false
	}

	interrupted := ctx.Done()
	for {
		select {
		case <-interrupted:
			fmt.Fprintln(stderr, "\nInterrupted, cancelling remaining conversions...")
			batch.Cancel()
			interrupted = nil
		case <-app.Events.Notify():
		case <-ticker.C:
		}
		if handle() {
			return failures
		}
	}
}

func printResults(w io.Writer, snap progress.Snapshot, outputDir string) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"File", "Original", "WebP", "Saved", "Status"})
	for _, rec := range snap.Records {
		compressed, saved := "-", "-"
		if rec.CompressedSize != nil {
			compressed = humanize.IBytes(uint64(*rec.CompressedSize))
		}
		if rec.CompressionRatio != nil {
			saved = fmt.Sprintf("%.1f%%", *rec.CompressionRatio*100)
		}
		status := string(rec.Status)
		if rec.Error != "" {
			status += ": " + rec.Error
		}
		tw.AppendRow(table.Row{rec.Name, humanize.IBytes(uint64(rec.OriginalSize)), compressed, saved, status})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	tw.Render()

	fmt.Fprintf(w, "\n%s: %s -> %s in %s\n", snap.Aggregate.StatusText,
		humanize.IBytes(uint64(snap.TotalOriginal)), humanize.IBytes(uint64(snap.TotalCompressed)), outputDir)
}
