package jobs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vrsandeep/webpress/internal/converter"
	"github.com/vrsandeep/webpress/internal/models"
	"github.com/vrsandeep/webpress/internal/util"
)

var ErrInvalidResize = errors.New("resize width and height must be at least 1")

// Plan is a fully resolved batch, ready to hand to the Scheduler.
type Plan struct {
	ID        string
	OutputDir string
	Options   models.Options
	Jobs      []models.Job
	Records   []models.ResultRecord
}

// NewPlan resolves the output directory, the effective quality and the
// destination file name of every input. Input order defines job indices.
func NewPlan(id string, inputs []string, opts models.Options) (*Plan, error) {
	if opts.ResizeEnabled && (opts.Width < 1 || opts.Height < 1) {
		return nil, fmt.Errorf("%w, got %dx%d", ErrInvalidResize, opts.Width, opts.Height)
	}

	outDir, err := util.ResolveOutputDir(opts.OutputDir, inputs)
	if err != nil {
		return nil, fmt.Errorf("resolve output directory: %w", err)
	}

	quality := converter.DefaultQuality
	if opts.QualityEnabled {
		quality = converter.ClampQuality(opts.Quality)
	}

	var resize *models.Size
	if opts.ResizeEnabled {
		resize = &models.Size{Width: opts.Width, Height: opts.Height}
	}

	baseName := ""
	if opts.RenameEnabled {
		baseName = opts.OutputFilename
	}

	plan := &Plan{
		ID:        id,
		OutputDir: outDir,
		Options:   opts,
		Jobs:      make([]models.Job, len(inputs)),
		Records:   make([]models.ResultRecord, len(inputs)),
	}
	for i, input := range inputs {
		name := util.OutputFileName(input, i, len(inputs), baseName, opts.LegacyRenameCollisions)
		plan.Jobs[i] = models.Job{
			Index:           i,
			SourcePath:      input,
			DestinationPath: filepath.Join(outDir, name),
			Resize:          resize,
			Quality:         quality,
		}

		// A missing source keeps size 0 here and fails later in decode.
		var size int64
		if fi, err := os.Stat(input); err == nil {
			size = fi.Size()
		}
		plan.Records[i] = models.ResultRecord{
			Name:         filepath.Base(input),
			SourcePath:   input,
			OriginalSize: size,
			Status:       models.StatusLoaded,
		}
	}
	return plan, nil
}
