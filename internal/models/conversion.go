package models

import "time"

// Status is the lifecycle state of a single conversion.
type Status string

const (
	StatusLoaded     Status = "loaded"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// CanAdvanceTo reports whether s -> next is a legal transition.
// The only legal paths are loaded -> processing -> succeeded|failed.
func (s Status) CanAdvanceTo(next Status) bool {
	switch s {
	case StatusLoaded:
		return next == StatusProcessing
	case StatusProcessing:
		return next.Terminal()
	default:
		return false
	}
}

// Size is a target raster size in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Job is one image's conversion task. It is built once when a batch is
// submitted and never modified afterwards.
type Job struct {
	Index           int    `json:"index"`
	SourcePath      string `json:"source_path"`
	DestinationPath string `json:"destination_path"`
	Resize          *Size  `json:"resize,omitempty"` // nil when resizing is disabled
	Quality         int    `json:"quality"`          // effective quality, already clamped to 1..100
}

// ResultRecord is the mutable outcome of one Job, stored at the job's index.
type ResultRecord struct {
	Name             string                   `json:"name"`
	SourcePath       string                   `json:"source_path"`
	OutputPath       string                   `json:"output_path,omitempty"`
	OriginalSize     int64                    `json:"original_size"`
	CompressedSize   *int64                   `json:"compressed_size,omitempty"`
	CompressionRatio *float64                 `json:"compression_ratio,omitempty"` // 1 - compressed/original
	Status           Status                   `json:"status"`
	Error            string                   `json:"error,omitempty"`
	Timings          map[string]time.Duration `json:"timings,omitempty"`
}

// Clone returns a deep copy that is safe to hand to another goroutine.
func (r ResultRecord) Clone() ResultRecord {
	c := r
	if r.CompressedSize != nil {
		v := *r.CompressedSize
		c.CompressedSize = &v
	}
	if r.CompressionRatio != nil {
		v := *r.CompressionRatio
		c.CompressionRatio = &v
	}
	if r.Timings != nil {
		c.Timings = make(map[string]time.Duration, len(r.Timings))
		for k, v := range r.Timings {
			c.Timings[k] = v
		}
	}
	return c
}

// Options holds the batch-wide settings chosen by the user.
type Options struct {
	OutputDir      string `json:"output_dir" mapstructure:"output_dir"`
	ResizeEnabled  bool   `json:"resize_enabled" mapstructure:"resize_enabled"`
	Width          int    `json:"width" mapstructure:"width"`
	Height         int    `json:"height" mapstructure:"height"`
	QualityEnabled bool   `json:"quality_enabled" mapstructure:"quality_enabled"`
	Quality        int    `json:"quality" mapstructure:"quality"`
	RenameEnabled  bool   `json:"rename_enabled" mapstructure:"rename_enabled"`
	OutputFilename string `json:"output_filename" mapstructure:"output_filename"`
	Workers        int    `json:"workers" mapstructure:"workers"`

	// LegacyRenameCollisions writes every renamed output to the same
	// "{output_filename}.webp", so later items overwrite earlier ones.
	LegacyRenameCollisions bool `json:"legacy_rename_collisions" mapstructure:"legacy_rename_collisions"`
}
