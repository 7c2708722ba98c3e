package converter

import "fmt"

// DecodeError is returned when a source file is missing, unreadable, or not
// a JPEG or PNG image.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError is returned when the WebP encoder rejects a raster.
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("failed to encode webp: %v", e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// IoError is returned for write and stat failures on the file system.
type IoError struct {
	Op   string // "create", "write", "close" or "stat"
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }
