// Package converter holds the single-image operations used by the batch
// scheduler: decode a JPEG/PNG file, resize it, encode it as WebP and write
// the result to disk. Every function is stateless and safe for concurrent use.
package converter

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"time"

	"github.com/chai2010/webp"
	"github.com/nfnt/resize"
)

const (
	DefaultQuality = 80
	MinQuality     = 1
	MaxQuality     = 100
)

var (
	pngMagic  = []byte("\x89PNG\r\n\x1a\n")
	jpegMagic = []byte{0xff, 0xd8, 0xff}

	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// ClampQuality forces q into the encoder's legal range.
func ClampQuality(q int) int {
	if q < MinQuality {
		return MinQuality
	}
	if q > MaxQuality {
		return MaxQuality
	}
	return q
}

// Decode reads the image at path. Only JPEG and PNG containers are accepted,
// detected by their magic bytes rather than the file extension.
func Decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	r := bufio.NewReader(f)
	header, _ := r.Peek(len(pngMagic))

	var img image.Image
	switch {
	case bytes.HasPrefix(header, pngMagic):
		img, err = png.Decode(r)
	case bytes.HasPrefix(header, jpegMagic):
		img, err = jpeg.Decode(r)
	default:
		err = ErrUnsupportedFormat
	}
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return img, nil
}

// Resize scales img to exactly width x height with a Lanczos3 filter. The
// aspect ratio is not preserved. Both dimensions must be positive.
func Resize(img image.Image, width, height int) image.Image {
	return resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
}

// EncodeWebP encodes img as lossy WebP. quality is expected to be in
// 1..100 already (see ClampQuality).
func EncodeWebP(img image.Image, quality int) ([]byte, error) {
	if img == nil {
		return nil, &EncodeError{Err: errors.New("nil image")}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &EncodeError{Err: fmt.Errorf("image has zero dimension %dx%d", b.Dx(), b.Dy())}
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Lossless: false, Quality: float32(quality)}); err != nil {
		return nil, &EncodeError{Err: err}
	}
	return buf.Bytes(), nil
}

// Write creates or truncates path and writes data to it. A failed write may
// leave a partial file behind.
func Write(data []byte, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return &IoError{Op: "create", Path: path, Err: err}
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return &IoError{Op: "write", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &IoError{Op: "close", Path: path, Err: err}
	}
	return nil
}

// FileSize returns the size of the file at path in bytes.
func FileSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, &IoError{Op: "stat", Path: path, Err: err}
	}
	return fi.Size(), nil
}

// Measure runs op and returns its result with the elapsed wall time.
func Measure[T any](op func() T) (T, time.Duration) {
	start := time.Now()
	v := op()
	return v, time.Since(start)
}

// MeasureErr is Measure for operations that can fail.
func MeasureErr[T any](op func() (T, error)) (T, time.Duration, error) {
	start := time.Now()
	v, err := op()
	return v, time.Since(start), err
}
