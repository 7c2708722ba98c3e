// Shared fixture helpers for tests that need real image files on disk.

package testutil

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// NewGradient returns a width x height RGBA image with a simple gradient, so
// encoders have some real content to work with.
func NewGradient(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / max(width, 1)),
				G: uint8((y * 255) / max(height, 1)),
				B: uint8(((x + y) * 127) / max(width+height, 1)),
				A: 255,
			})
		}
	}
	return img
}

// CreateTestJPEG writes a width x height JPEG into dir and returns its path.
func CreateTestJPEG(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	filePath := filepath.Join(dir, name)
	file, err := os.Create(filePath)
	if err != nil {
		t.Fatalf("Failed to create test jpeg: %v", err)
	}
	defer file.Close()

	if err := jpeg.Encode(file, NewGradient(width, height), &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("Failed to encode test jpeg: %v", err)
	}
	return filePath
}

// CreateTestPNG writes a width x height PNG into dir and returns its path.
func CreateTestPNG(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	filePath := filepath.Join(dir, name)
	file, err := os.Create(filePath)
	if err != nil {
		t.Fatalf("Failed to create test png: %v", err)
	}
	defer file.Close()

	if err := png.Encode(file, NewGradient(width, height)); err != nil {
		t.Fatalf("Failed to encode test png: %v", err)
	}
	return filePath
}

// CreateTextFile writes a file that is not an image.
func CreateTextFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	filePath := filepath.Join(dir, name)
	if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write text file: %v", err)
	}
	return filePath
}
