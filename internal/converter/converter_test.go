package converter_test

import (
	"bytes"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrsandeep/webpress/internal/converter"
	"github.com/vrsandeep/webpress/internal/testutil"
)

func TestDecode(t *testing.T) {
	dir := t.TempDir()

	t.Run("JPEG", func(t *testing.T) {
		path := testutil.CreateTestJPEG(t, dir, "a.jpg", 40, 30)
		img, err := converter.Decode(path)
		require.NoError(t, err)
		assert.Equal(t, 40, img.Bounds().Dx())
		assert.Equal(t, 30, img.Bounds().Dy())
	})

	t.Run("PNG with misleading extension", func(t *testing.T) {
		path := testutil.CreateTestPNG(t, dir, "b.jpg", 12, 7)
		img, err := converter.Decode(path)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 12, 7), img.Bounds())
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := converter.Decode(filepath.Join(dir, "missing.jpg"))
		var decErr *converter.DecodeError
		require.ErrorAs(t, err, &decErr)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("Not an image", func(t *testing.T) {
		path := testutil.CreateTextFile(t, dir, "c.png", "definitely not a png")
		_, err := converter.Decode(path)
		var decErr *converter.DecodeError
		require.ErrorAs(t, err, &decErr)
		assert.ErrorIs(t, err, converter.ErrUnsupportedFormat)
	})

	t.Run("WebP input is rejected", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, webp.Encode(&buf, testutil.NewGradient(8, 8), &webp.Options{Quality: 50}))
		path := filepath.Join(dir, "d.webp")
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

		_, err := converter.Decode(path)
		assert.ErrorIs(t, err, converter.ErrUnsupportedFormat)
	})
}

func TestResizeIgnoresAspectRatio(t *testing.T) {
	src := testutil.NewGradient(300, 300)
	out := converter.Resize(src, 100, 50)
	assert.Equal(t, 100, out.Bounds().Dx())
	assert.Equal(t, 50, out.Bounds().Dy())

	// Deterministic for identical input.
	again := converter.Resize(src, 100, 50)
	assert.Equal(t, out, again)
}

func TestEncodeWebP(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		data, err := converter.EncodeWebP(testutil.NewGradient(64, 48), 80)
		require.NoError(t, err)
		cfg, err := webp.DecodeConfig(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, 64, cfg.Width)
		assert.Equal(t, 48, cfg.Height)
	})

	t.Run("Lower quality is not larger", func(t *testing.T) {
		img := testutil.NewGradient(128, 128)
		low, err := converter.EncodeWebP(img, 10)
		require.NoError(t, err)
		high, err := converter.EncodeWebP(img, 100)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(low), len(high))
	})

	t.Run("Zero dimension", func(t *testing.T) {
		_, err := converter.EncodeWebP(image.NewRGBA(image.Rect(0, 0, 0, 10)), 80)
		var encErr *converter.EncodeError
		assert.ErrorAs(t, err, &encErr)
	})

	t.Run("Nil image", func(t *testing.T) {
		_, err := converter.EncodeWebP(nil, 80)
		var encErr *converter.EncodeError
		assert.ErrorAs(t, err, &encErr)
	})
}

func TestClampQuality(t *testing.T) {
	testCases := []struct {
		in, want int
	}{
		{-5, 1}, {0, 1}, {1, 1}, {55, 55}, {100, 100}, {250, 100},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, converter.ClampQuality(tc.in), "ClampQuality(%d)", tc.in)
	}
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()

	t.Run("Creates and truncates", func(t *testing.T) {
		path := filepath.Join(dir, "out.webp")
		require.NoError(t, converter.Write([]byte("first content"), path))
		require.NoError(t, converter.Write([]byte("2nd"), path))
		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "2nd", string(got))
	})

	t.Run("Missing directory", func(t *testing.T) {
		err := converter.Write([]byte("x"), filepath.Join(dir, "nope", "out.webp"))
		var ioErr *converter.IoError
		require.ErrorAs(t, err, &ioErr)
		assert.Equal(t, "create", ioErr.Op)
	})
}

func TestFileSize(t *testing.T) {
	dir := t.TempDir()
	path := testutil.CreateTextFile(t, dir, "sized.txt", "12345")
	size, err := converter.FileSize(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	_, err = converter.FileSize(filepath.Join(dir, "gone"))
	var ioErr *converter.IoError
	assert.ErrorAs(t, err, &ioErr)
}

func TestMeasure(t *testing.T) {
	v, d := converter.Measure(func() int {
		time.Sleep(5 * time.Millisecond)
		return 42
	})
	assert.Equal(t, 42, v)
	assert.GreaterOrEqual(t, d, 5*time.Millisecond)

	_, _, err := converter.MeasureErr(func() (string, error) {
		return "", errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
}
