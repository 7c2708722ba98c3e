package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const WebPExtension = ".webp"

var (
	ErrEmptyPath      = errors.New("path cannot be empty")
	ErrPathTraversal  = errors.New("path contains invalid directory traversal")
	ErrNotADirectory  = errors.New("path exists but is not a directory")
	controlChars      = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	invalidNameChars  = regexp.MustCompile(`[\\/:*?"<>|]`)
	repeatedSeparator = regexp.MustCompile(`-+`)
)

var supportedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// IsSupportedImage checks the file extension only; the decoder verifies the
// actual content.
func IsSupportedImage(path string) bool {
	return supportedImageExts[strings.ToLower(filepath.Ext(path))]
}

// ResolveOutputDir returns outputDir when set, otherwise the directory of the
// first input, otherwise the current working directory.
func ResolveOutputDir(outputDir string, inputs []string) (string, error) {
	if outputDir != "" {
		return filepath.Clean(outputDir), nil
	}
	if len(inputs) > 0 && inputs[0] != "" {
		return filepath.Dir(inputs[0]), nil
	}
	return os.Getwd()
}

// OutputFileName returns the WebP file name for the input at index in a
// batch of total items. Without a base name the input stem is reused. With a
// base name, multi-item batches get a 1-based index suffix so outputs do not
// overwrite each other, unless legacyCollisions asks for the old behaviour of
// writing every item to the same name.
func OutputFileName(input string, index, total int, baseName string, legacyCollisions bool) string {
	base := SanitizeFileName(baseName)
	if base == "" {
		stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		return stem + WebPExtension
	}
	if total <= 1 || legacyCollisions {
		return base + WebPExtension
	}
	return fmt.Sprintf("%s_%d%s", base, index+1, WebPExtension)
}

// SanitizeFileName strips characters that are not valid in a file name on
// Windows, macOS or Linux. Path separators are replaced, so the result can
// never escape the output directory.
func SanitizeFileName(name string) string {
	if name == "" {
		return ""
	}
	safe := controlChars.ReplaceAllString(name, "")
	safe = invalidNameChars.ReplaceAllString(safe, "-")
	safe = repeatedSeparator.ReplaceAllString(safe, "-")
	safe = strings.Trim(safe, " .-")

	reserved := map[string]bool{
		"CON": true, "PRN": true, "AUX": true, "NUL": true,
		"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
		"COM6": true, "COM7": true, "COM8": true, "COM9": true,
		"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
		"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
	}
	if reserved[strings.ToUpper(safe)] {
		safe += "_"
	}
	return safe
}

// ValidateOutputDir checks that dir is a usable output directory: it must not
// contain "..", and it must either be a writable directory or be creatable.
// Nothing is left behind on disk.
func ValidateOutputDir(dir string) error {
	if dir == "" {
		return ErrEmptyPath
	}
	if strings.Contains(dir, "..") {
		return ErrPathTraversal
	}
	clean := filepath.Clean(dir)

	info, err := os.Stat(clean)
	switch {
	case err == nil:
		if !info.IsDir() {
			return fmt.Errorf("%w: %s", ErrNotADirectory, clean)
		}
		if err := checkWritePermission(clean); err != nil {
			return fmt.Errorf("no write permission for %s: %w", clean, err)
		}
		return nil
	case os.IsNotExist(err):
		parent := filepath.Dir(clean)
		if parent == clean {
			return fmt.Errorf("cannot access path: %w", err)
		}
		return ValidateOutputDir(parent)
	default:
		return fmt.Errorf("cannot access path: %w", err)
	}
}

func checkWritePermission(dirPath string) error {
	f, err := os.CreateTemp(dirPath, ".webpress_check_*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// CollectImages expands inputs into a naturally sorted list of absolute
// image paths. Directories contribute their direct children with a
// supported extension; files are taken as given.
func CollectImages(inputs []string) ([]string, error) {
	var out []string
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", in, err)
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			// Missing files are kept; they fail individually during conversion.
			out = append(out, abs)
			continue
		}
		entries, err := os.ReadDir(abs)
		if err != nil {
			return nil, fmt.Errorf("read directory %s: %w", abs, err)
		}
		var found []string
		for _, e := range entries {
			if !e.IsDir() && IsSupportedImage(e.Name()) {
				found = append(found, filepath.Join(abs, e.Name()))
			}
		}
		SortPaths(found)
		out = append(out, found...)
	}
	return out, nil
}
