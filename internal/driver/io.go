package driver

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/spf13/afero"
)

// MaxFileSize is a safety limit to prevent memory exhaustion (100 MB).
const MaxFileSize = 100 * 1024 * 1024

var (
	// ErrTooLarge is returned for files above MaxFileSize.
	ErrTooLarge = errors.New("file too large")
	// ErrNotUTF8 is returned for files that are not valid UTF-8.
	ErrNotUTF8 = errors.New("file is not valid UTF-8")
)

// utf8BOM is the UTF-8 Byte Order Mark (EF BB BF).
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// StripBOM removes a leading UTF-8 BOM. A BOM in the middle of a bundle is a
// syntax error in most engines.
func StripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, utf8BOM)
}

// ReadSource reads a text file from fs, enforcing the size limit and UTF-8.
func ReadSource(fs afero.Fs, path string) (string, error) {
	fi, err := fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", path)
		}
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	if fi.IsDir() {
		return "", fmt.Errorf("%s is a directory, not a file", path)
	}
	if fi.Size() > MaxFileSize {
		return "", fmt.Errorf("%w: %s (%d bytes, max %d)", ErrTooLarge, path, fi.Size(), MaxFileSize)
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	data = StripBOM(data)
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s", ErrNotUTF8, path)
	}
	return string(data), nil
}

// WriteFile writes data to path on fs, creating parent directories.
func WriteFile(fs afero.Fs, path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
