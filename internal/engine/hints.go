package engine

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

var version = "0.4.0"

// Version returns the version string.
func Version() string {
	return version
}

// VersionFull returns version with Go and platform info.
func VersionFull() string {
	return fmt.Sprintf("bundleobf v%s (%s/%s, %s)", version, runtime.GOOS, runtime.GOARCH, runtime.Version())
}

// ErrorHint returns a one-line suggestion for common failures, or "".
func ErrorHint(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrEngineNotFound):
		return "Install javascript-obfuscator (npm i -D javascript-obfuscator) or set obfuscator.exec_command."
	case errors.Is(err, ErrInvalidOutput):
		return "A transform produced invalid JavaScript. Retry with a lighter profile or report the seed printed above."
	case errors.Is(err, ErrUnterminated):
		return "A module could not be tokenized. Check that the bundle was built with legal comments inline."
	case errors.Is(err, ErrInvalidOptions):
		return "Check the obfuscator section of bundleobf.yaml (profile, pipeline, target)."
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "unbalanced sentinel"), strings.Contains(msg, "nested begin sentinel"):
		return "The bundle lost or reordered module markers. Build with legalComments: inline and without a second minifier."
	case strings.Contains(msg, "file not found"), strings.Contains(msg, "no such file"):
		return "Check the path. Use absolute paths or run from the project directory."
	case strings.Contains(msg, "not valid UTF-8"):
		return "Re-save the file as UTF-8 (with or without BOM) in your editor."
	case strings.Contains(msg, "too large"):
		return "The file exceeds the 100 MB safety limit. Split the bundle or exclude it."
	case strings.Contains(msg, "config"):
		return "Run with --log-level debug to see which config file and keys were loaded."
	}
	return ""
}
