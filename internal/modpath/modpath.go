// Package modpath maps module paths to stable project-relative keys and decides
// which modules belong to the application (and therefore get obfuscated).
package modpath

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// ExtPattern matches the source extensions a module may carry.
const ExtPattern = `\.(m|c)?(j|t)sx?$`

// ExternalDir is the key prefix for modules that live outside the project root.
const ExternalDir = "_external"

var (
	reExt    = regexp.MustCompile(ExtPattern)
	reDrive  = regexp.MustCompile(`^[A-Za-z]:`)
	reDotDot = regexp.MustCompile(`^(\.\./)+`)
)

// Normalize returns the key for absPath: relative to projectRoot, slash
// separated, with the extension rewritten to .js so every key matches the
// driver's *.js glob. Paths outside projectRoot land under ExternalDir.
func Normalize(absPath, projectRoot string) string {
	rel, err := filepath.Rel(projectRoot, absPath)
	if err != nil {
		rel = absPath
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "../") || filepath.IsAbs(rel) || reDrive.MatchString(rel) {
		rel = reDotDot.ReplaceAllString(rel, "")
		rel = reDrive.ReplaceAllString(rel, "")
		rel = ExternalDir + "/" + strings.TrimLeft(rel, "/")
	}
	if ext := reExt.FindString(rel); ext != "" {
		rel = rel[:len(rel)-len(ext)] + ".js"
	}
	return rel
}

// Eligible reports whether the module at path is application code: a real file
// with a JS/TS extension outside node_modules.
func Eligible(path string) bool {
	if path == "" {
		return false
	}
	if strings.Contains(filepath.ToSlash(path), "node_modules") {
		return false
	}
	if !reExt.MatchString(path) {
		return false
	}
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return false
	}
	return true
}

// LoaderFor returns the esbuild loader matching the extension of path.
func LoaderFor(path string) api.Loader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	case ".jsx":
		return api.LoaderJSX
	default:
		return api.LoaderJS
	}
}
