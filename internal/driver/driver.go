// Package driver runs the obfuscation engine over a tree of module files: glob
// the source dir, obfuscate every match that is not excluded, write the results
// to the destination dir and optionally emit a combined source map of the
// unobfuscated inputs.
package driver

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/benzoXdev/bundleobf/internal/engine"
	"github.com/benzoXdev/bundleobf/internal/sourcemap"
)

const (
	// DefaultPattern selects every module file of the temp tree.
	DefaultPattern = "**/*.js"
	// DefaultSourceMapPath is where the combined source map goes when no
	// location is configured.
	DefaultSourceMapPath = "index.bundle.map"
	// sourceMapLineOffset is the generated line the first module maps to.
	sourceMapLineOffset = 2
)

// Job describes one driver run.
type Job struct {
	SrcDir  string
	DestDir string
	// Pattern is matched relative to SrcDir. Defaults to DefaultPattern.
	Pattern string
	// Excludes are globs relative to SrcDir; matching files are copied unchanged.
	Excludes      []string
	Seed          int64
	SourceMap     bool
	SourceMapPath string
	// Concurrency bounds parallel engine calls. Defaults to GOMAXPROCS.
	Concurrency int
}

// Result summarizes a run.
type Result struct {
	Files     []engine.FileStat
	Excluded  []string
	SourceMap string // path of the written source map, if any
}

// Driver obfuscates module trees on a filesystem.
type Driver struct {
	fs     afero.Fs
	engine engine.Engine
	logger zerolog.Logger
}

// New returns a driver working on fs with eng.
func New(fs afero.Fs, eng engine.Engine, logger zerolog.Logger) *Driver {
	return &Driver{fs: fs, engine: eng, logger: logger.With().Str("component", "driver").Logger()}
}

type fileResult struct {
	name     string
	code     string
	stat     engine.FileStat
	excluded bool
}

// Run executes job. The first engine failure cancels the remaining work and is
// returned with the failing module named.
func (d *Driver) Run(ctx context.Context, job Job) (*Result, error) {
	if job.Pattern == "" {
		job.Pattern = DefaultPattern
	}
	if job.Concurrency <= 0 {
		job.Concurrency = runtime.GOMAXPROCS(0)
	}
	for _, p := range append([]string{job.Pattern}, job.Excludes...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern %q", p)
		}
	}

	files, err := doublestar.Glob(afero.NewIOFS(afero.NewBasePathFs(d.fs, job.SrcDir)), job.Pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("globbing %s in %s: %w", job.Pattern, job.SrcDir, err)
	}
	sort.Strings(files)
	d.logger.Info().Int64("seed", job.Seed).Int("files", len(files)).Str("engine", d.engine.Name()).Msg("using obfuscation seed")

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(job.Concurrency)
	for i, name := range files {
		g.Go(func() error {
			res, err := d.processFile(gctx, job, name)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Result{Files: make([]engine.FileStat, 0, len(results))}
	for _, r := range results {
		out.Files = append(out.Files, r.stat)
		if r.excluded {
			out.Excluded = append(out.Excluded, r.name)
		}
	}
	if job.SourceMap {
		path, err := d.writeSourceMap(job, results)
		if err != nil {
			return nil, err
		}
		out.SourceMap = path
	}
	return out, nil
}

func (d *Driver) processFile(ctx context.Context, job Job, name string) (fileResult, error) {
	code, err := ReadSource(d.fs, filepath.Join(job.SrcDir, filepath.FromSlash(name)))
	if err != nil {
		return fileResult{}, err
	}
	res := fileResult{name: name, code: code, excluded: isExcluded(job.Excludes, name)}
	obfuscated := code
	switch {
	case res.excluded:
		d.logger.Debug().Str("file", name).Msg("excluded, copied unchanged")
	case strings.TrimSpace(code) == "":
	default:
		obfuscated, err = d.engine.Obfuscate(ctx, name, code, job.Seed)
		if err != nil {
			return fileResult{}, fmt.Errorf("module %s: %w", name, err)
		}
	}
	if err := WriteFile(d.fs, filepath.Join(job.DestDir, filepath.FromSlash(name)), []byte(obfuscated)); err != nil {
		return fileResult{}, err
	}
	m := engine.ComputeMetricsWithInput(obfuscated, len(code))
	engine.LogMetrics(d.logger, name, m)
	res.stat = engine.FileStat{
		Name:       name,
		InputSize:  len(code),
		OutputSize: len(obfuscated),
		Entropy:    m.Entropy,
		Skipped:    res.excluded,
	}
	return res, nil
}

func (d *Driver) writeSourceMap(job Job, results []fileResult) (string, error) {
	path := job.SourceMapPath
	if path == "" {
		path = DefaultSourceMapPath
	}
	// Modules are laid out one after another from sourceMapLineOffset on, not
	// all stacked at that line, so each generated line has a single source.
	c := sourcemap.NewCombiner(strings.TrimSuffix(filepath.Base(path), ".map"), sourceMapLineOffset)
	for _, r := range results {
		if !r.excluded {
			c.AddFile(r.name, r.code)
		}
	}
	data, err := c.JSON()
	if err != nil {
		return "", fmt.Errorf("encoding source map: %w", err)
	}
	d.logger.Info().Str("path", path).Msg("generating source map")
	if err := WriteFile(d.fs, path, data); err != nil {
		return "", err
	}
	d.logger.Info().Str("path", path).Int("sources", c.Len()).Msg("generated source map of unobfuscated code")
	return path, nil
}

func isExcluded(excludes []string, name string) bool {
	for _, p := range excludes {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}
