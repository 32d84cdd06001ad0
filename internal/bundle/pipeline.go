package bundle

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/benzoXdev/bundleobf/internal/config"
	"github.com/benzoXdev/bundleobf/internal/driver"
	"github.com/benzoXdev/bundleobf/internal/engine"
	"github.com/benzoXdev/bundleobf/internal/tags"
)

// DebugDir is the directory under the project root that keeps the temp tree
// when run.log_obfuscated_files is set.
const DebugDir = ".jso"

// Result is the outcome of processing one bundle.
type Result struct {
	Code    string
	Chunks  []Chunk
	Report  *engine.Report
	Metrics engine.Metrics
}

// Pipeline obfuscates the application modules of tagged bundles. All bundles
// processed by one Pipeline share the same resolved seed.
type Pipeline struct {
	fs            afero.Fs
	cfg           *config.Config
	driver        *driver.Driver
	logger        zerolog.Logger
	seed          int64
	seedGenerated bool
}

// NewPipeline returns a pipeline running eng over module files on fs.
func NewPipeline(fs afero.Fs, cfg *config.Config, eng engine.Engine, logger zerolog.Logger) *Pipeline {
	seed, explicit := engine.ResolveSeed(cfg.Obfuscator.Seed, cfg.Run.Seed)
	logger = logger.With().Str("component", "bundle").Logger()
	logger.Info().Int64("seed", seed).Bool("generated", !explicit).Msg("Using obfuscation seed")
	return &Pipeline{
		fs:            fs,
		cfg:           cfg,
		driver:        driver.New(fs, eng, logger),
		logger:        logger,
		seed:          seed,
		seedGenerated: !explicit,
	}
}

// Seed returns the resolved seed.
func (p *Pipeline) Seed() int64 { return p.seed }

// Process obfuscates every module chunk of text and returns the rejoined
// bundle with all sentinels removed. A bundle without modules is only stripped.
func (p *Pipeline) Process(ctx context.Context, text string) (*Result, error) {
	start := time.Now()
	chunks, err := Split(text)
	if err != nil {
		return nil, err
	}
	report := p.newReport()
	modules := Modules(chunks)
	if len(modules) == 0 {
		p.logger.Info().Msg("No application modules tagged, nothing to obfuscate")
		out := tags.Strip(text)
		report.Finish(time.Since(start))
		return &Result{Code: out, Chunks: chunks, Report: report, Metrics: engine.ComputeMetricsWithInput(out, len(text))}, nil
	}

	srcDir, distDir, cleanup, err := p.tempTree()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if err := p.writeModules(ctx, srcDir, modules); err != nil {
		return nil, err
	}
	res, err := p.driver.Run(ctx, driver.Job{
		SrcDir:        srcDir,
		DestDir:       distDir,
		Pattern:       p.cfg.Run.Pattern,
		Excludes:      p.cfg.Run.Excludes,
		Seed:          p.seed,
		SourceMap:     p.cfg.Obfuscator.SourceMap,
		SourceMapPath: p.cfg.SourceMapPath(),
		Concurrency:   p.cfg.Run.Concurrency,
	})
	if err != nil {
		return nil, err
	}
	replaced, missing, err := p.readModules(ctx, distDir, modules)
	if err != nil {
		return nil, err
	}
	for _, f := range missing {
		p.logger.Warn().Str("file", f).Msg("Module not produced by the driver, kept unobfuscated")
		report.Warn("module %s not matched by run.pattern, kept unobfuscated", f)
	}

	out := Rejoin(chunks, replaced)
	for _, f := range res.Files {
		report.AddFile(f)
	}
	report.Finish(time.Since(start))
	m := engine.ComputeMetricsWithInput(out, len(text))
	engine.LogMetrics(p.logger, "bundle", m)
	return &Result{Code: out, Chunks: chunks, Report: report, Metrics: m}, nil
}

// ProcessFile processes the bundle at path and writes the result back in place.
// On error the file is left untouched.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*Result, error) {
	text, err := driver.ReadSource(p.fs, path)
	if err != nil {
		return nil, err
	}
	res, err := p.Process(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := driver.WriteFile(p.fs, path, []byte(res.Code)); err != nil {
		return nil, err
	}
	p.logger.Info().Str("bundle", path).Int("modules", len(Modules(res.Chunks))).Msg("Bundle obfuscated")
	return res, nil
}

// Finish logs the report and writes it to run.report when configured.
func (p *Pipeline) Finish(r *Result) error {
	if r == nil || r.Report == nil {
		return nil
	}
	r.Report.Log(p.logger)
	if p.cfg.Run.Report == "" {
		return nil
	}
	path := p.cfg.Run.Report
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.cfg.Run.ProjectRoot, path)
	}
	return r.Report.WriteFile(p.fs, path)
}

func (p *Pipeline) newReport() *engine.Report {
	opts := p.cfg.Obfuscator
	_ = engine.ApplyProfile(&opts)
	return engine.NewReport(opts, p.seed, p.seedGenerated)
}

// tempTree prepares the src and dist directories. The returned cleanup never
// fails; a removal error is logged as a warning.
func (p *Pipeline) tempTree() (string, string, func(), error) {
	if p.cfg.Run.LogObfuscatedFiles {
		base := filepath.Join(p.cfg.Run.ProjectRoot, DebugDir)
		if err := p.fs.RemoveAll(base); err != nil {
			return "", "", nil, fmt.Errorf("emptying %s: %w", base, err)
		}
		src, dist := filepath.Join(base, "src"), filepath.Join(base, "dist")
		for _, d := range []string{src, dist} {
			if err := p.fs.MkdirAll(d, 0o755); err != nil {
				return "", "", nil, fmt.Errorf("creating %s: %w", d, err)
			}
		}
		return src, dist, func() {
			p.logger.Info().Str("dir", base).Msg("Obfuscation temp files kept")
		}, nil
	}
	if dir := p.cfg.Run.TempDir; dir != "" {
		if err := p.fs.MkdirAll(dir, 0o755); err != nil {
			return "", "", nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	base, err := afero.TempDir(p.fs, p.cfg.Run.TempDir, "jso_")
	if err != nil {
		return "", "", nil, fmt.Errorf("creating temp dir: %w", err)
	}
	cleanup := func() {
		if err := p.fs.RemoveAll(base); err != nil {
			p.logger.Warn().Err(err).Str("dir", base).Msg("Failed to remove temp dir")
		}
	}
	return filepath.Join(base, "src"), filepath.Join(base, "dist"), cleanup, nil
}

func (p *Pipeline) writeModules(ctx context.Context, srcDir string, modules []Chunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit())
	for _, m := range modules {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return driver.WriteFile(p.fs, filepath.Join(srcDir, filepath.FromSlash(m.File)), []byte(m.Code))
		})
	}
	return g.Wait()
}

func (p *Pipeline) readModules(ctx context.Context, distDir string, modules []Chunk) (map[string]string, []string, error) {
	var (
		mu       sync.Mutex
		replaced = make(map[string]string, len(modules))
		missing  []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit())
	for _, m := range modules {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(distDir, filepath.FromSlash(m.File))
			ok, err := afero.Exists(p.fs, path)
			if err != nil {
				return err
			}
			if !ok {
				mu.Lock()
				missing = append(missing, m.File)
				mu.Unlock()
				return nil
			}
			code, err := driver.ReadSource(p.fs, path)
			if err != nil {
				return err
			}
			mu.Lock()
			replaced[m.File] = code
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	sort.Strings(missing)
	return replaced, missing, nil
}

func (p *Pipeline) limit() int {
	if p.cfg.Run.Concurrency > 0 {
		return p.cfg.Run.Concurrency
	}
	return 16
}
