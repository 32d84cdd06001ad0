// Package plugin hooks the obfuscation pipeline into esbuild: application
// modules are tagged while they load and the written bundle is obfuscated when
// the build ends.
package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/benzoXdev/bundleobf/internal/bundle"
	"github.com/benzoXdev/bundleobf/internal/config"
	"github.com/benzoXdev/bundleobf/internal/driver"
	"github.com/benzoXdev/bundleobf/internal/engine"
	"github.com/benzoXdev/bundleobf/internal/modpath"
	"github.com/benzoXdev/bundleobf/internal/tags"
)

// Name is the esbuild plugin name.
const Name = "bundleobf"

// Plugin tags application modules and obfuscates the bundles they end up in.
type Plugin struct {
	cfg    *config.Config
	engine engine.Engine
	fs     afero.Fs
	ctx    context.Context
	logger zerolog.Logger

	mu      sync.Mutex
	modules map[string]string // key -> absolute path
	results []*bundle.Result
	skipped string
}

// Option customizes a Plugin.
type Option func(*Plugin)

// WithFs sets the filesystem used for written outputs and the temp tree.
func WithFs(fs afero.Fs) Option {
	return func(p *Plugin) { p.fs = fs }
}

// WithContext sets the context obfuscation runs under.
func WithContext(ctx context.Context) Option {
	return func(p *Plugin) { p.ctx = ctx }
}

// New returns a plugin obfuscating with eng according to cfg.
func New(cfg *config.Config, eng engine.Engine, logger zerolog.Logger, opts ...Option) *Plugin {
	p := &Plugin{
		cfg:     cfg,
		engine:  eng,
		fs:      afero.NewOsFs(),
		ctx:     context.Background(),
		logger:  logger.With().Str("component", "plugin").Logger(),
		modules: map[string]string{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Esbuild returns the esbuild plugin.
func (p *Plugin) Esbuild() api.Plugin {
	return api.Plugin{Name: Name, Setup: p.setup}
}

// Results returns the results of the last build, one per JS output. For
// in-memory builds the plugin replaces OutputFile.Contents; OutputFile.Hash
// still describes the bytes esbuild produced and must not be used to key the
// obfuscated output.
func (p *Plugin) Results() []*bundle.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*bundle.Result(nil), p.results...)
}

// Skipped returns the skip reason when the plugin decided not to run.
func (p *Plugin) Skipped() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.skipped
}

// Modules returns the keys tagged during the last build, sorted.
func (p *Plugin) Modules() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.modules))
	for k := range p.modules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p *Plugin) setup(build api.PluginBuild) {
	if reason := p.cfg.SkipReason(); reason != "" {
		p.mu.Lock()
		p.skipped = reason
		p.mu.Unlock()
		p.logger.Warn().Str("reason", reason).Msgf("Obfuscation SKIPPED [%s]", reason)
		return
	}
	opts := build.InitialOptions
	opts.LegalComments = api.LegalCommentsInline
	if opts.Write {
		opts.Metafile = true
	}
	pipeline := bundle.NewPipeline(p.fs, p.cfg, p.engine, p.logger)

	build.OnStart(func() (api.OnStartResult, error) {
		p.mu.Lock()
		p.modules = map[string]string{}
		p.results = nil
		p.mu.Unlock()
		return api.OnStartResult{}, nil
	})
	build.OnLoad(api.OnLoadOptions{Filter: modpath.ExtPattern, Namespace: "file"}, p.onLoad)
	build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
		return p.onEnd(pipeline, opts, result), nil
	})
}

func (p *Plugin) onLoad(args api.OnLoadArgs) (api.OnLoadResult, error) {
	if !modpath.Eligible(args.Path) {
		return api.OnLoadResult{}, nil
	}
	src, err := os.ReadFile(args.Path)
	if err != nil {
		return api.OnLoadResult{}, fmt.Errorf("reading %s: %w", args.Path, err)
	}
	key := modpath.Normalize(args.Path, p.cfg.Run.ProjectRoot)
	tagged, err := tags.Wrap(string(driver.StripBOM(src)), key)
	if err != nil {
		return api.OnLoadResult{}, err
	}
	p.mu.Lock()
	p.modules[key] = args.Path
	p.mu.Unlock()
	return api.OnLoadResult{
		Contents:   &tagged,
		Loader:     modpath.LoaderFor(args.Path),
		ResolveDir: filepath.Dir(args.Path),
		PluginName: Name,
	}, nil
}

type output struct {
	path string
	text string
	idx  int // index into OutputFiles, -1 for written files
}

func (p *Plugin) onEnd(pipeline *bundle.Pipeline, opts *api.BuildOptions, result *api.BuildResult) api.OnEndResult {
	if len(result.Errors) > 0 {
		p.logger.Warn().Int("errors", len(result.Errors)).Msg("Build failed, obfuscation skipped")
		return api.OnEndResult{}
	}
	var end api.OnEndResult
	if opts.Sourcemap != api.SourceMapNone {
		msg := "source maps generated by the bundler will not match the obfuscated output"
		p.logger.Warn().Msg(msg)
		end.Warnings = append(end.Warnings, api.Message{Text: msg, PluginName: Name})
	}

	outputs, err := p.collect(opts, result)
	if err != nil {
		return fail(end, err)
	}
	results := make([]*bundle.Result, len(outputs))
	for i, o := range outputs {
		res, err := pipeline.Process(p.ctx, o.text)
		if err != nil {
			return fail(end, fmt.Errorf("obfuscating %s: %w", o.path, err))
		}
		results[i] = res
		for _, key := range p.untracked(res.Chunks) {
			end.Warnings = append(end.Warnings, api.Message{
				Text:       fmt.Sprintf("%s: module %q was tagged outside this build", o.path, key),
				PluginName: Name,
			})
		}
	}
	// Outputs change only once every bundle was obfuscated.
	for i, o := range outputs {
		if o.idx >= 0 {
			// Hash is left as esbuild computed it.
			result.OutputFiles[o.idx].Contents = []byte(results[i].Code)
			continue
		}
		if err := driver.WriteFile(p.fs, o.path, []byte(results[i].Code)); err != nil {
			return fail(end, err)
		}
	}
	for i, o := range outputs {
		if err := pipeline.Finish(results[i]); err != nil {
			end.Warnings = append(end.Warnings, api.Message{Text: err.Error(), PluginName: Name})
		}
		p.logger.Info().Str("bundle", o.path).Int("modules", len(bundle.Modules(results[i].Chunks))).Msg("Bundle obfuscated")
	}
	p.mu.Lock()
	p.results = results
	p.mu.Unlock()
	return end
}

func fail(end api.OnEndResult, err error) api.OnEndResult {
	end.Errors = append(end.Errors, api.Message{Text: err.Error(), PluginName: Name})
	return end
}

// collect returns the JS outputs of the build: in memory when esbuild did not
// write them, otherwise read back from the paths listed in the metafile.
func (p *Plugin) collect(opts *api.BuildOptions, result *api.BuildResult) ([]output, error) {
	var outs []output
	if !opts.Write {
		for i, f := range result.OutputFiles {
			if isJS(f.Path) {
				outs = append(outs, output{path: f.Path, text: string(f.Contents), idx: i})
			}
		}
		return outs, nil
	}
	paths, err := metafileOutputs(result.Metafile, opts.AbsWorkingDir)
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		if !isJS(path) {
			continue
		}
		text, err := driver.ReadSource(p.fs, path)
		if err != nil {
			return nil, err
		}
		outs = append(outs, output{path: path, text: text, idx: -1})
	}
	return outs, nil
}

// metafile is the part of esbuild's metafile listing written outputs.
type metafile struct {
	Outputs map[string]struct {
		EntryPoint string `json:"entryPoint,omitempty"`
	} `json:"outputs"`
}

func metafileOutputs(data, workDir string) ([]string, error) {
	if data == "" {
		return nil, fmt.Errorf("esbuild returned no metafile")
	}
	var meta metafile
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metafile: %w", err)
	}
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		workDir = wd
	}
	paths := make([]string, 0, len(meta.Outputs))
	for rel := range meta.Outputs {
		path := filepath.FromSlash(rel)
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}

// untracked lists module keys that were not tagged during this build.
func (p *Plugin) untracked(chunks []bundle.Chunk) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	seen := map[string]bool{}
	for _, c := range chunks {
		if !c.Module || seen[c.Key] {
			continue
		}
		seen[c.Key] = true
		if _, ok := p.modules[c.Key]; !ok {
			out = append(out, c.Key)
		}
	}
	return out
}

func isJS(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".mjs", ".cjs":
		return true
	}
	return false
}
