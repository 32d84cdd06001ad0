package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/benzoXdev/bundleobf/internal/engine"
	"github.com/benzoXdev/bundleobf/internal/logging"
	"github.com/benzoXdev/bundleobf/internal/output"
	"github.com/benzoXdev/bundleobf/internal/plugin"
)

type buildFlags struct {
	outfile     string
	outdir      string
	format      string
	platform    string
	target      string
	minify      bool
	sourcemap   bool
	dev         bool
	brotli      bool
	projectRoot string
	seed        int64
}

func newBuildCommand(g *globalFlags) *cobra.Command {
	f := &buildFlags{}
	cmd := &cobra.Command{
		Use:   "build <entry> [entry...]",
		Short: "Bundle entry points with esbuild and obfuscate application modules",
		Example: `  bundleobf build src/index.ts --outfile dist/app.js
  bundleobf build src/a.ts src/b.ts --outdir dist --format esm --brotli`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup(cmd)
			if err != nil {
				return err
			}
			if f.dev {
				cfg.Run.Dev = true
			}
			if f.projectRoot != "" {
				cfg.Run.ProjectRoot = f.projectRoot
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("seed") {
				cfg.Run.Seed = &f.seed
			}
			opts, err := f.options(args, cfg.Run.ProjectRoot)
			if err != nil {
				return err
			}
			eng, err := newEngine(cfg, logger)
			if err != nil {
				return err
			}
			p := plugin.New(cfg, eng, logger, plugin.WithContext(cmd.Context()))
			opts.Plugins = []api.Plugin{p.Esbuild()}

			result := api.Build(opts)
			logging.Messages(logger, zerolog.WarnLevel, result.Warnings)
			if len(result.Errors) > 0 {
				logging.Messages(logger, zerolog.ErrorLevel, result.Errors)
				return fmt.Errorf("build failed with %d error(s): %s", len(result.Errors), result.Errors[0].Text)
			}
			_, err = output.New(afero.NewOsFs(), f.brotli, logger).WriteAll(cmd.Context(), result.OutputFiles)
			return err
		},
	}
	cmd.Flags().StringVar(&f.outfile, "outfile", "", "output file (single entry point)")
	cmd.Flags().StringVar(&f.outdir, "outdir", "", "output directory")
	cmd.Flags().StringVar(&f.format, "format", "iife", "output format: iife, cjs, esm")
	cmd.Flags().StringVar(&f.platform, "platform", "browser", "platform: browser, node, neutral")
	cmd.Flags().StringVar(&f.target, "target", "", "language target, e.g. es2017")
	cmd.Flags().BoolVar(&f.minify, "minify", false, "minify the bundle before obfuscation")
	cmd.Flags().BoolVar(&f.sourcemap, "sourcemap", false, "emit bundler source maps (they will not match the obfuscated output)")
	cmd.Flags().BoolVar(&f.dev, "dev", false, "development build (obfuscation skipped unless run.run_in_debug)")
	cmd.Flags().BoolVar(&f.brotli, "brotli", false, "also write brotli-compressed .br files")
	cmd.Flags().StringVar(&f.projectRoot, "project-root", "", "project root used for module keys (overrides run.project_root)")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "obfuscation seed (overrides run.seed)")
	return cmd
}

func (f *buildFlags) options(entries []string, root string) (api.BuildOptions, error) {
	if (f.outfile == "") == (f.outdir == "") {
		return api.BuildOptions{}, errors.New("exactly one of --outfile or --outdir is required")
	}
	if f.outfile != "" && len(entries) > 1 {
		return api.BuildOptions{}, errors.New("--outfile needs a single entry point, use --outdir")
	}
	opts := api.BuildOptions{
		EntryPoints:       entries,
		AbsWorkingDir:     root,
		Bundle:            true,
		Write:             false,
		LogLevel:          api.LogLevelSilent,
		MinifyWhitespace:  f.minify,
		MinifyIdentifiers: f.minify,
		MinifySyntax:      f.minify,
	}
	if f.outfile != "" {
		opts.Outfile = absFrom(root, f.outfile)
	} else {
		opts.Outdir = absFrom(root, f.outdir)
	}
	for i, e := range entries {
		opts.EntryPoints[i] = absFrom(root, e)
	}
	switch strings.ToLower(f.format) {
	case "iife":
		opts.Format = api.FormatIIFE
	case "cjs":
		opts.Format = api.FormatCommonJS
	case "esm":
		opts.Format = api.FormatESModule
	default:
		return api.BuildOptions{}, fmt.Errorf("unknown format %q (iife|cjs|esm)", f.format)
	}
	switch strings.ToLower(f.platform) {
	case "browser":
		opts.Platform = api.PlatformBrowser
	case "node":
		opts.Platform = api.PlatformNode
	case "neutral":
		opts.Platform = api.PlatformNeutral
	default:
		return api.BuildOptions{}, fmt.Errorf("unknown platform %q (browser|node|neutral)", f.platform)
	}
	if f.target != "" {
		target, err := engine.ParseTarget(f.target)
		if err != nil {
			return api.BuildOptions{}, err
		}
		opts.Target = target
	}
	if f.sourcemap {
		opts.Sourcemap = api.SourceMapLinked
	}
	return opts, nil
}

func absFrom(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Join(root, p)
	}
	return abs
}
