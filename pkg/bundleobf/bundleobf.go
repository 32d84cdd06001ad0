// Package bundleobf is the public API: an esbuild plugin that obfuscates the
// application modules of a bundle, and a function that does the same for a
// bundle already on disk.
package bundleobf

import (
	"context"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/benzoXdev/bundleobf/internal/bundle"
	"github.com/benzoXdev/bundleobf/internal/config"
	"github.com/benzoXdev/bundleobf/internal/engine"
	"github.com/benzoXdev/bundleobf/internal/plugin"
)

// Config is the bundleobf configuration.
type Config = config.Config

// Options configures the obfuscation engine.
type Options = engine.Options

// LoadConfig reads configuration from path (or bundleobf.yaml when empty), .env
// and BUNDLEOBF_* variables.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// NewPlugin returns an esbuild plugin for cfg. Add it to api.BuildOptions.Plugins.
func NewPlugin(ctx context.Context, cfg *Config, logger zerolog.Logger) (api.Plugin, error) {
	var eng engine.Engine
	if cfg.SkipReason() == "" {
		var err error
		if eng, err = engine.New(cfg.Obfuscator, logger); err != nil {
			return api.Plugin{}, err
		}
	}
	return plugin.New(cfg, eng, logger, plugin.WithContext(ctx)).Esbuild(), nil
}

// ObfuscateBundle obfuscates the tagged modules of the bundle at path in place
// and returns the run report.
func ObfuscateBundle(ctx context.Context, path string, cfg *Config, logger zerolog.Logger) (*engine.Report, error) {
	eng, err := engine.New(cfg.Obfuscator, logger)
	if err != nil {
		return nil, err
	}
	p := bundle.NewPipeline(afero.NewOsFs(), cfg, eng, logger)
	res, err := p.ProcessFile(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := p.Finish(res); err != nil {
		return nil, err
	}
	return res.Report, nil
}
