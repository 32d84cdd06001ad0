package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ESBuildEngine is the built-in engine: an esbuild minification pass followed
// by seeded source-level transforms.
type ESBuildEngine struct {
	opts       Options
	transforms []Transform
}

// New returns the engine selected by opts.Engine. opts is validated and the
// profile applied first.
func New(opts Options, logger zerolog.Logger) (Engine, error) {
	if err := ApplyProfile(&opts); err != nil {
		return nil, err
	}
	if err := ValidateOptions(opts); err != nil {
		return nil, err
	}
	if strings.EqualFold(opts.Engine, EngineExec) {
		eng, err := NewExecEngine(opts, logger)
		if err != nil {
			return nil, err
		}
		return eng, nil
	}
	eng, err := NewESBuildEngine(opts)
	if err != nil {
		return nil, err
	}
	return eng, nil
}

// NewESBuildEngine builds the transform pipeline for opts.
func NewESBuildEngine(opts Options) (*ESBuildEngine, error) {
	transforms, err := buildPipeline(&opts)
	if err != nil {
		return nil, err
	}
	return &ESBuildEngine{opts: opts, transforms: transforms}, nil
}

func (e *ESBuildEngine) Name() string { return EngineESBuild }

// Obfuscate runs the pipeline over one module with an RNG derived from seed
// and name.
func (e *ESBuildEngine) Obfuscate(ctx context.Context, name, code string, seed int64) (string, error) {
	tctx := &Ctx{
		Rng:  InitRNG(FileSeed(seed, name)),
		Opts: &e.opts,
		File: name,
	}
	js := code
	var err error
	for _, t := range e.transforms {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		js, err = t.Apply(js, tctx)
		if err != nil {
			return "", fmt.Errorf("transform %s failed on %s: %w", t.Name(), name, err)
		}
	}
	if e.opts.Validate {
		if err := validateSyntax(name, js); err != nil {
			return "", err
		}
	}
	return js, nil
}
