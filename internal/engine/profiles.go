package engine

import (
	"fmt"
	"regexp"
	"strings"
)

// Engine names.
const (
	EngineESBuild = "esbuild"
	EngineExec    = "exec"
)

// ApplyProfile fills the pipeline and probabilities a profile implies. Values
// set explicitly are kept.
func ApplyProfile(opts *Options) error {
	switch strings.ToLower(opts.Profile) {
	case "":
		if opts.Pipeline == "" {
			opts.Pipeline = "minify"
		}
	case "light":
		if opts.Pipeline == "" {
			opts.Pipeline = "minify"
		}
		opts.MinifyIdentifiers = true
	case "balanced":
		if opts.Pipeline == "" {
			opts.Pipeline = "minify,strenc,numenc"
		}
		opts.MinifyIdentifiers = true
		opts.MinifySyntax = true
		if opts.StringEncoding == 0 {
			opts.StringEncoding = 30
		}
		opts.NumberEncoding = true
	case "heavy":
		if opts.Pipeline == "" {
			opts.Pipeline = "minify,strenc,numenc,dead"
		}
		opts.MinifyIdentifiers = true
		opts.MinifySyntax = true
		opts.MinifyWhitespace = true
		opts.DropDebugger = true
		if opts.StringEncoding == 0 {
			opts.StringEncoding = 80
		}
		opts.NumberEncoding = true
		if opts.DeadCode == 0 {
			opts.DeadCode = 50
		}
	default:
		return fmt.Errorf("%w: unknown profile %q (light|balanced|heavy)", ErrInvalidOptions, opts.Profile)
	}
	return nil
}

// ValidateOptions checks ranges and enumerations.
func ValidateOptions(opts Options) error {
	switch strings.ToLower(opts.Engine) {
	case "", EngineESBuild, EngineExec:
	default:
		return fmt.Errorf("%w: unknown engine %q (esbuild|exec)", ErrInvalidOptions, opts.Engine)
	}
	if opts.StringEncoding < 0 || opts.StringEncoding > 100 {
		return fmt.Errorf("%w: string_encoding %d (0..100)", ErrInvalidOptions, opts.StringEncoding)
	}
	if opts.DeadCode < 0 || opts.DeadCode > 100 {
		return fmt.Errorf("%w: dead_code %d (0..100)", ErrInvalidOptions, opts.DeadCode)
	}
	if opts.MangleProps != "" {
		if _, err := regexp.Compile(opts.MangleProps); err != nil {
			return fmt.Errorf("%w: mangle_props: %v", ErrInvalidOptions, err)
		}
	}
	if opts.Target != "" {
		if _, err := ParseTarget(opts.Target); err != nil {
			return err
		}
	}
	if opts.ExecTimeout < 0 {
		return fmt.Errorf("%w: exec_timeout must not be negative", ErrInvalidOptions)
	}
	return nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func buildPipeline(opts *Options) ([]Transform, error) {
	var out []Transform
	for _, it := range splitCSV(opts.Pipeline) {
		switch strings.ToLower(it) {
		case "minify":
			out = append(out, &MinifyTransform{})
		case "strenc":
			if opts.StringEncoding > 0 {
				out = append(out, &StringEncodeTransform{Percent: opts.StringEncoding})
			}
		case "numenc":
			if opts.NumberEncoding {
				out = append(out, &NumberEncodeTransform{})
			}
		case "dead":
			if opts.DeadCode > 0 {
				out = append(out, &DeadCodeTransform{Prob: opts.DeadCode})
			}
		default:
			return nil, fmt.Errorf("%w: unknown pipeline item %q", ErrInvalidOptions, it)
		}
	}
	return out, nil
}

// Techniques lists the transforms opts enables, in pipeline order.
func Techniques(opts Options) []string {
	if strings.EqualFold(opts.Engine, EngineExec) {
		return []string{EngineExec}
	}
	transforms, err := buildPipeline(&opts)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(transforms))
	for _, t := range transforms {
		names = append(names, t.Name())
	}
	return names
}
