package engine

import (
	"context"
	"errors"
	mathrand "math/rand"
	"time"
)

// ErrInvalidOptions is wrapped by every option validation failure.
var ErrInvalidOptions = errors.New("invalid obfuscator options")

// Options configures the obfuscation engine. Field tags follow the
// "obfuscator" section of bundleobf.yaml.
type Options struct {
	Engine   string `mapstructure:"engine" json:"engine" yaml:"engine"`
	Profile  string `mapstructure:"profile" json:"profile,omitempty" yaml:"profile,omitempty"`
	Pipeline string `mapstructure:"pipeline" json:"pipeline,omitempty" yaml:"pipeline,omitempty"`
	// Seed takes precedence over run.seed. Nil means "not configured".
	Seed *int64 `mapstructure:"seed" json:"seed,omitempty" yaml:"seed,omitempty"`

	MinifyIdentifiers bool   `mapstructure:"minify_identifiers" json:"minifyIdentifiers" yaml:"minify_identifiers"`
	MinifySyntax      bool   `mapstructure:"minify_syntax" json:"minifySyntax" yaml:"minify_syntax"`
	MinifyWhitespace  bool   `mapstructure:"minify_whitespace" json:"minifyWhitespace" yaml:"minify_whitespace"`
	MangleProps       string `mapstructure:"mangle_props" json:"mangleProps,omitempty" yaml:"mangle_props,omitempty"`
	KeepNames         bool   `mapstructure:"keep_names" json:"keepNames" yaml:"keep_names"`
	DropConsole       bool   `mapstructure:"drop_console" json:"dropConsole" yaml:"drop_console"`
	DropDebugger      bool   `mapstructure:"drop_debugger" json:"dropDebugger" yaml:"drop_debugger"`
	Target            string `mapstructure:"target" json:"target,omitempty" yaml:"target,omitempty"`

	StringEncoding int  `mapstructure:"string_encoding" json:"stringEncoding" yaml:"string_encoding"` // percent of literal characters escaped (0..100)
	NumberEncoding bool `mapstructure:"number_encoding" json:"numberEncoding" yaml:"number_encoding"`
	DeadCode       int  `mapstructure:"dead_code" json:"deadCode" yaml:"dead_code"` // injection probability (0..100)

	SourceMap bool `mapstructure:"source_map" json:"sourceMap" yaml:"source_map"`
	Validate  bool `mapstructure:"validate" json:"validate" yaml:"validate"`

	ExecCommand string         `mapstructure:"exec_command" json:"execCommand,omitempty" yaml:"exec_command,omitempty"`
	ExecTimeout time.Duration  `mapstructure:"exec_timeout" json:"execTimeout,omitempty" yaml:"exec_timeout,omitempty"`
	Extra       map[string]any `mapstructure:"extra" json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Engine obfuscates one application module at a time.
type Engine interface {
	Name() string
	Obfuscate(ctx context.Context, name, code string, seed int64) (string, error)
}

// Transform is one stage of the built-in engine's pipeline.
type Transform interface {
	Apply(js string, ctx *Ctx) (string, error)
	Name() string
}

// Ctx carries per-file state through the transform pipeline.
type Ctx struct {
	Rng  *mathrand.Rand
	Opts *Options
	// File is the module key being transformed (used in error messages).
	File string
}
