// Package config loads bundleobf settings from a YAML file, a .env file and
// BUNDLEOBF_* environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/benzoXdev/bundleobf/internal/engine"
)

// EnvPrefix prefixes every environment override (run.seed -> BUNDLEOBF_RUN_SEED).
const EnvPrefix = "BUNDLEOBF"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the root configuration.
type Config struct {
	Obfuscator engine.Options `mapstructure:"obfuscator" yaml:"obfuscator"`
	Run        RunConfig      `mapstructure:"run" yaml:"run"`
	Log        LogConfig      `mapstructure:"log" yaml:"log"`
}

// RunConfig controls when and how the plugin runs.
type RunConfig struct {
	ProjectRoot string `mapstructure:"project_root" yaml:"project_root"`
	// Dev marks a development build; obfuscation is skipped unless RunInDebug.
	Dev        bool `mapstructure:"dev" yaml:"dev"`
	RunInDebug bool `mapstructure:"run_in_debug" yaml:"run_in_debug"`
	Disable    bool `mapstructure:"disable" yaml:"disable"`
	// LogObfuscatedFiles keeps the temp tree under <project_root>/.jso.
	LogObfuscatedFiles bool     `mapstructure:"log_obfuscated_files" yaml:"log_obfuscated_files"`
	SourceMapLocation  string   `mapstructure:"source_map_location" yaml:"source_map_location"`
	Pattern            string   `mapstructure:"pattern" yaml:"pattern"`
	Excludes           []string `mapstructure:"excludes" yaml:"excludes"`
	Seed               *int64   `mapstructure:"seed" yaml:"seed"`
	TempDir            string   `mapstructure:"temp_dir" yaml:"temp_dir"`
	Report             string   `mapstructure:"report" yaml:"report"`
	Concurrency        int      `mapstructure:"concurrency" yaml:"concurrency"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load reads configuration. With an empty path, bundleobf.yaml is searched in
// . and ./config; a missing file is not an error then.
func Load(path string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("bundleobf")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("No config file found, using environment variables and defaults")
	} else {
		log.Debug().Str("file", v.ConfigFileUsed()).Msg("Config file loaded")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if used := v.ConfigFileUsed(); used != "" {
		extra, err := readExtra(used)
		if err != nil {
			return nil, err
		}
		if extra != nil {
			cfg.Obfuscator.Extra = extra
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration built from defaults and the environment
// only.
func Default() (*Config, error) {
	var cfg Config
	if err := newViper().Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Keys without a default are invisible to AutomaticEnv.
	_ = v.BindEnv("obfuscator.seed")
	_ = v.BindEnv("run.seed")
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("obfuscator.engine", engine.EngineESBuild)
	v.SetDefault("obfuscator.profile", "balanced")
	v.SetDefault("obfuscator.pipeline", "")
	v.SetDefault("obfuscator.keep_names", false)
	v.SetDefault("obfuscator.drop_console", false)
	v.SetDefault("obfuscator.drop_debugger", false)
	v.SetDefault("obfuscator.target", "")
	v.SetDefault("obfuscator.source_map", false)
	v.SetDefault("obfuscator.validate", true)
	v.SetDefault("obfuscator.exec_command", "javascript-obfuscator")
	v.SetDefault("obfuscator.exec_timeout", "2m")

	v.SetDefault("run.project_root", "")
	v.SetDefault("run.dev", false)
	v.SetDefault("run.run_in_debug", false)
	v.SetDefault("run.disable", false)
	v.SetDefault("run.log_obfuscated_files", false)
	v.SetDefault("run.source_map_location", "index.bundle.map")
	v.SetDefault("run.pattern", "**/*.js")
	v.SetDefault("run.excludes", []string{})
	v.SetDefault("run.temp_dir", "")
	v.SetDefault("run.report", "")
	v.SetDefault("run.concurrency", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// readExtra re-reads obfuscator.extra from the config file, since viper
// lower-cases map keys and the external obfuscator's options are camelCase.
func readExtra(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	var raw struct {
		Obfuscator struct {
			Extra map[string]any `yaml:"extra" json:"extra"`
		} `yaml:"obfuscator" json:"obfuscator"`
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &raw)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to decode obfuscator.extra: %w", err)
	}
	return raw.Obfuscator.Extra, nil
}

// loadEnvFile loads environment variables from the first .env file found.
func loadEnvFile() error {
	for _, location := range []string{".env", ".env.local"} {
		if _, err := os.Stat(location); err != nil {
			continue
		}
		if err := godotenv.Load(location); err != nil {
			return fmt.Errorf("error loading .env file from %s: %w", location, err)
		}
		log.Debug().Str("file", location).Msg(".env file loaded")
		return nil
	}
	return errors.New("no .env file found")
}

// Validate checks the configuration and resolves the project root to an
// absolute path.
func (c *Config) Validate() error {
	opts := c.Obfuscator
	if err := engine.ApplyProfile(&opts); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := engine.ValidateOptions(opts); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Run.Concurrency < 0 {
		return fmt.Errorf("%w: run.concurrency must not be negative", ErrInvalidConfig)
	}
	if c.Log.Level != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
			return fmt.Errorf("%w: log.level: %v", ErrInvalidConfig, err)
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("%w: log.format %q (console|json)", ErrInvalidConfig, c.Log.Format)
	}
	root := c.Run.ProjectRoot
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("%w: run.project_root: %v", ErrInvalidConfig, err)
	}
	c.Run.ProjectRoot = abs
	return nil
}

// SkipReason returns why obfuscation should not run, or "" when it should.
func (c *Config) SkipReason() string {
	switch {
	case c.Run.Disable:
		return "disabled by configuration"
	case c.Run.Dev && !c.Run.RunInDebug:
		return "development build (run_in_debug=false)"
	}
	return ""
}

// SourceMapPath returns run.source_map_location resolved against the project root.
func (c *Config) SourceMapPath() string {
	p := c.Run.SourceMapLocation
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Run.ProjectRoot, p)
}
