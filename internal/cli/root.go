// Package cli provides the cobra commands of the bundleobf binary.
package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/benzoXdev/bundleobf/internal/config"
	"github.com/benzoXdev/bundleobf/internal/engine"
	"github.com/benzoXdev/bundleobf/internal/logging"
)

type globalFlags struct {
	cfgFile   string
	logLevel  string
	logFormat string
	quiet     bool
}

// NewRootCommand returns the bundleobf command tree.
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "bundleobf",
		Short: "Obfuscate the application modules of JavaScript bundles",
		Long: `bundleobf tags application modules while esbuild bundles them, then
obfuscates each tagged module in place. Vendor code and the bundler runtime are
left byte for byte as the bundler wrote them.

Get started:
  bundleobf build src/index.ts --outfile dist/app.js
  bundleobf obfuscate dist/app.js
  bundleobf --help`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.cfgFile, "config", "", "config file (default is ./bundleobf.yaml or ./config/bundleobf.yaml)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level: trace, debug, info, warn, error (overrides log.level)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "log format: console, json (overrides log.format)")
	root.PersistentFlags().BoolVarP(&g.quiet, "quiet", "q", false, "only log warnings and errors")

	root.AddCommand(newBuildCommand(g))
	root.AddCommand(newObfuscateCommand(g))
	root.AddCommand(newStripCommand(g))
	root.AddCommand(newVersionCommand())
	return root
}

// Execute runs the command tree with args under ctx.
func Execute(ctx context.Context, args []string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// setup loads the configuration and installs the logger for cmd.
func (g *globalFlags) setup(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(g.cfgFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}
	if g.quiet {
		cfg.Log.Level = "warn"
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	logger.Debug().Str("version", engine.Version()).Str("command", cmd.Name()).Msg("Starting")
	return cfg, logger, nil
}

// newEngine builds the engine unless obfuscation is skipped.
func newEngine(cfg *config.Config, logger zerolog.Logger) (engine.Engine, error) {
	if cfg.SkipReason() != "" {
		return nil, nil
	}
	eng, err := engine.New(cfg.Obfuscator, logger)
	if err != nil {
		return nil, fmt.Errorf("creating %s engine: %w", engineName(cfg), err)
	}
	return eng, nil
}

func engineName(cfg *config.Config) string {
	if cfg.Obfuscator.Engine == "" {
		return engine.EngineESBuild
	}
	return strings.ToLower(cfg.Obfuscator.Engine)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), engine.VersionFull())
		},
	}
}
