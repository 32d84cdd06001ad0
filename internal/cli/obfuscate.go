package cli

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/benzoXdev/bundleobf/internal/bundle"
	"github.com/benzoXdev/bundleobf/internal/output"
)

type obfuscateFlags struct {
	seed            int64
	sourcemapOutput string
	brotli          bool
	report          string
	keepTemp        bool
}

func newObfuscateCommand(g *globalFlags) *cobra.Command {
	f := &obfuscateFlags{}
	cmd := &cobra.Command{
		Use:   "obfuscate <bundle> [bundle...]",
		Short: "Obfuscate the tagged modules of existing bundles in place",
		Long: `Obfuscate the tagged modules of bundles written by any bundler whose module
serializer wrapped application modules in /*!jso-beg:<key>*/ ... /*!jso-end*/.
Sentinels are removed from the result. On error the bundle is left untouched.`,
		Example: `  bundleobf obfuscate dist/index.bundle.js --seed 42
  bundleobf obfuscate dist/*.js --report build/obf-report.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("seed") {
				cfg.Run.Seed = &f.seed
			}
			if f.report != "" {
				cfg.Run.Report = f.report
			}
			if f.keepTemp {
				cfg.Run.LogObfuscatedFiles = true
			}
			fs := afero.NewOsFs()
			if reason := cfg.SkipReason(); reason != "" {
				logger.Warn().Str("reason", reason).Msgf("Obfuscation SKIPPED [%s]", reason)
				return stripFiles(fs, args, logger)
			}
			if f.sourcemapOutput != "" {
				logger.Warn().Str("sourcemap", f.sourcemapOutput).Msg("Source maps generated by the bundler will not match the obfuscated output")
			}
			eng, err := newEngine(cfg, logger)
			if err != nil {
				return err
			}
			pipeline := bundle.NewPipeline(fs, cfg, eng, logger)
			out := output.New(fs, f.brotli, logger)
			for _, path := range args {
				res, err := pipeline.ProcessFile(cmd.Context(), path)
				if err != nil {
					return err
				}
				if err := pipeline.Finish(res); err != nil {
					return err
				}
				if f.brotli {
					if _, err := out.CompressFile(path); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "obfuscation seed (overrides run.seed)")
	cmd.Flags().StringVar(&f.sourcemapOutput, "sourcemap-output", "", "source map written by the bundler, if any")
	cmd.Flags().BoolVar(&f.brotli, "brotli", false, "also write brotli-compressed .br files")
	cmd.Flags().StringVar(&f.report, "report", "", "write a JSON or YAML report to this path (overrides run.report)")
	cmd.Flags().BoolVar(&f.keepTemp, "keep-temp", false, "keep module files under <project_root>/.jso (run.log_obfuscated_files)")
	return cmd
}
