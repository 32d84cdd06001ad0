package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/benzoXdev/bundleobf/internal/driver"
	"github.com/benzoXdev/bundleobf/internal/tags"
)

func newStripCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "strip <bundle> [bundle...]",
		Short: "Remove module sentinels from bundles without obfuscating",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := g.setup(cmd)
			if err != nil {
				return err
			}
			return stripFiles(afero.NewOsFs(), args, logger)
		},
	}
}

func stripFiles(fs afero.Fs, paths []string, logger zerolog.Logger) error {
	for _, path := range paths {
		text, err := driver.ReadSource(fs, path)
		if err != nil {
			return err
		}
		if !tags.Contains(text) {
			logger.Debug().Str("bundle", path).Msg("No sentinels")
			continue
		}
		if err := driver.WriteFile(fs, path, []byte(tags.Strip(text))); err != nil {
			return err
		}
		logger.Info().Str("bundle", path).Msg("Sentinels removed")
	}
	return nil
}
