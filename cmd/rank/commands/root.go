package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bizmatters/warm-ranker/internal/config"
)

// NewRootCmd builds the rank command tree. Errors are returned to the caller, which prints
// them to stderr and exits non-zero.
func NewRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "rank",
		Short: "Rank a contact export against an idea",
		Long: `Rank runs the warm-ranker pipeline locally: the file is staged into a private
artifact, the scorer is located and invoked, and its JSON output is printed to stdout.

The same RANKER_* environment variables as the API server apply. A YAML file given
with --config is loaded first and the environment is applied on top.

Examples:
  # Rank a LinkedIn export
  rank --idea "AI tools for marketers" --file connections.csv

  # Show which executables would be tried, in order
  rank candidates`,
		Args: cobra.NoArgs,
		// Enable strict flag parsing - unknown flags will cause an error
		FParseErrWhitelist: cobra.FParseErrWhitelist{},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")

	opts := &rankOptions{configPath: &configPath}
	root.Flags().StringVarP(&opts.idea, "idea", "i", "", "Idea the contacts are ranked against")
	root.Flags().StringVarP(&opts.file, "file", "f", "", "Path to the contact export")
	root.RunE = opts.run

	root.AddCommand(newCandidatesCmd(&configPath))

	root.SilenceErrors = true
	root.SilenceUsage = true
	return root
}

// loadConfig mirrors the server: file (when given), then RANKER_* overrides, then resolution
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.FromEnvironment()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}
	if err := cfg.Resolve(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}
