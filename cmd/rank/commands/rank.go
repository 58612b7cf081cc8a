package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bizmatters/warm-ranker/internal/ranking"
)

type rankOptions struct {
	configPath *string
	idea       string
	file       string
}

func (o *rankOptions) run(cmd *cobra.Command, args []string) error {
	if o.idea == "" && o.file == "" {
		return cmd.Help()
	}
	if o.idea == "" || o.file == "" {
		return fmt.Errorf("both --idea and --file are required")
	}

	cfg, err := loadConfig(*o.configPath)
	if err != nil {
		return err
	}

	pipeline, err := ranking.New(cfg)
	if err != nil {
		return err
	}

	out, err := pipeline.RankFile(cmd.Context(), o.idea, o.file)
	if err != nil {
		return fmt.Errorf("%s: %w", ranking.KindOf(err), err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
