package commands

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"
)

func newCandidatesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "candidates",
		Short: "Print the scorer executables in the order they are tried",
		Long: `Print the effective candidate list. The override variable (PYTHON_PATH unless
configured otherwise) comes first when set; each line notes whether the candidate
currently resolves on this machine.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, candidate := range cfg.EffectiveCandidates() {
				status := "missing"
				if resolved, err := exec.LookPath(candidate); err == nil {
					status = resolved
				}
				fmt.Fprintf(out, "%s\t%s\n", candidate, status)
			}
			return nil
		},
	}
}
