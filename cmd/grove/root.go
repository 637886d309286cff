package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "grove",
		Short:         "Git tree organizer: run commands over queried worktrees",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if dir, _ := cmd.Flags().GetString("chdir"); dir != "" {
				if err := os.Chdir(dir); err != nil {
					return fmt.Errorf("could not chdir to %q: %w", dir, err)
				}
			}
			verbose, _ := cmd.Flags().GetCount("verbose")
			quiet, _ := cmd.Flags().GetBool("quiet")
			switch {
			case quiet:
				log.SetLevel(log.ErrorLevel)
			case verbose >= 2:
				log.SetLevel(log.DebugLevel)
			case verbose == 1:
				log.SetLevel(log.InfoLevel)
			default:
				log.SetLevel(log.WarnLevel)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringArrayP("config", "c", nil,
		"Config file (repeatable; later files layer over earlier ones)")
	cmd.PersistentFlags().StringP("chdir", "C", "",
		"Change directory before locating grove.yaml")
	cmd.PersistentFlags().CountP("verbose", "v", "Increase verbosity")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress tree headers and notices")

	cmd.AddCommand(
		newInitCmd(),
		newLsCmd(),
		newCmdCmd(),
		newExecCmd(),
		newEvalCmd(),
	)

	return cmd
}
