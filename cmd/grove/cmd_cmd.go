package main

import (
	"fmt"

	"github.com/fbkclanna/grove/internal/dispatch"
	"github.com/fbkclanna/grove/internal/query"
	"github.com/spf13/cobra"
)

func newCmdCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cmd <query> <command>... [-- <args>...]",
		Short: "Run configured commands over matched trees",
		Long: `Run one or more configured commands over every tree matched by the
query. Arguments after "--" are passed to each script as positional
parameters.`,
		Args: cobra.MinimumNArgs(2),
		RunE: runCmd,
	}
	cmd.Flags().BoolP("keep-going", "k", false, "Continue with remaining trees after a failure")
	cmd.Flags().BoolP("breadth-first", "b", false, "Run each command over all trees before the next command")
	cmd.Flags().Bool("strict", false, "Fail when an inclusion term matches nothing")
	return cmd
}

func runCmd(cmd *cobra.Command, args []string) error {
	keepGoing, _ := cmd.Flags().GetBool("keep-going")
	breadthFirst, _ := cmd.Flags().GetBool("breadth-first")
	strict, _ := cmd.Flags().GetBool("strict")

	args, extraArgs := splitOnDash(cmd, args)
	if len(args) < 2 {
		return fmt.Errorf("usage: grove cmd <query> <command>... [-- <args>...]")
	}
	q, commands := args[0], args[1:]

	ctx := cmd.Context()
	cfg, resolver, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}

	trees, err := query.Resolve(cfg, q, query.Options{Strict: strict})
	if err != nil {
		return err
	}

	opts := dispatchOptions(cmd)
	opts.KeepGoing = keepGoing
	opts.BreadthFirst = breadthFirst
	opts.ExtraArgs = extraArgs

	res, err := dispatch.Run(ctx, cfg, resolver, trees, commands, opts)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return &exitError{code: res.ExitCode}
	}
	return nil
}

// splitOnDash separates arguments before and after the "--" marker.
func splitOnDash(cmd *cobra.Command, args []string) (before, after []string) {
	if at := cmd.ArgsLenAtDash(); at >= 0 {
		return args[:at], args[at:]
	}
	return args, nil
}
