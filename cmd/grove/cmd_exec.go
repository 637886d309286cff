package main

import (
	"fmt"

	"github.com/fbkclanna/grove/internal/dispatch"
	"github.com/fbkclanna/grove/internal/query"
	"github.com/spf13/cobra"
)

func newExecCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <query> -- <command> [args...]",
		Short: "Run an ad-hoc command in each matched tree",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runExec,
	}
	cmd.Flags().BoolP("keep-going", "k", false, "Continue with remaining trees after a failure")
	cmd.Flags().Bool("strict", false, "Fail when an inclusion term matches nothing")
	return cmd
}

func runExec(cmd *cobra.Command, args []string) error {
	keepGoing, _ := cmd.Flags().GetBool("keep-going")
	strict, _ := cmd.Flags().GetBool("strict")

	before, after := splitOnDash(cmd, args)
	if len(after) == 0 {
		// Without a "--" marker the first argument is the query.
		before, after = args[:1], args[1:]
	}
	if len(before) != 1 || len(after) == 0 {
		return fmt.Errorf("usage: grove exec <query> -- <command> [args...]")
	}

	ctx := cmd.Context()
	cfg, resolver, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}

	trees, err := query.Resolve(cfg, before[0], query.Options{Strict: strict})
	if err != nil {
		return err
	}

	opts := dispatchOptions(cmd)
	opts.KeepGoing = keepGoing

	res, err := dispatch.Exec(ctx, cfg, resolver, trees, after, opts)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return &exitError{code: res.ExitCode}
	}
	return nil
}
