package main

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/fbkclanna/grove/internal/config"
	"github.com/fbkclanna/grove/internal/dispatch"
	"github.com/fbkclanna/grove/internal/eval"
	"github.com/spf13/cobra"
)

// loadConfig locates, layers, and finalizes the configuration for one
// run, and returns the run's resolver. Explicit --config flags win over
// the GROVE_CONFIG environment variable and the search path.
func loadConfig(ctx context.Context, cmd *cobra.Command) (*config.Config, *eval.Resolver, error) {
	paths, _ := cmd.Root().PersistentFlags().GetStringArray("config")
	if len(paths) == 0 {
		found, err := config.Search()
		if err != nil {
			return nil, nil, err
		}
		paths = []string{found}
	}

	cfg, err := config.Load(paths...)
	if err != nil {
		return nil, nil, err
	}

	resolver := eval.NewResolver(cfg.Shell, eval.ExecRunner{})
	if err := cfg.Finalize(ctx, resolver); err != nil {
		return nil, nil, err
	}

	log.Debug("configuration loaded",
		"path", cfg.Path, "root", cfg.RootPath,
		"trees", len(cfg.Trees), "groups", len(cfg.Groups))
	return cfg, resolver, nil
}

// dispatchOptions seeds dispatch options from the persistent flags and
// the command's output streams.
func dispatchOptions(cmd *cobra.Command) dispatch.Options {
	verbose, _ := cmd.Root().PersistentFlags().GetCount("verbose")
	quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")
	return dispatch.Options{
		Quiet:   quiet,
		Verbose: verbose > 0,
		Stdout:  cmd.OutOrStdout(),
		Stderr:  cmd.ErrOrStderr(),
	}
}
