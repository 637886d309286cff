package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newEvalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eval <expression> [tree]",
		Short: "Evaluate a grove expression and print its value",
		Long: `Evaluate an expression in global scope, or within the named tree's
scope when a tree is given. Supports ${variable} references and
"$ command" exec expressions.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runEval,
	}
}

func runEval(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, resolver, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}

	scope := cfg.GlobalScope()
	if len(args) == 2 {
		tree := cfg.Tree(args[1])
		if tree == nil {
			return fmt.Errorf("unknown tree %q", args[1])
		}
		scope = cfg.TreeScope(tree)
	}

	value, err := resolver.Eval(ctx, scope, args[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), value)
	return err
}
