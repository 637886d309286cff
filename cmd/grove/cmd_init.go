package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fbkclanna/grove/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init <directory>",
		Short: "Create a grove.yaml, interactively when on a terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  runInit,
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing grove.yaml")
	cmd.Flags().Bool("no-input", false, "Skip interactive prompts and write a starter config")
	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := args[0]
	force, _ := cmd.Flags().GetBool("force")
	noInput, _ := cmd.Flags().GetBool("no-input")

	configPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}

	var trees []treeEntry
	if !noInput && term.IsTerminal(int(os.Stdin.Fd())) {
		collected, err := interactiveAddTrees(nil)
		if err != nil {
			return fmt.Errorf("interactive setup: %w", err)
		}
		trees = collected
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	data := renderStarterConfig(trees)
	if err := os.WriteFile(configPath, []byte(data), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", configPath, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created %s with %d trees\n", configPath, len(trees))
	return nil
}

// renderStarterConfig builds the initial grove.yaml text. The template
// keeps section order stable and readable, which yaml marshaling of
// nested maps would not.
func renderStarterConfig(trees []treeEntry) string {
	var b strings.Builder
	b.WriteString("grove:\n")
	b.WriteString("  root: ${GROVE_CONFIG_DIR}\n")
	b.WriteString("  shell: /bin/sh\n")
	b.WriteString("\ncommands:\n")
	b.WriteString("  status: git status -s\n")

	b.WriteString("\ntrees:\n")
	if len(trees) == 0 {
		b.WriteString("  # example:\n")
		b.WriteString("  #   path: src/example\n")
		b.WriteString("  #   url: git@example.com:org/example.git\n")
	}
	for _, t := range trees {
		fmt.Fprintf(&b, "  %s:\n", t.Name)
		fmt.Fprintf(&b, "    path: %s\n", t.Path)
		if t.URL != "" {
			fmt.Fprintf(&b, "    url: %s\n", t.URL)
		}
	}
	return b.String()
}
