package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/fbkclanna/grove/internal/config"
	"github.com/fbkclanna/grove/internal/query"
	"github.com/fbkclanna/grove/internal/ui"
	"github.com/spf13/cobra"
)

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ls [query]",
		Aliases: []string{"list"},
		Short:   "List matched trees and their resolved paths",
		Args:    cobra.MaximumNArgs(1),
		RunE:    runLs,
	}
	cmd.Flags().Bool("json", false, "Output as JSON")
	cmd.Flags().Bool("strict", false, "Fail when an inclusion term matches nothing")
	return cmd
}

type treeInfo struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	URL    string   `json:"url,omitempty"`
	Groups []string `json:"groups,omitempty"`
	Exists bool     `json:"exists"`
}

func runLs(cmd *cobra.Command, args []string) error {
	strict, _ := cmd.Flags().GetBool("strict")
	asJSON, _ := cmd.Flags().GetBool("json")

	q := "*"
	if len(args) == 1 {
		q = args[0]
	}

	ctx := cmd.Context()
	cfg, _, err := loadConfig(ctx, cmd)
	if err != nil {
		return err
	}

	trees, err := query.Resolve(cfg, q, query.Options{Strict: strict})
	if err != nil {
		return err
	}

	infos := make([]treeInfo, 0, len(trees))
	for _, t := range trees {
		infos = append(infos, collectTreeInfo(cfg, t))
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	tbl := ui.NewTable("TREE", "PATH", "GROUPS", "STATE")
	for _, info := range infos {
		state := "present"
		if !info.Exists {
			state = "missing"
		}
		tbl.Row(info.Name, info.Path, strings.Join(info.Groups, ","), state)
	}
	return tbl.Render(out)
}

func collectTreeInfo(cfg *config.Config, t *config.Tree) treeInfo {
	info := treeInfo{Name: t.Name, Path: t.ResolvedPath, URL: t.URL}
	if _, err := os.Stat(t.ResolvedPath); err == nil {
		info.Exists = true
	}
	for _, g := range cfg.Groups {
		if groupContains(cfg, g, t.Name, nil) {
			info.Groups = append(info.Groups, g.Name)
		}
	}
	return info
}

// groupContains reports whether tree is a direct or transitive member of
// g. Cyclic groups are treated as not containing the tree; the cycle
// itself surfaces as an error when the group is queried.
func groupContains(cfg *config.Config, g *config.Group, tree string, visiting []string) bool {
	for _, name := range visiting {
		if name == g.Name {
			return false
		}
	}
	visiting = append(visiting, g.Name)
	for _, m := range g.Members {
		if m == tree {
			return true
		}
		if sub := cfg.Group(m); sub != nil && groupContains(cfg, sub, tree, visiting) {
			return true
		}
	}
	return false
}
