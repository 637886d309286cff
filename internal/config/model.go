package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fbkclanna/grove/internal/eval"
)

// DefaultShell is the process-wide default interpreter when grove.shell
// is not configured.
const DefaultShell = "/bin/sh"

// Built-in variable names seeded ahead of user declarations.
const (
	BuiltinConfigDir = "GROVE_CONFIG_DIR"
	BuiltinRoot      = "GROVE_ROOT"
	BuiltinTreeName  = "TREE_NAME"
	BuiltinTreePath  = "TREE_PATH"
)

// Command is a named script: one or more lines run by the interpreter.
type Command struct {
	Name  string
	Lines []string
}

// Tree is one managed working directory with its own variables,
// environment, and commands.
type Tree struct {
	Name        string
	Path        string // raw expression, may reference variables
	URL         string
	Shell       string // interpreter override, empty means inherit
	Variables   []eval.Var
	Environment []eval.EnvEntry
	Commands    []Command

	// ResolvedPath is the absolute path computed by Finalize.
	ResolvedPath string
}

// ShellOr returns the tree's interpreter override or def.
func (t *Tree) ShellOr(def string) string {
	if t.Shell != "" {
		return t.Shell
	}
	return def
}

// Group is a named, ordered set of tree and group references used for
// selection only.
type Group struct {
	Name    string
	Members []string
}

// Config is the merged configuration model. It is mutable while layers
// are applied and frozen after Finalize.
type Config struct {
	Path string // root config file, empty for in-memory configs
	Dir  string // directory of the root config file

	Root  string // grove.root expression, empty means the config dir
	Shell string

	Variables   []eval.Var
	Environment []eval.EnvEntry
	Commands    []Command
	Trees       []*Tree
	Groups      []*Group

	// ConfigDir and RootPath are computed by Finalize.
	ConfigDir string
	RootPath  string
}

// Tree returns the named tree, or nil.
func (c *Config) Tree(name string) *Tree {
	for _, t := range c.Trees {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Group returns the named group, or nil.
func (c *Config) Group(name string) *Group {
	for _, g := range c.Groups {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// CommandFor looks up a named command for a tree: the tree's own
// definition shadows a same-named global one.
func (c *Config) CommandFor(t *Tree, name string) (Command, bool) {
	for _, cmd := range t.Commands {
		if cmd.Name == name {
			return cmd, true
		}
	}
	for _, cmd := range c.Commands {
		if cmd.Name == name {
			return cmd, true
		}
	}
	return Command{}, false
}

// GlobalScope returns the scope chain for expressions outside any tree.
func (c *Config) GlobalScope() *eval.Scope {
	return eval.NewScope(c.globalFrame())
}

// TreeScope returns the scope chain for expressions within a tree:
// tree builtins and variables first, then the global frame.
func (c *Config) TreeScope(t *Tree) *eval.Scope {
	vars := make([]eval.Var, 0, len(t.Variables)+2)
	vars = append(vars,
		eval.Var{Name: BuiltinTreeName, Expr: t.Name, Literal: true},
		eval.Var{Name: BuiltinTreePath, Expr: t.ResolvedPath, Literal: true},
	)
	vars = append(vars, t.Variables...)
	frame := &eval.Frame{ID: "tree:" + t.Name, Vars: vars}
	return eval.NewScope(frame, c.globalFrame())
}

// pathScope is the chain used to resolve a tree's own path expression.
// TREE_PATH is deliberately absent: the path is what is being computed.
func (c *Config) pathScope(t *Tree) *eval.Scope {
	vars := make([]eval.Var, 0, len(t.Variables)+1)
	vars = append(vars, eval.Var{Name: BuiltinTreeName, Expr: t.Name, Literal: true})
	vars = append(vars, t.Variables...)
	frame := &eval.Frame{ID: "tree-path:" + t.Name, Vars: vars}
	return eval.NewScope(frame, c.globalFrame())
}

func (c *Config) globalFrame() *eval.Frame {
	vars := make([]eval.Var, 0, len(c.Variables)+2)
	vars = append(vars, eval.Var{Name: BuiltinConfigDir, Expr: c.ConfigDir, Literal: true})
	if c.RootPath != "" {
		vars = append(vars, eval.Var{Name: BuiltinRoot, Expr: c.RootPath, Literal: true})
	}
	vars = append(vars, c.Variables...)
	return &eval.Frame{ID: "global", Vars: vars}
}

// Finalize resolves grove.root and every tree path. It runs once per
// load, before any query or dispatch; the model is read-only afterwards.
func (c *Config) Finalize(ctx context.Context, r *eval.Resolver) error {
	c.ConfigDir = c.Dir
	if dir := os.Getenv(BuiltinConfigDir); dir != "" {
		c.ConfigDir = dir
	}

	root := c.ConfigDir
	if c.Root != "" {
		val, err := r.Eval(ctx, c.GlobalScope(), c.Root)
		if err != nil {
			return fmt.Errorf("resolving grove.root: %w", err)
		}
		root = val
	}
	c.RootPath = abspath(root, c.ConfigDir)

	for _, t := range c.Trees {
		val, err := r.Eval(ctx, c.pathScope(t), t.Path)
		if err != nil {
			return fmt.Errorf("resolving path for tree %q: %w", t.Name, err)
		}
		t.ResolvedPath = abspath(val, c.RootPath)
	}
	return nil
}

// abspath anchors a relative path at base. Absolute paths pass through;
// a leading ~ resolves against the user's home directory.
func abspath(path, base string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}
