package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fbkclanna/grove/internal/eval"
	"gopkg.in/yaml.v3"
)

// document mirrors one grove.yaml layer. Ordered sections stay as raw
// nodes because yaml.v3 maps would lose declaration order.
type document struct {
	Grove struct {
		Root  string `yaml:"root"`
		Shell string `yaml:"shell"`
	} `yaml:"grove"`
	Includes    []string  `yaml:"includes"`
	Variables   yaml.Node `yaml:"variables"`
	Environment yaml.Node `yaml:"environment"`
	Commands    yaml.Node `yaml:"commands"`
	Trees       yaml.Node `yaml:"trees"`
	Groups      yaml.Node `yaml:"groups"`
}

// treeDoc mirrors one tree entry.
type treeDoc struct {
	Path        string    `yaml:"path"`
	URL         string    `yaml:"url"`
	Shell       string    `yaml:"shell"`
	Variables   yaml.Node `yaml:"variables"`
	Environment yaml.Node `yaml:"environment"`
	Commands    yaml.Node `yaml:"commands"`
}

// Load reads and layers one or more config files, later files over
// earlier ones. Each file's includes are loaded before the file itself.
func Load(paths ...string) (*Config, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("config: no config file given")
	}

	cfg := &Config{Shell: DefaultShell}
	seen := make(map[string]bool)
	for _, p := range paths {
		if err := loadFile(cfg, p, seen); err != nil {
			return nil, err
		}
	}

	first, err := filepath.Abs(paths[0])
	if err != nil {
		return nil, fmt.Errorf("config: resolving %s: %w", paths[0], err)
	}
	cfg.Path = first
	cfg.Dir = filepath.Dir(first)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse layers a single in-memory document onto a fresh config rooted at
// dir. Includes are not followed.
func Parse(data []byte, dir string) (*Config, error) {
	cfg := &Config{Shell: DefaultShell, Dir: dir}
	if err := applyData(cfg, data, dir, nil); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string, seen map[string]bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config: resolving %s: %w", path, err)
	}
	if seen[abs] {
		return fmt.Errorf("config: include cycle through %s", abs)
	}
	seen[abs] = true

	data, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	return applyData(cfg, data, filepath.Dir(abs), seen)
}

func applyData(cfg *Config, data []byte, dir string, seen map[string]bool) error {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("config: parsing YAML: %w", err)
	}

	// Includes layer first; the including document wins.
	for _, inc := range doc.Includes {
		if seen == nil {
			return fmt.Errorf("config: includes are not supported for in-memory documents")
		}
		p := inc
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		if err := loadFile(cfg, p, seen); err != nil {
			return err
		}
	}

	return merge(cfg, &doc)
}

// merge applies one parsed layer. Same-named trees, groups, commands,
// and variables replace earlier definitions in place; new names append
// in declaration order. Environment entries always append, because they
// are ordered merge operations rather than single values.
func merge(cfg *Config, doc *document) error {
	if doc.Grove.Root != "" {
		cfg.Root = doc.Grove.Root
	}
	if doc.Grove.Shell != "" {
		cfg.Shell = doc.Grove.Shell
	}

	vars, err := decodeVars(&doc.Variables, "variables")
	if err != nil {
		return err
	}
	for _, v := range vars {
		cfg.Variables = upsertVar(cfg.Variables, v)
	}

	env, err := decodeEnv(&doc.Environment, "environment")
	if err != nil {
		return err
	}
	cfg.Environment = append(cfg.Environment, env...)

	cmds, err := decodeCommands(&doc.Commands, "commands")
	if err != nil {
		return err
	}
	for _, cmd := range cmds {
		cfg.Commands = upsertCommand(cfg.Commands, cmd)
	}

	trees, err := decodeTrees(&doc.Trees)
	if err != nil {
		return err
	}
	for _, t := range trees {
		if existing := cfg.Tree(t.Name); existing != nil {
			*existing = *t
		} else {
			cfg.Trees = append(cfg.Trees, t)
		}
	}

	groups, err := decodeGroups(&doc.Groups)
	if err != nil {
		return err
	}
	for _, g := range groups {
		if existing := cfg.Group(g.Name); existing != nil {
			*existing = *g
		} else {
			cfg.Groups = append(cfg.Groups, g)
		}
	}
	return nil
}

func upsertVar(vars []eval.Var, v eval.Var) []eval.Var {
	for i := range vars {
		if vars[i].Name == v.Name {
			vars[i] = v
			return vars
		}
	}
	return append(vars, v)
}

func upsertCommand(cmds []Command, cmd Command) []Command {
	for i := range cmds {
		if cmds[i].Name == cmd.Name {
			cmds[i] = cmd
			return cmds
		}
	}
	return append(cmds, cmd)
}

func decodeVars(n *yaml.Node, section string) ([]eval.Var, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config: %s must be a mapping", section)
	}
	var vars []eval.Var
	for i := 0; i < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("config: %s.%s must be a string", section, k.Value)
		}
		vars = append(vars, eval.Var{Name: k.Value, Expr: v.Value})
	}
	return vars, nil
}

func decodeEnv(n *yaml.Node, section string) ([]eval.EnvEntry, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config: %s must be a mapping", section)
	}
	var entries []eval.EnvEntry
	for i := 0; i < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("config: %s.%s must be a string", section, k.Value)
		}
		name, mode := parseEnvName(k.Value)
		if name == "" {
			return nil, fmt.Errorf("config: %s: empty variable name in %q", section, k.Value)
		}
		entries = append(entries, eval.EnvEntry{Name: name, Mode: mode, Expr: v.Value})
	}
	return entries, nil
}

// parseEnvName maps the entry-name syntax to a merge mode:
// "+NAME" prepends, "NAME+" appends, "NAME" sets.
func parseEnvName(raw string) (string, eval.EnvMode) {
	if name, ok := strings.CutPrefix(raw, "+"); ok {
		return name, eval.EnvPrepend
	}
	if name, ok := strings.CutSuffix(raw, "+"); ok {
		return name, eval.EnvAppend
	}
	return raw, eval.EnvSet
}

func decodeCommands(n *yaml.Node, section string) ([]Command, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config: %s must be a mapping", section)
	}
	var cmds []Command
	for i := 0; i < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		lines, err := decodeLines(v)
		if err != nil {
			return nil, fmt.Errorf("config: %s.%s: %w", section, k.Value, err)
		}
		cmds = append(cmds, Command{Name: k.Value, Lines: lines})
	}
	return cmds, nil
}

// decodeLines accepts a scalar (one line) or a sequence of scalars.
func decodeLines(n *yaml.Node) ([]string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return []string{n.Value}, nil
	case yaml.SequenceNode:
		lines := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("command lines must be strings")
			}
			lines = append(lines, item.Value)
		}
		return lines, nil
	default:
		return nil, fmt.Errorf("must be a string or a list of strings")
	}
}

func decodeTrees(n *yaml.Node) ([]*Tree, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config: trees must be a mapping")
	}
	var trees []*Tree
	for i := 0; i < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		t := &Tree{Name: k.Value}

		switch v.Kind {
		case yaml.ScalarNode:
			// Shorthand: "name: path".
			t.Path = v.Value
		case yaml.MappingNode:
			var td treeDoc
			if err := v.Decode(&td); err != nil {
				return nil, fmt.Errorf("config: tree %s: %w", k.Value, err)
			}
			t.Path = td.Path
			t.URL = td.URL
			t.Shell = td.Shell
			var err error
			if t.Variables, err = decodeVars(&td.Variables, "trees."+k.Value+".variables"); err != nil {
				return nil, err
			}
			if t.Environment, err = decodeEnv(&td.Environment, "trees."+k.Value+".environment"); err != nil {
				return nil, err
			}
			if t.Commands, err = decodeCommands(&td.Commands, "trees."+k.Value+".commands"); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("config: tree %s must be a mapping or a path string", k.Value)
		}

		if t.Path == "" {
			t.Path = t.Name
		}
		trees = append(trees, t)
	}
	return trees, nil
}

func decodeGroups(n *yaml.Node) ([]*Group, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config: groups must be a mapping")
	}
	var groups []*Group
	for i := 0; i < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if v.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("config: group %s must be a list of names", k.Value)
		}
		g := &Group{Name: k.Value}
		for _, item := range v.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("config: group %s members must be strings", k.Value)
			}
			g.Members = append(g.Members, item.Value)
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func validate(cfg *Config) error {
	treeNames := make(map[string]bool, len(cfg.Trees))
	for _, t := range cfg.Trees {
		if t.Name == "" {
			return fmt.Errorf("config: tree with empty name")
		}
		if treeNames[t.Name] {
			return fmt.Errorf("config: duplicate tree %q", t.Name)
		}
		treeNames[t.Name] = true
	}

	groupNames := make(map[string]bool, len(cfg.Groups))
	for _, g := range cfg.Groups {
		if g.Name == "" {
			return fmt.Errorf("config: group with empty name")
		}
		if groupNames[g.Name] {
			return fmt.Errorf("config: duplicate group %q", g.Name)
		}
		if treeNames[g.Name] {
			return fmt.Errorf("config: %q is both a tree and a group", g.Name)
		}
		groupNames[g.Name] = true
		for _, m := range g.Members {
			if m == "" {
				return fmt.Errorf("config: group %q has an empty member", g.Name)
			}
		}
	}

	for _, g := range cfg.Groups {
		for _, m := range g.Members {
			if !treeNames[m] && !groupNames[m] {
				return fmt.Errorf("config: group %q references unknown name %q", g.Name, m)
			}
		}
	}
	return nil
}
