package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/fbkclanna/grove/internal/config"
	"github.com/fbkclanna/grove/internal/eval"
	"github.com/fbkclanna/grove/internal/ui"
)

// argv0 is passed as $0 to dispatched scripts; extra arguments follow as
// $1 onward.
const argv0 = "grove"

// Options configures a dispatch run.
type Options struct {
	// KeepGoing continues with remaining trees after a failure.
	KeepGoing bool
	// BreadthFirst runs each command over all trees before the next
	// command, instead of all commands per tree.
	BreadthFirst bool
	// Quiet suppresses tree headers and skip notices.
	Quiet bool
	// Verbose adds resolved paths to headers and echoes script lines.
	Verbose bool
	// ExtraArgs are appended to every invocation, reaching scripts as
	// positional parameters.
	ExtraArgs []string

	// Stdout and Stderr default to the process streams.
	Stdout io.Writer
	Stderr io.Writer

	// Environ is the ambient environment; defaults to os.Environ().
	Environ []string
}

func (o *Options) setDefaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.Environ == nil {
		o.Environ = os.Environ()
	}
}

// TreeCommandFailedError reports a dispatched command that exited
// non-zero in one tree.
type TreeCommandFailedError struct {
	Tree     string
	Command  string
	ExitCode int
}

func (e *TreeCommandFailedError) Error() string {
	return fmt.Sprintf("command %q failed in tree %q with exit status %d",
		e.Command, e.Tree, e.ExitCode)
}

// TreeResult records one invocation in one tree.
type TreeResult struct {
	Tree     string
	Command  string
	ExitCode int
	Err      error
	Skipped  bool
}

// Result aggregates a dispatch run. ExitCode is the last non-zero
// status, or 0 when every invocation succeeded or the selection was
// empty.
type Result struct {
	Trees    []TreeResult
	ExitCode int
}

func (r *Result) record(tr TreeResult) {
	r.Trees = append(r.Trees, tr)
	if tr.ExitCode != 0 {
		r.ExitCode = tr.ExitCode
	}
}

// runner executes dispatch steps, sharing one resolver so memoized
// variable values carry across trees within a run.
type runner struct {
	cfg      *config.Config
	resolver *eval.Resolver
	opts     Options
	result   *Result

	// envs holds each tree's resolved environment, nil after a
	// resolution failure so the tree is not retried or re-reported.
	envs map[string][]string
}

func newRunner(cfg *config.Config, resolver *eval.Resolver, opts Options) *runner {
	return &runner{
		cfg:      cfg,
		resolver: resolver,
		opts:     opts,
		result:   &Result{},
		envs:     make(map[string][]string),
	}
}

// Run executes the named commands over trees in order. Every command
// must be defined for at least one selected tree; trees that do not
// define a command are skipped for that command. A resolution failure
// in one tree is recorded as that tree's result and leaves sibling
// trees untouched; the keep-going policy decides whether they run.
func Run(ctx context.Context, cfg *config.Config, resolver *eval.Resolver, trees []*config.Tree, commands []string, opts Options) (*Result, error) {
	opts.setDefaults()
	if len(commands) == 0 {
		return nil, fmt.Errorf("no command given")
	}
	for _, name := range commands {
		if !anyTreeHas(cfg, trees, name) && len(trees) > 0 {
			return nil, fmt.Errorf("unknown command %q: not defined for any selected tree", name)
		}
	}

	d := newRunner(cfg, resolver, opts)
	if opts.BreadthFirst {
		d.breadthFirst(ctx, trees, commands)
	} else {
		d.depthFirst(ctx, trees, commands)
	}
	return d.result, nil
}

// Exec runs one ad-hoc argv in every tree, without shell interpretation.
func Exec(ctx context.Context, cfg *config.Config, resolver *eval.Resolver, trees []*config.Tree, argv []string, opts Options) (*Result, error) {
	opts.setDefaults()
	if len(argv) == 0 {
		return nil, fmt.Errorf("no command given")
	}

	d := newRunner(cfg, resolver, opts)
	progress := ui.NewProgress(opts.Stdout, len(trees))
	label := strings.Join(argv, " ")

	for _, tree := range trees {
		if ctx.Err() != nil {
			break
		}
		if !d.enterTree(tree) {
			continue
		}
		env, err := d.treeEnv(ctx, tree)
		if err != nil {
			d.failResolution(tree, err)
			if !opts.KeepGoing {
				break
			}
			continue
		}
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // user-requested command
		cmd.Args = append(cmd.Args, opts.ExtraArgs...)
		tr := d.invoke(cmd, tree, label, env)
		d.result.record(tr)
		if !opts.Quiet {
			progress.Step(tree.Name)
		}
		if tr.ExitCode != 0 && !opts.KeepGoing {
			break
		}
	}
	return d.result, nil
}

// depthFirst runs every command in a tree before moving to the next tree.
func (d *runner) depthFirst(ctx context.Context, trees []*config.Tree, commands []string) {
	for _, tree := range trees {
		if ctx.Err() != nil {
			return
		}
		if !d.enterTree(tree) {
			continue
		}
		env, ok := d.cachedEnv(ctx, tree)
		if !ok {
			if !d.opts.KeepGoing {
				return
			}
			continue
		}
		for _, name := range commands {
			if d.runCommand(ctx, tree, name, env) && !d.opts.KeepGoing {
				return
			}
		}
	}
}

// breadthFirst runs one command over every tree before the next command.
// Each tree's environment is resolved once and reused across commands.
func (d *runner) breadthFirst(ctx context.Context, trees []*config.Tree, commands []string) {
	for _, name := range commands {
		for _, tree := range trees {
			if ctx.Err() != nil {
				return
			}
			if !d.enterTree(tree) {
				continue
			}
			env, ok := d.cachedEnv(ctx, tree)
			if !ok {
				if !d.opts.KeepGoing {
					return
				}
				continue
			}
			if d.runCommand(ctx, tree, name, env) && !d.opts.KeepGoing {
				return
			}
		}
	}
}

// cachedEnv resolves a tree's environment, memoized per run. A failure
// is recorded as the tree's result the first time only; later lookups
// report not-ok without re-resolving.
func (d *runner) cachedEnv(ctx context.Context, tree *config.Tree) ([]string, bool) {
	if env, seen := d.envs[tree.Name]; seen {
		return env, env != nil
	}
	env, err := d.treeEnv(ctx, tree)
	if err != nil {
		d.envs[tree.Name] = nil
		d.failResolution(tree, err)
		return nil, false
	}
	d.envs[tree.Name] = env
	return env, true
}

// failResolution records a resolution-time failure as the tree's own
// result. Sibling trees' scopes stay resolvable.
func (d *runner) failResolution(tree *config.Tree, err error) {
	if !d.opts.Quiet {
		fmt.Fprintln(d.opts.Stderr, ui.Errorf("%v", err))
	}
	d.result.record(TreeResult{Tree: tree.Name, ExitCode: 1, Err: err})
}

// enterTree prints the tree header, or a skip notice when the resolved
// path does not exist. Sparse workspaces are legal, so a missing tree is
// not an error.
func (d *runner) enterTree(tree *config.Tree) bool {
	if _, err := os.Stat(tree.ResolvedPath); err != nil {
		if !d.opts.Quiet {
			fmt.Fprintln(d.opts.Stderr, ui.MissingTree(tree.Name, tree.ResolvedPath, d.opts.Verbose))
		}
		d.result.Trees = append(d.result.Trees, TreeResult{Tree: tree.Name, Skipped: true})
		return false
	}
	if !d.opts.Quiet {
		fmt.Fprintln(d.opts.Stderr, ui.TreeHeader(tree.Name, tree.ResolvedPath, d.opts.Verbose))
	}
	return true
}

// runCommand resolves and invokes one named command in one tree.
// Returns whether the invocation failed. Resolution failures count as
// the tree failing, not the run.
func (d *runner) runCommand(ctx context.Context, tree *config.Tree, name string, env []string) bool {
	command, ok := d.cfg.CommandFor(tree, name)
	if !ok {
		return false
	}

	scope := d.cfg.TreeScope(tree)
	lines := make([]string, len(command.Lines))
	for i, line := range command.Lines {
		expanded, err := d.resolver.Expand(ctx, scope, line)
		if err != nil {
			d.failResolution(tree, fmt.Errorf("resolving command %q for tree %q: %w", name, tree.Name, err))
			return true
		}
		lines[i] = expanded
	}
	body := strings.Join(lines, "\n")

	if d.opts.Verbose && !d.opts.Quiet {
		for _, line := range lines {
			fmt.Fprintln(d.opts.Stderr, ui.CommandLine(line))
		}
	}

	shell := tree.ShellOr(d.resolver.Shell())
	args := append([]string{"-c", body, argv0}, d.opts.ExtraArgs...)
	cmd := exec.CommandContext(ctx, shell, args...) //nolint:gosec // configured interpreter
	tr := d.invoke(cmd, tree, name, env)
	d.result.record(tr)
	return tr.ExitCode != 0
}

// invoke runs a prepared command in the tree's path and records the
// outcome.
func (d *runner) invoke(cmd *exec.Cmd, tree *config.Tree, label string, env []string) TreeResult {
	cmd.Dir = tree.ResolvedPath
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = d.opts.Stdout
	cmd.Stderr = d.opts.Stderr

	tr := TreeResult{Tree: tree.Name, Command: label}
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			tr.ExitCode = exitErr.ExitCode()
		} else {
			tr.ExitCode = 1
		}
		tr.Err = &TreeCommandFailedError{Tree: tree.Name, Command: label, ExitCode: tr.ExitCode}
	}
	return tr
}

// treeEnv resolves the effective environment for a tree: ambient process
// environment, then global entries, then the tree's own entries, all
// evaluated in the tree's scope.
func (d *runner) treeEnv(ctx context.Context, tree *config.Tree) ([]string, error) {
	scope := d.cfg.TreeScope(tree)
	base := eval.ParseEnviron(d.opts.Environ)

	entries := make([]eval.EnvEntry, 0, len(d.cfg.Environment)+len(tree.Environment))
	entries = append(entries, d.cfg.Environment...)
	entries = append(entries, tree.Environment...)

	env, err := d.resolver.Environment(ctx, scope, base, entries)
	if err != nil {
		return nil, fmt.Errorf("resolving environment for tree %q: %w", tree.Name, err)
	}
	return eval.EnvList(env), nil
}

func anyTreeHas(cfg *config.Config, trees []*config.Tree, command string) bool {
	for _, t := range trees {
		if _, ok := cfg.CommandFor(t, command); ok {
			return true
		}
	}
	return false
}
