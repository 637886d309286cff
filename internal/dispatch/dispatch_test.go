package dispatch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fbkclanna/grove/internal/config"
	"github.com/fbkclanna/grove/internal/eval"
	"github.com/fbkclanna/grove/internal/query"
	"github.com/fbkclanna/grove/internal/ui"
)

// testWorkspace parses data as grove.yaml in a temp dir and creates a
// directory for every tree so dispatch does not skip them.
func testWorkspace(t *testing.T, data string) (*config.Config, *eval.Resolver) {
	t.Helper()
	ui.SetStyled(false)
	dir := t.TempDir()
	cfg, err := config.Parse([]byte(data), dir)
	if err != nil {
		t.Fatalf("parsing config: %v", err)
	}
	r := eval.NewResolver(cfg.Shell, eval.ExecRunner{})
	if err := cfg.Finalize(context.Background(), r); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	for _, tree := range cfg.Trees {
		if err := os.MkdirAll(tree.ResolvedPath, 0755); err != nil {
			t.Fatal(err)
		}
	}
	return cfg, r
}

func selectTrees(t *testing.T, cfg *config.Config, q string) []*config.Tree {
	t.Helper()
	trees, err := query.Resolve(cfg, q, query.Options{})
	if err != nil {
		t.Fatalf("query %q: %v", q, err)
	}
	return trees
}

func quietOpts() Options {
	return Options{Quiet: true, Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}
}

func TestRun_visitsTreesInOrder(t *testing.T) {
	cfg, r := testWorkspace(t, `
commands:
  mark: echo ${TREE_NAME} >> ${GROVE_ROOT}/visited.txt
trees:
  alpha: {}
  beta: {}
  gamma: {}
`)
	trees := selectTrees(t, cfg, "*")

	res, err := Run(context.Background(), cfg, r, trees, []string{"mark"}, quietOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", res.ExitCode)
	}

	data, err := os.ReadFile(filepath.Join(cfg.RootPath, "visited.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(data), "alpha\nbeta\ngamma\n"; got != want {
		t.Errorf("visit order = %q, want %q", got, want)
	}
}

func TestRun_stopsAtFirstFailure(t *testing.T) {
	cfg, r := testWorkspace(t, `
commands:
  step: |
    echo ${TREE_NAME} >> ${GROVE_ROOT}/visited.txt
    test ${TREE_NAME} != beta
trees:
  alpha: {}
  beta: {}
  gamma: {}
`)
	trees := selectTrees(t, cfg, "*")

	res, err := Run(context.Background(), cfg, r, trees, []string{"step"}, quietOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode == 0 {
		t.Error("exit code should be non-zero after a failing tree")
	}

	data, _ := os.ReadFile(filepath.Join(cfg.RootPath, "visited.txt"))
	if got, want := string(data), "alpha\nbeta\n"; got != want {
		t.Errorf("visited = %q, want %q (gamma must not run)", got, want)
	}
}

func TestRun_keepGoingContinues(t *testing.T) {
	cfg, r := testWorkspace(t, `
commands:
  step: |
    echo ${TREE_NAME} >> ${GROVE_ROOT}/visited.txt
    test ${TREE_NAME} != beta
trees:
  alpha: {}
  beta: {}
  gamma: {}
`)
	trees := selectTrees(t, cfg, "*")

	opts := quietOpts()
	opts.KeepGoing = true
	res, err := Run(context.Background(), cfg, r, trees, []string{"step"}, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode == 0 {
		t.Error("exit code should reflect the beta failure")
	}

	data, _ := os.ReadFile(filepath.Join(cfg.RootPath, "visited.txt"))
	if got, want := string(data), "alpha\nbeta\ngamma\n"; got != want {
		t.Errorf("visited = %q, want %q", got, want)
	}

	var failed *TreeCommandFailedError
	found := false
	for _, tr := range res.Trees {
		if tr.Err != nil && errors.As(tr.Err, &failed) {
			found = true
		}
	}
	if !found || failed.Tree != "beta" {
		t.Errorf("expected TreeCommandFailedError for beta, results: %+v", res.Trees)
	}
}

func TestRun_breadthFirstOrdering(t *testing.T) {
	cfg, r := testWorkspace(t, `
commands:
  one: echo one-${TREE_NAME} >> ${GROVE_ROOT}/visited.txt
  two: echo two-${TREE_NAME} >> ${GROVE_ROOT}/visited.txt
trees:
  alpha: {}
  beta: {}
`)
	trees := selectTrees(t, cfg, "*")

	opts := quietOpts()
	opts.BreadthFirst = true
	if _, err := Run(context.Background(), cfg, r, trees, []string{"one", "two"}, opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(cfg.RootPath, "visited.txt"))
	want := "one-alpha\none-beta\ntwo-alpha\ntwo-beta\n"
	if string(data) != want {
		t.Errorf("visit order = %q, want %q", string(data), want)
	}
}

func TestRun_extraArgsReachScript(t *testing.T) {
	cfg, r := testWorkspace(t, `
commands:
  greet: echo "$1" > ${GROVE_ROOT}/arg.txt
trees:
  alpha: {}
`)
	trees := selectTrees(t, cfg, "alpha")

	opts := quietOpts()
	opts.ExtraArgs = []string{"hello"}
	if _, err := Run(context.Background(), cfg, r, trees, []string{"greet"}, opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(cfg.RootPath, "arg.txt"))
	if got := strings.TrimSpace(string(data)); got != "hello" {
		t.Errorf("$1 = %q, want hello", got)
	}
}

func TestRun_environmentReachesCommand(t *testing.T) {
	cfg, r := testWorkspace(t, `
environment:
  GREETING: hi from ${TREE_NAME}
commands:
  show: printf '%s' "$GREETING" > ${GROVE_ROOT}/env.txt
trees:
  alpha:
    environment:
      GREETING+: and alpha
`)
	trees := selectTrees(t, cfg, "alpha")

	if _, err := Run(context.Background(), cfg, r, trees, []string{"show"}, quietOpts()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(cfg.RootPath, "env.txt"))
	if got, want := string(data), "hi from alpha:and alpha"; got != want {
		t.Errorf("GREETING = %q, want %q", got, want)
	}
}

func TestRun_skipsMissingTreePath(t *testing.T) {
	cfg, r := testWorkspace(t, `
commands:
  mark: echo ${TREE_NAME} >> ${GROVE_ROOT}/visited.txt
trees:
  alpha: {}
  ghost: {}
`)
	if err := os.RemoveAll(cfg.Tree("ghost").ResolvedPath); err != nil {
		t.Fatal(err)
	}
	trees := selectTrees(t, cfg, "*")

	res, err := Run(context.Background(), cfg, r, trees, []string{"mark"}, quietOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0 (missing tree is a skip, not a failure)", res.ExitCode)
	}

	data, _ := os.ReadFile(filepath.Join(cfg.RootPath, "visited.txt"))
	if got, want := string(data), "alpha\n"; got != want {
		t.Errorf("visited = %q, want %q", got, want)
	}

	skipped := false
	for _, tr := range res.Trees {
		if tr.Tree == "ghost" && tr.Skipped {
			skipped = true
		}
	}
	if !skipped {
		t.Error("ghost should be recorded as skipped")
	}
}

func TestRun_unknownCommand(t *testing.T) {
	cfg, r := testWorkspace(t, `
trees:
  alpha: {}
`)
	trees := selectTrees(t, cfg, "*")
	if _, err := Run(context.Background(), cfg, r, trees, []string{"nope"}, quietOpts()); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestRun_emptySelectionIsNoOp(t *testing.T) {
	cfg, r := testWorkspace(t, `
trees:
  alpha: {}
`)
	res, err := Run(context.Background(), cfg, r, nil, []string{"anything"}, quietOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 || len(res.Trees) != 0 {
		t.Errorf("empty selection should be a no-op success, got %+v", res)
	}
}

func TestRun_cancelledContextRunsNothing(t *testing.T) {
	cfg, r := testWorkspace(t, `
commands:
  mark: echo ${TREE_NAME} >> ${GROVE_ROOT}/visited.txt
trees:
  alpha: {}
`)
	trees := selectTrees(t, cfg, "*")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Run(ctx, cfg, r, trees, []string{"mark"}, quietOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Trees) != 0 {
		t.Errorf("no tree should run after cancellation, got %+v", res.Trees)
	}
}

func TestRun_envFailureKeepsSiblingTrees(t *testing.T) {
	cfg, r := testWorkspace(t, `
commands:
  mark: echo ${TREE_NAME} >> ${GROVE_ROOT}/visited.txt
trees:
  alpha:
    environment:
      BROKEN: $ false
  beta: {}
`)
	trees := selectTrees(t, cfg, "*")

	opts := quietOpts()
	opts.KeepGoing = true
	res, err := Run(context.Background(), cfg, r, trees, []string{"mark"}, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode == 0 {
		t.Error("exit code should reflect alpha's resolution failure")
	}

	data, _ := os.ReadFile(filepath.Join(cfg.RootPath, "visited.txt"))
	if got, want := string(data), "beta\n"; got != want {
		t.Errorf("visited = %q, want %q (beta must still run)", got, want)
	}

	found := false
	for _, tr := range res.Trees {
		if tr.Tree == "alpha" {
			found = true
			if tr.Err == nil || tr.ExitCode == 0 {
				t.Errorf("alpha should carry a failing result, got %+v", tr)
			}
			var cmdErr *eval.CommandExpressionError
			if !errors.As(tr.Err, &cmdErr) {
				t.Errorf("alpha's error should wrap the expression failure, got %v", tr.Err)
			}
		}
	}
	if !found {
		t.Errorf("alpha's failure must be recorded, results: %+v", res.Trees)
	}
}

func TestRun_envFailureStopsWithoutKeepGoing(t *testing.T) {
	cfg, r := testWorkspace(t, `
commands:
  mark: echo ${TREE_NAME} >> ${GROVE_ROOT}/visited.txt
trees:
  alpha:
    environment:
      BROKEN: $ false
  beta: {}
`)
	trees := selectTrees(t, cfg, "*")

	res, err := Run(context.Background(), cfg, r, trees, []string{"mark"}, quietOpts())
	if err != nil {
		t.Fatalf("resolution failures are per-tree results, not run errors: %v", err)
	}
	if res.ExitCode == 0 {
		t.Error("exit code should be non-zero")
	}
	if len(res.Trees) != 1 || res.Trees[0].Tree != "alpha" {
		t.Errorf("only alpha's failure should be recorded, got %+v", res.Trees)
	}

	if _, statErr := os.Stat(filepath.Join(cfg.RootPath, "visited.txt")); statErr == nil {
		t.Error("beta must not run under the default stop-on-failure policy")
	}
}

func TestRun_breadthFirstResolvesEnvOnce(t *testing.T) {
	cfg, r := testWorkspace(t, `
environment:
  COUNT: $ echo x >> ${GROVE_ROOT}/count.txt; echo done
commands:
  one: "true"
  two: "true"
trees:
  alpha: {}
`)
	trees := selectTrees(t, cfg, "*")

	opts := quietOpts()
	opts.BreadthFirst = true
	if _, err := Run(context.Background(), cfg, r, trees, []string{"one", "two"}, opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(cfg.RootPath, "count.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(data), "x"); got != 1 {
		t.Errorf("environment expression executed %d times, want 1", got)
	}
}

func TestExec_envFailureHonorsKeepGoing(t *testing.T) {
	cfg, r := testWorkspace(t, `
trees:
  alpha:
    environment:
      BROKEN: $ false
  beta: {}
`)
	trees := selectTrees(t, cfg, "*")

	opts := quietOpts()
	opts.KeepGoing = true
	res, err := Exec(context.Background(), cfg, r, trees, []string{"touch", "ran"}, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode == 0 {
		t.Error("exit code should reflect alpha's resolution failure")
	}
	if _, statErr := os.Stat(filepath.Join(cfg.Tree("beta").ResolvedPath, "ran")); statErr != nil {
		t.Errorf("beta should still run: %v", statErr)
	}
}

func TestExec_adHocCommand(t *testing.T) {
	cfg, r := testWorkspace(t, `
trees:
  alpha: {}
  beta: {}
`)
	trees := selectTrees(t, cfg, "*")

	if _, err := Exec(context.Background(), cfg, r, trees, []string{"touch", "visited"}, quietOpts()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, tree := range cfg.Trees {
		if _, err := os.Stat(filepath.Join(tree.ResolvedPath, "visited")); err != nil {
			t.Errorf("tree %s: expected visited file: %v", tree.Name, err)
		}
	}
}

func TestExec_failureStopsRun(t *testing.T) {
	cfg, r := testWorkspace(t, `
trees:
  alpha: {}
  beta: {}
`)
	trees := selectTrees(t, cfg, "*")

	res, err := Exec(context.Background(), cfg, r, trees, []string{"false"}, quietOpts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 1 {
		t.Errorf("exit code = %d, want 1", res.ExitCode)
	}
	if len(res.Trees) != 1 {
		t.Errorf("run should stop after the first failing tree, got %d results", len(res.Trees))
	}
}
