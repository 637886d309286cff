package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/fbkclanna/grove/internal/testutil"
)

func TestRunEval_globalVariable(t *testing.T) {
	ws := testutil.WriteWorkspace(t, `
variables:
  greeting: hello
`)

	out, _, err := execute(t, "-c", filepath.Join(ws, "grove.yaml"), "eval", "${greeting} world")
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if got := strings.TrimSpace(out); got != "hello world" {
		t.Errorf("eval = %q, want %q", got, "hello world")
	}
}

func TestRunEval_treeScopeShadowsGlobal(t *testing.T) {
	ws := testutil.WriteWorkspace(t, `
variables:
  greeting: hello
trees:
  alpha:
    variables:
      greeting: howdy
`, "alpha")

	out, _, err := execute(t, "-c", filepath.Join(ws, "grove.yaml"), "eval", "${greeting}", "alpha")
	if err != nil {
		t.Fatalf("eval in tree scope failed: %v", err)
	}
	if got := strings.TrimSpace(out); got != "howdy" {
		t.Errorf("eval = %q, want %q", got, "howdy")
	}
}

func TestRunEval_treeBuiltins(t *testing.T) {
	ws := testutil.WriteWorkspace(t, `
trees:
  alpha: {}
`, "alpha")

	out, _, err := execute(t, "-c", filepath.Join(ws, "grove.yaml"), "eval", "${TREE_PATH}", "alpha")
	if err != nil {
		t.Fatalf("eval builtin failed: %v", err)
	}
	want := filepath.Join(ws, "alpha")
	if got := strings.TrimSpace(out); got != want {
		t.Errorf("TREE_PATH = %q, want %q", got, want)
	}
}

func TestRunEval_commandExpression(t *testing.T) {
	ws := testutil.WriteWorkspace(t, `
variables:
  word: grove
`)

	out, _, err := execute(t, "-c", filepath.Join(ws, "grove.yaml"), "eval", "$ echo ${word}")
	if err != nil {
		t.Fatalf("eval exec expression failed: %v", err)
	}
	if got := strings.TrimSpace(out); got != "grove" {
		t.Errorf("eval = %q, want %q", got, "grove")
	}
}

func TestRunEval_unknownTree(t *testing.T) {
	ws := testutil.WriteWorkspace(t, `
trees:
  alpha: {}
`, "alpha")

	_, _, err := execute(t, "-c", filepath.Join(ws, "grove.yaml"), "eval", "${TREE_NAME}", "missing")
	if err == nil {
		t.Fatal("expected error for unknown tree")
	}
}
