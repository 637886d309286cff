package eval

import (
	"context"
	"strings"
)

// execPrefix marks an expression whose value is the trimmed stdout of a
// shell command: "$ echo foo" resolves to "foo".
const execPrefix = "$ "

type key struct {
	scope string
	name  string
}

// Resolver evaluates expressions against scope chains. Each resolved
// (variable, scope) pair is cached for the resolver's lifetime, so a
// command expression executes at most once per scope per run. A resolver
// is good for one run and is not safe for concurrent use.
type Resolver struct {
	shell  string
	runner Runner
	cache  map[key]string
	exprs  map[key]string
	active map[key]bool
	stack  []key
}

// NewResolver creates a resolver that executes command expressions with
// the given default interpreter.
func NewResolver(shell string, runner Runner) *Resolver {
	return &Resolver{
		shell:  shell,
		runner: runner,
		cache:  make(map[key]string),
		exprs:  make(map[key]string),
		active: make(map[key]bool),
	}
}

// Shell returns the process-wide default interpreter.
func (r *Resolver) Shell() string { return r.shell }

// Lookup resolves the named variable within scope. The value is computed
// on first use and memoized; re-entering an in-progress resolution fails
// with *CircularReferenceError naming the cycle.
func (r *Resolver) Lookup(ctx context.Context, scope *Scope, name string) (string, error) {
	v, ok := scope.find(name)
	if !ok {
		return "", &UndefinedVariableError{Name: name, Scope: scope.Name()}
	}
	if v.Literal {
		return v.Expr, nil
	}

	k := key{scope: scope.ID(), name: name}
	if val, ok := r.cache[k]; ok {
		return val, nil
	}
	if r.active[k] {
		return "", &CircularReferenceError{Cycle: r.cycle(k), Scope: scope.Name()}
	}

	r.active[k] = true
	r.stack = append(r.stack, k)
	val, err := r.Eval(ctx, scope, v.Expr)
	r.stack = r.stack[:len(r.stack)-1]
	delete(r.active, k)

	if err != nil {
		return "", err
	}
	r.cache[k] = val
	return val, nil
}

// Eval resolves a full expression: command expressions have their text
// interpolated and are then executed; everything else is interpolated
// text. Results are memoized per (scope chain, expression), so a
// command expression executes at most once per scope per run no matter
// how many configuration entries or dispatch passes re-evaluate it.
func (r *Resolver) Eval(ctx context.Context, scope *Scope, expr string) (string, error) {
	k := key{scope: scope.ID(), name: expr}
	if val, ok := r.exprs[k]; ok {
		return val, nil
	}
	val, err := r.eval(ctx, scope, expr)
	if err != nil {
		return "", err
	}
	r.exprs[k] = val
	return val, nil
}

func (r *Resolver) eval(ctx context.Context, scope *Scope, expr string) (string, error) {
	if cmdText, ok := strings.CutPrefix(expr, execPrefix); ok {
		expanded, err := r.Expand(ctx, scope, cmdText)
		if err != nil {
			return "", err
		}
		out, err := r.runner.Run(ctx, r.shell, expanded)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(out, "\n"), nil
	}
	return r.Expand(ctx, scope, expr)
}

// Expand substitutes every ${name} reference in text with its resolved
// value. Text without references is returned unchanged; an unterminated
// ${ is passed through literally.
func (r *Resolver) Expand(ctx context.Context, scope *Scope, text string) (string, error) {
	if !strings.Contains(text, "${") {
		return text, nil
	}

	var b strings.Builder
	rest := text
	for {
		pre, post, found := strings.Cut(rest, "${")
		b.WriteString(pre)
		if !found {
			return b.String(), nil
		}
		name, after, closed := strings.Cut(post, "}")
		if !closed {
			b.WriteString("${")
			b.WriteString(post)
			return b.String(), nil
		}
		val, err := r.Lookup(ctx, scope, name)
		if err != nil {
			return "", err
		}
		b.WriteString(val)
		rest = after
	}
}

// cycle reports the variable names along the resolution path that closes
// at k.
func (r *Resolver) cycle(k key) []string {
	start := 0
	for i, sk := range r.stack {
		if sk == k {
			start = i
			break
		}
	}
	names := make([]string, 0, len(r.stack)-start+1)
	for _, sk := range r.stack[start:] {
		names = append(names, sk.name)
	}
	return append(names, k.name)
}
