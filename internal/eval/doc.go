// Package eval resolves grove configuration expressions to strings.
// Expressions are plain text, ${name} references into a scope chain,
// or "$ command" exec expressions whose trimmed stdout becomes the value.
// Resolution is lazy and memoized per (variable, scope) for one run,
// with explicit cycle detection instead of unbounded recursion.
package eval
