// Package dispatch runs named and ad-hoc commands over a resolved tree
// selection. Trees are processed sequentially in selection order; each
// invocation runs in the tree's resolved path with its resolved
// environment and interpreter. Failures are recorded per tree and
// aggregated into a single exit code.
package dispatch
