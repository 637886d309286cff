// Package config loads and layers grove.yaml files into a single
// in-memory model of trees, groups, variables, environments, and
// commands. Declaration order of every mapping is preserved, because
// lookup order and query output order depend on it.
package config
