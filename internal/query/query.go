// Package query resolves tree-selection expressions against the
// configuration model. A query is a space-separated list of terms; each
// term is a tree name, a group name, or a glob pattern, optionally
// prefixed with "!" to exclude matches. The result is an ordered,
// deduplicated list of trees.
package query

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fbkclanna/grove/internal/config"
)

// Term is one parsed selection term.
type Term struct {
	Pattern string
	Exclude bool
}

// Options controls query resolution.
type Options struct {
	// Strict makes an inclusion term that matches nothing an error.
	Strict bool
}

// UnknownSelectorError reports an inclusion term that matched no tree or
// group under strict resolution.
type UnknownSelectorError struct {
	Term string
}

func (e *UnknownSelectorError) Error() string {
	return fmt.Sprintf("selector %q matched no tree or group", e.Term)
}

// CircularGroupError reports a group that transitively contains itself.
type CircularGroupError struct {
	Cycle []string
}

func (e *CircularGroupError) Error() string {
	return fmt.Sprintf("circular group reference: %s", strings.Join(e.Cycle, " -> "))
}

// Parse splits a query string into terms.
func Parse(q string) ([]Term, error) {
	var terms []Term
	for _, field := range strings.Fields(q) {
		t := Term{Pattern: field}
		if p, ok := strings.CutPrefix(field, "!"); ok {
			t.Pattern = p
			t.Exclude = true
		}
		if t.Pattern == "" {
			return nil, fmt.Errorf("empty selector in query %q", q)
		}
		if !doublestar.ValidatePattern(t.Pattern) {
			return nil, fmt.Errorf("invalid pattern %q in query", t.Pattern)
		}
		terms = append(terms, t)
	}
	return terms, nil
}

// Resolve parses q and matches it against cfg. Inclusion terms are
// processed left to right, appending newly-matched trees; exclusion
// terms apply afterwards regardless of their position. An empty result
// is valid.
func Resolve(cfg *config.Config, q string, opts Options) ([]*config.Tree, error) {
	terms, err := Parse(q)
	if err != nil {
		return nil, err
	}

	var selected []*config.Tree
	seen := make(map[string]bool)

	for _, term := range terms {
		if term.Exclude {
			continue
		}
		names, err := match(cfg, term.Pattern)
		if err != nil {
			return nil, err
		}
		if len(names) == 0 && opts.Strict {
			return nil, &UnknownSelectorError{Term: term.Pattern}
		}
		for _, name := range names {
			if seen[name] {
				continue
			}
			seen[name] = true
			selected = append(selected, cfg.Tree(name))
		}
	}

	for _, term := range terms {
		if !term.Exclude {
			continue
		}
		names, err := match(cfg, term.Pattern)
		if err != nil {
			return nil, err
		}
		drop := make(map[string]bool, len(names))
		for _, name := range names {
			drop[name] = true
		}
		kept := selected[:0]
		for _, t := range selected {
			if !drop[t.Name] {
				kept = append(kept, t)
			}
		}
		selected = kept
	}

	return selected, nil
}

// match returns the ordered tree names selected by one pattern: matching
// groups expand first (recursively, in member order), then directly
// matching trees in declaration order. Duplicates are preserved here and
// dropped by the caller.
func match(cfg *config.Config, pattern string) ([]string, error) {
	var names []string
	for _, g := range cfg.Groups {
		ok, err := doublestar.Match(pattern, g.Name)
		if err != nil {
			return nil, fmt.Errorf("matching %q: %w", pattern, err)
		}
		if ok {
			expanded, err := expand(cfg, g, nil)
			if err != nil {
				return nil, err
			}
			names = append(names, expanded...)
		}
	}
	for _, t := range cfg.Trees {
		ok, err := doublestar.Match(pattern, t.Name)
		if err != nil {
			return nil, fmt.Errorf("matching %q: %w", pattern, err)
		}
		if ok {
			names = append(names, t.Name)
		}
	}
	return names, nil
}

// expand flattens a group to tree names in member declaration order.
// visiting carries the expansion path for cycle detection.
func expand(cfg *config.Config, g *config.Group, visiting []string) ([]string, error) {
	for i, name := range visiting {
		if name == g.Name {
			cycle := append([]string{}, visiting[i:]...)
			return nil, &CircularGroupError{Cycle: append(cycle, g.Name)}
		}
	}
	visiting = append(visiting, g.Name)

	var names []string
	for _, m := range g.Members {
		if sub := cfg.Group(m); sub != nil {
			expanded, err := expand(cfg, sub, visiting)
			if err != nil {
				return nil, err
			}
			names = append(names, expanded...)
			continue
		}
		names = append(names, m)
	}
	return names, nil
}
