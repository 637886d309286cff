package eval

import "strings"

// Var is a single named variable declaration. Literal vars carry a
// pre-resolved value in Expr and are never evaluated; they are used for
// built-ins such as TREE_NAME and TREE_PATH.
type Var struct {
	Name    string
	Expr    string
	Literal bool
}

// Frame is one ordered block of variable declarations with a stable
// identity. The identity participates in memoization keys and in error
// messages ("tree alpha", "global").
type Frame struct {
	ID   string
	Vars []Var
}

// Scope is an ordered chain of frames, innermost first. Lookup walks the
// chain and returns the first matching declaration. Scopes are read-only
// composed views; frames are shared between scopes but never mutated.
type Scope struct {
	frames []*Frame
}

// NewScope builds a scope from frames ordered innermost to outermost.
func NewScope(frames ...*Frame) *Scope {
	return &Scope{frames: frames}
}

// ID returns a stable identity for the whole chain, used to key
// memoization so that the same variable resolved under different chains
// is cached independently.
func (s *Scope) ID() string {
	ids := make([]string, len(s.frames))
	for i, f := range s.frames {
		ids[i] = f.ID
	}
	return strings.Join(ids, "|")
}

// Name returns a human-readable label for error messages: the innermost
// frame's identity.
func (s *Scope) Name() string {
	if len(s.frames) == 0 {
		return "(empty)"
	}
	return s.frames[0].ID
}

// find returns the first declaration of name, walking innermost-first.
func (s *Scope) find(name string) (Var, bool) {
	for _, f := range s.frames {
		for _, v := range f.Vars {
			if v.Name == name {
				return v, true
			}
		}
	}
	return Var{}, false
}
