package eval

import (
	"context"
	"sort"
	"strings"
)

// EnvMode controls how a resolved environment value merges with the value
// inherited from the enclosing layer or the ambient process environment.
type EnvMode int

const (
	// EnvSet replaces the inherited value.
	EnvSet EnvMode = iota
	// EnvPrepend joins the resolved value before the inherited one with
	// a ":" separator.
	EnvPrepend
	// EnvAppend joins the resolved value after the inherited one with a
	// ":" separator.
	EnvAppend
)

func (m EnvMode) String() string {
	switch m {
	case EnvPrepend:
		return "prepend"
	case EnvAppend:
		return "append"
	default:
		return "set"
	}
}

// EnvEntry is one environment declaration: a name, a merge mode, and a
// raw expression evaluated like any variable.
type EnvEntry struct {
	Name string
	Mode EnvMode
	Expr string
}

// Environment applies entries in order on top of base, evaluating each
// expression within scope. The base map is not modified.
func (r *Resolver) Environment(ctx context.Context, scope *Scope, base map[string]string, entries []EnvEntry) (map[string]string, error) {
	env := make(map[string]string, len(base)+len(entries))
	for k, v := range base {
		env[k] = v
	}

	for _, e := range entries {
		val, err := r.Eval(ctx, scope, e.Expr)
		if err != nil {
			return nil, err
		}
		inherited, ok := env[e.Name]
		switch {
		case e.Mode == EnvPrepend && ok:
			env[e.Name] = val + ":" + inherited
		case e.Mode == EnvAppend && ok:
			env[e.Name] = inherited + ":" + val
		default:
			env[e.Name] = val
		}
	}
	return env, nil
}

// EnvList flattens an environment map to sorted KEY=value strings for
// os/exec.
func EnvList(env map[string]string) []string {
	list := make([]string, 0, len(env))
	for k, v := range env {
		list = append(list, k+"="+v)
	}
	sort.Strings(list)
	return list
}

// ParseEnviron converts os.Environ-style KEY=value strings to a map.
func ParseEnviron(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
