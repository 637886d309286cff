package eval

import (
	"fmt"
	"strings"
)

// UndefinedVariableError reports a ${name} reference that no frame in the
// scope chain declares.
type UndefinedVariableError struct {
	Name  string
	Scope string
}

func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("undefined variable %q in scope %s", e.Name, e.Scope)
}

// CircularReferenceError reports a variable whose resolution re-entered
// itself within one scope chain. Cycle lists the variable names along the
// resolution path, ending with the repeated name.
type CircularReferenceError struct {
	Cycle []string
	Scope string
}

func (e *CircularReferenceError) Error() string {
	return fmt.Sprintf("circular variable reference in scope %s: %s",
		e.Scope, strings.Join(e.Cycle, " -> "))
}

// CommandExpressionError reports a "$ command" expression that exited
// non-zero. Stderr holds the captured standard error output.
type CommandExpressionError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *CommandExpressionError) Error() string {
	msg := fmt.Sprintf("command expression %q exited %d", e.Command, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}
