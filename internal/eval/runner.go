package eval

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Runner executes the shell text of a "$ command" expression and returns
// its raw standard output. A non-zero exit is reported as a
// *CommandExpressionError. The evaluator owns newline trimming, so fakes
// can return output verbatim.
type Runner interface {
	Run(ctx context.Context, shell, command string) (string, error)
}

// ExecRunner runs command expressions with os/exec via `<shell> -c`.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, shell, command string) (string, error) {
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &CommandExpressionError{
				Command:  command,
				ExitCode: exitErr.ExitCode(),
				Stderr:   stderr.String(),
			}
		}
		return "", fmt.Errorf("running command expression %q: %w", command, err)
	}
	return stdout.String(), nil
}
