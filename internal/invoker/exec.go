package invoker

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"time"
)

// ExecInvoker runs the experiment script directly on the host.
type ExecInvoker struct {
	Script     string
	StaticArgs []string
}

func (e *ExecInvoker) Run(ctx context.Context, paths Paths, runConfig, extra map[string]any) (Result, error) {
	argv := append([]string{e.Script}, BuildArgs(paths, e.StaticArgs, runConfig, extra)...)
	cmd := exec.CommandContext(ctx, "bash", argv...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Non-zero exit is reported, not raised.
			return Result{Duration: elapsed, ExitCode: exitErr.ExitCode()}, nil
		}
		return Result{Duration: elapsed}, err
	}
	return Result{Duration: elapsed, ExitCode: 0}, nil
}
