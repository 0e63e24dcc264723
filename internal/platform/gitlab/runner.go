package gitlab

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
)

// Runner executes a shell command line.
type Runner interface {
	Run(ctx context.Context, commandLine string) (RunResult, error)
}

// RunResult is the captured output of a finished command. ExitCode is -1
// when the process could not be started or was killed.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// ShellRunner runs command lines through "sh -c".
type ShellRunner struct {
	Shell string
	Env   []string
}

// NewShellRunner returns a runner that adds env to the inherited environment.
func NewShellRunner(env ...string) *ShellRunner {
	return &ShellRunner{Shell: "sh", Env: env}
}

// Run starts the command and waits for it. A non-zero exit is reported in
// RunResult with a nil error; err is set only when the command could not
// run to completion.
func (r *ShellRunner) Run(ctx context.Context, commandLine string) (RunResult, error) {
	shell := r.Shell
	if shell == "" {
		shell = "sh"
	}

	cmd := exec.CommandContext(ctx, shell, "-c", commandLine) //nolint:gosec // arguments are shell-quoted by the caller
	cmd.Env = append(os.Environ(), r.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := RunResult{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case ctx.Err() != nil:
		res.ExitCode = -1
		return res, ctx.Err()
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	default:
		res.ExitCode = -1
		return res, err
	}
}
