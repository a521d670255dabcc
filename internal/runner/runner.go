package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
)

// CommandRunner abstracts process execution for testability.
type CommandRunner interface {
	// Run executes a short command and returns its captured output.
	Run(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)
	// Start spawns a process and hands back its streams.
	Start(ctx context.Context, spec Spec) (Process, error)
}

// Spec describes a single process invocation.
type Spec struct {
	Path string
	Args []string
	// Env is the complete child environment. Nil inherits the parent's.
	Env []string
	// Stdin is written to the child and followed by end-of-input.
	// Nil leaves stdin unattached.
	Stdin []byte
}

// Process is a spawned child. Stdout and Stderr must be drained before Wait.
type Process interface {
	Stdout() io.Reader
	Stderr() io.Reader
	Wait() error
}

// ExitCode reports the exit status carried by err, if any.
func ExitCode(err error) (int, bool) {
	var ec interface{ ExitCode() int }
	if errors.As(err, &ec) {
		return ec.ExitCode(), true
	}
	return 0, false
}

// OSRunner executes commands via os/exec.
type OSRunner struct{}

func (r *OSRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return outBuf.String(), errBuf.String(), err
}

func (r *OSRunner) Start(ctx context.Context, spec Spec) (Process, error) {
	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	cmd.Env = spec.Env
	if spec.Stdin != nil {
		// exec copies the reader in its own goroutine and closes the pipe at EOF
		cmd.Stdin = bytes.NewReader(spec.Stdin)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &osProcess{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

type osProcess struct {
	cmd    *exec.Cmd
	stdout io.Reader
	stderr io.Reader
}

func (p *osProcess) Stdout() io.Reader { return p.stdout }
func (p *osProcess) Stderr() io.Reader { return p.stderr }
func (p *osProcess) Wait() error       { return p.cmd.Wait() }
