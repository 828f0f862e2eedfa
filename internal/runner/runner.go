// Package runner is the boundary to external processes. Every command the
// engine spawns (git, configure, make) goes through a Runner so tests can
// substitute a scripted one.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"syscall"

	"github.com/vk/weaver/internal/ctxlog"
	"github.com/vk/weaver/internal/result"
)

// exitNotFound mirrors the shell's status for a command that could not be found.
const exitNotFound = 127

// Cmd describes one process invocation. The working directory is part of the
// command; the runner never changes its own working directory.
type Cmd struct {
	Args []string
	Dir  string
	Env  map[string]string
}

// String renders the command the way it is logged.
func (c Cmd) String() string {
	if c.Dir == "" {
		return strings.Join(c.Args, " ")
	}
	return fmt.Sprintf("(cd %s && %s)", c.Dir, strings.Join(c.Args, " "))
}

// Runner executes commands.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) result.Result
}

// Exec runs commands as real child processes.
type Exec struct {
	// Isolated drops the host environment; only Cmd.Env is visible.
	Isolated bool
}

// NewExec returns a runner that inherits the host environment.
func NewExec() *Exec {
	return &Exec{}
}

// Run starts cmd, waits for it, and captures its output. Cancelling ctx kills
// the whole process group so configure/make children do not outlive the run.
func (e *Exec) Run(ctx context.Context, c Cmd) result.Result {
	logger := ctxlog.FromContext(ctx)
	if len(c.Args) == 0 {
		return result.Failure(1, nil, "runner: empty command")
	}

	cmd := exec.Command(c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	cmd.Env = e.environ(c.Env)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("Running command.", "cmd", c.String())
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return result.Result{Args: c.Args, ExitCode: exitNotFound, Stderr: []byte(err.Error()), Err: err}
		}
		return result.FromError(c.Args, fmt.Errorf("failed to start command: %w", err))
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var err error
	select {
	case <-ctx.Done():
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		<-done
		return result.Result{
			Args:     c.Args,
			ExitCode: -1,
			Stdout:   stdout.Bytes(),
			Stderr:   stderr.Bytes(),
			Err:      fmt.Errorf("execution cancelled: %w", ctx.Err()),
		}
	case err = <-done:
	}

	res := result.Result{Args: c.Args, Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			res.ExitCode = 1
			res.Err = fmt.Errorf("failed to execute command: %w", err)
			return res
		}
		res.ExitCode = exitErr.ExitCode()
		if res.ExitCode < 0 {
			// Terminated by a signal.
			res.ExitCode = 128
			res.Err = exitErr
		}
	}
	logger.Debug("Command finished.", "cmd", c.Args[0], "exit_code", res.ExitCode)
	return res
}

// environ builds the child environment: the host environment (unless
// isolated) overlaid with overrides, sorted for stable process startup.
func (e *Exec) environ(overrides map[string]string) []string {
	merged := make(map[string]string)
	if !e.Isolated {
		for _, kv := range os.Environ() {
			if k, v, ok := strings.Cut(kv, "="); ok {
				merged[k] = v
			}
		}
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return EnvList(merged)
}

// EnvList flattens env into sorted KEY=VALUE pairs.
func EnvList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
