// Package result models the outcome of one external invocation and the
// short-circuiting chains that pipeline stages are built from.
package result

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
)

// Result is the uniform outcome of an external process or of an in-process
// step standing in for one (mkdir, lock acquisition, a hook).
//
// The zero value is a no-op success.
type Result struct {
	// Args is the argument vector that was executed.
	Args []string
	// ExitCode is the process exit status. 0 means success.
	ExitCode int
	// Stdout is the captured standard output.
	Stdout []byte
	// Stderr is the captured standard error.
	Stderr []byte
	// Err carries a Go-level cause for failures that did not come from a
	// process exit status (lock contention, filesystem errors, bad config).
	Err error
}

// Step is a deferred unit of work in a chain.
type Step func() Result

// Success returns a no-op success.
func Success() Result {
	return Result{}
}

// Failure returns a failure with the given exit code and message.
func Failure(code int, args []string, msg string) Result {
	if code == 0 {
		code = 1
	}
	return Result{Args: args, ExitCode: code, Stderr: []byte(msg)}
}

// FromError converts err into a failure result. Errno values become the exit
// code so filesystem failures keep their underlying error code.
func FromError(args []string, err error) Result {
	if err == nil {
		return Result{Args: args}
	}
	code := 1
	var errno syscall.Errno
	if errors.As(err, &errno) && errno != 0 {
		code = int(errno)
	}
	return Result{Args: args, ExitCode: code, Stderr: []byte(err.Error()), Err: err}
}

// OK reports whether the result represents success.
func (r Result) OK() bool {
	return r.ExitCode == 0 && r.Err == nil
}

// Failed is the negation of OK.
func (r Result) Failed() bool {
	return !r.OK()
}

// Error converts a failed result into an error. It returns nil for success.
func (r Result) Error() error {
	if r.OK() {
		return nil
	}
	return &FailureError{Result: r}
}

// String renders the result for logs.
func (r Result) String() string {
	if r.OK() {
		return fmt.Sprintf("ok: %s", strings.Join(r.Args, " "))
	}
	return fmt.Sprintf("exit %d: %s", r.ExitCode, strings.Join(r.Args, " "))
}

// And runs steps left to right and stops at the first failure, which is
// returned unchanged. With no failures it returns the last step's result.
func And(steps ...Step) Result {
	var last Result
	for _, step := range steps {
		last = step()
		if last.Failed() {
			return last
		}
	}
	return last
}

// Or runs steps left to right and returns the first success. If every step
// fails, the last failure is returned.
func Or(steps ...Step) Result {
	var last Result
	for _, step := range steps {
		last = step()
		if last.OK() {
			return last
		}
	}
	return last
}

// Then chains a step after r, running it only when r succeeded.
func (r Result) Then(next Step) Result {
	if r.Failed() {
		return r
	}
	return next()
}

// Value lifts an already computed result into a Step.
func Value(r Result) Step {
	return func() Result { return r }
}

// FailureError is the error form of a failed Result.
type FailureError struct {
	Result Result
}

func (f *FailureError) Error() string {
	msg := strings.TrimSpace(string(f.Result.Stderr))
	cmd := strings.Join(f.Result.Args, " ")
	switch {
	case msg == "" && f.Result.Err != nil:
		msg = f.Result.Err.Error()
	case msg == "":
		msg = "no error output"
	}
	if cmd == "" {
		return fmt.Sprintf("exit status %d: %s", f.Result.ExitCode, msg)
	}
	return fmt.Sprintf("%s: exit status %d: %s", cmd, f.Result.ExitCode, msg)
}

func (f *FailureError) Unwrap() error {
	return f.Result.Err
}
