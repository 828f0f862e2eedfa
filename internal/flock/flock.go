// Package flock provides advisory, cooperative locking over filesystem paths
// shared by concurrent pipeline runs.
//
// A resource path P is represented by the lock file "P.lock" next to it, so a
// lock can be taken before P itself exists (e.g. before a mirror is cloned).
// Locks are flock(2) locks: the kernel releases them when the descriptor is
// closed, which includes the holding process dying.
package flock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/vk/weaver/internal/ctxlog"
	"github.com/vk/weaver/internal/result"
)

// ExitTempFail is the exit code of a failed lock acquisition.
const ExitTempFail = 75

const (
	minPoll = 10 * time.Millisecond
	maxPoll = 500 * time.Millisecond
)

var (
	// ErrBusy is reported by non-blocking acquisition when another holder
	// owns the lock.
	ErrBusy = errors.New("resource is locked by another holder")
	// ErrTimeout is reported when blocking acquisition exceeds its timeout.
	ErrTimeout = errors.New("timed out waiting for lock")
)

// Mode selects an exclusive or shared lock.
type Mode int

const (
	Exclusive Mode = iota
	Shared
)

func (m Mode) String() string {
	if m == Shared {
		return "shared"
	}
	return "exclusive"
}

// Options controls acquisition.
type Options struct {
	Mode Mode
	// NonBlocking makes a single attempt and fails fast with ErrBusy.
	NonBlocking bool
	// Timeout bounds blocking acquisition. Zero waits until ctx is done.
	Timeout time.Duration
}

// Lock is a held lock.
type Lock struct {
	path string
	file *os.File
}

// Path returns the resource path the lock guards.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks and closes the lock file. Calling it twice is harmless.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	uerr := unix.Flock(int(f.Fd()), unix.LOCK_UN)
	cerr := f.Close()
	return errors.Join(uerr, cerr)
}

// LockPath returns the lock file used for resource path.
func LockPath(path string) string {
	return filepath.Clean(path) + ".lock"
}

// Acquire takes the lock for path according to opts.
func Acquire(ctx context.Context, path string, opts Options) (*Lock, error) {
	lockPath := LockPath(path)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file %s: %w", lockPath, err)
	}

	how := unix.LOCK_EX
	if opts.Mode == Shared {
		how = unix.LOCK_SH
	}

	if err := flockRetryEINTR(f, how|unix.LOCK_NB); err == nil {
		return &Lock{path: path, file: f}, nil
	} else if !errors.Is(err, unix.EWOULDBLOCK) {
		f.Close()
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}

	if opts.NonBlocking {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrBusy)
	}

	waitCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	ctxlog.FromContext(ctx).Debug("Waiting for lock.", "path", path, "mode", opts.Mode.String(), "timeout", opts.Timeout)
	poll := minPoll
	for {
		select {
		case <-waitCtx.Done():
			f.Close()
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%s: %w", path, ctx.Err())
			}
			return nil, fmt.Errorf("%s after %s: %w", path, opts.Timeout, ErrTimeout)
		case <-time.After(poll):
		}

		err := flockRetryEINTR(f, how|unix.LOCK_NB)
		if err == nil {
			return &Lock{path: path, file: f}, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) {
			f.Close()
			return nil, fmt.Errorf("locking %s: %w", path, err)
		}
		poll = min(poll*2, maxPoll)
	}
}

func flockRetryEINTR(f *os.File, how int) error {
	for {
		err := unix.Flock(int(f.Fd()), how)
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}

// Guard runs fn while holding the lock for path and releases it on every exit
// path. Acquisition failures are returned as failure results so callers can
// retry or fall through; they never panic.
func Guard(ctx context.Context, path string, opts Options, fn func() result.Result) (res result.Result) {
	lock, err := Acquire(ctx, path, opts)
	if err != nil {
		return result.Result{
			Args:     []string{"flock", opts.Mode.String(), path},
			ExitCode: ExitTempFail,
			Stderr:   []byte(err.Error()),
			Err:      err,
		}
	}
	defer func() {
		if rerr := lock.Release(); rerr != nil && res.OK() {
			res = result.FromError([]string{"flock", "release", path}, rerr)
		}
	}()
	return fn()
}

// Try is Guard with a non-blocking acquisition.
func Try(ctx context.Context, path string, mode Mode, fn func() result.Result) result.Result {
	return Guard(ctx, path, Options{Mode: mode, NonBlocking: true}, fn)
}

// IsContention reports whether res failed because the lock was unavailable.
func IsContention(res result.Result) bool {
	return errors.Is(res.Err, ErrBusy) || errors.Is(res.Err, ErrTimeout)
}
