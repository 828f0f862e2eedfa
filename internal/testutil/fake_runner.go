package testutil

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/vk/weaver/internal/result"
	"github.com/vk/weaver/internal/runner"
)

// Matcher selects commands a handler applies to.
type Matcher func(runner.Cmd) bool

// Handler produces the outcome of a matched command.
type Handler func(ctx context.Context, cmd runner.Cmd) result.Result

type rule struct {
	match Matcher
	do    Handler
}

// Call is one recorded invocation.
type Call struct {
	Seq int
	Cmd runner.Cmd
}

// FakeRunner is a scripted runner.Runner. Commands are recorded in order and
// answered by the first matching rule; unmatched commands succeed.
type FakeRunner struct {
	mu    sync.Mutex
	rules []rule
	calls []Call
}

// NewFakeRunner returns an empty fake.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{}
}

// On registers a rule. Rules registered earlier win.
func (f *FakeRunner) On(match Matcher, do Handler) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{match: match, do: do})
	return f
}

// Fail makes matching commands exit with code and msg on stderr.
func (f *FakeRunner) Fail(match Matcher, code int, msg string) *FakeRunner {
	return f.On(match, func(_ context.Context, cmd runner.Cmd) result.Result {
		return result.Failure(code, cmd.Args, msg)
	})
}

// Run implements runner.Runner.
func (f *FakeRunner) Run(ctx context.Context, cmd runner.Cmd) result.Result {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Seq: len(f.calls), Cmd: cmd})
	rules := slices.Clone(f.rules)
	f.mu.Unlock()

	for _, r := range rules {
		if r.match(cmd) {
			res := r.do(ctx, cmd)
			if res.Args == nil {
				res.Args = cmd.Args
			}
			return res
		}
	}
	return result.Result{Args: cmd.Args}
}

// Calls returns a copy of all recorded invocations.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// Count returns how many recorded commands match.
func (f *FakeRunner) Count(match Matcher) int {
	n := 0
	for _, c := range f.Calls() {
		if match(c.Cmd) {
			n++
		}
	}
	return n
}

// Lines renders every recorded command as a string, for assertions.
func (f *FakeRunner) Lines() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = strings.Join(c.Cmd.Args, " ")
	}
	return out
}

// Argv matches commands whose argument vector starts with prefix.
func Argv(prefix ...string) Matcher {
	return func(c runner.Cmd) bool {
		return len(c.Args) >= len(prefix) && slices.Equal(c.Args[:len(prefix)], prefix)
	}
}

// HasArg matches commands containing every given argument.
func HasArg(args ...string) Matcher {
	return func(c runner.Cmd) bool {
		for _, a := range args {
			if !slices.Contains(c.Args, a) {
				return false
			}
		}
		return true
	}
}

// InDir matches commands run in dir.
func InDir(dir string) Matcher {
	return func(c runner.Cmd) bool { return c.Dir == dir }
}

// All matches when every matcher does.
func All(ms ...Matcher) Matcher {
	return func(c runner.Cmd) bool {
		for _, m := range ms {
			if !m(c) {
				return false
			}
		}
		return true
	}
}
