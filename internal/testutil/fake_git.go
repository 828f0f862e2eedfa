package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/weaver/internal/result"
	"github.com/vk/weaver/internal/runner"
)

// FakeGit emulates the subset of git the source cache drives, creating the
// directories real git would create.
type FakeGit struct {
	// Head is what `ls-remote <mirror> HEAD` reports.
	Head string
	// Refs are full ref names reported by `ls-remote --tags --heads`.
	Refs []string
}

// DefaultHead is the commit FakeGit reports unless told otherwise.
const DefaultHead = "0123456789abcdef0123456789abcdef01234567"

// Install registers git handlers on f and returns f.
func (g *FakeGit) Install(f *FakeRunner) *FakeRunner {
	return f.On(Argv("git"), g.Handle)
}

// Handle answers one git invocation.
func (g *FakeGit) Handle(_ context.Context, cmd runner.Cmd) result.Result {
	args := cmd.Args[1:]
	for len(args) >= 2 && args[0] == "-c" {
		args = args[2:]
	}
	if len(args) == 0 {
		return result.Failure(129, cmd.Args, "usage: git")
	}
	switch args[0] {
	case "clone":
		dest := args[len(args)-1]
		return mkdirResult(cmd.Args, dest, cloneMarker(args))
	case "init":
		return mkdirResult(cmd.Args, args[len(args)-1], "")
	case "fetch":
		return result.Result{Args: cmd.Args}
	case "checkout":
		return writeMarker(cmd.Args, cmd.Dir, "detached")
	case "ls-remote":
		return result.Result{Args: cmd.Args, Stdout: []byte(g.lsRemote(args[1:]))}
	}
	return result.Result{Args: cmd.Args}
}

func (g *FakeGit) lsRemote(args []string) string {
	if len(args) > 0 && args[len(args)-1] == "HEAD" {
		head := g.Head
		if head == "" {
			head = DefaultHead
		}
		return head + "\tHEAD\n"
	}
	var sb strings.Builder
	for i, ref := range g.Refs {
		fmt.Fprintf(&sb, "%040x\t%s\n", i+1, ref)
	}
	return sb.String()
}

func cloneMarker(args []string) string {
	for i, a := range args {
		if a == "--branch" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func mkdirResult(argv []string, dir, marker string) result.Result {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return result.FromError(argv, err)
	}
	if marker == "" {
		return result.Result{Args: argv}
	}
	return writeMarker(argv, dir, marker)
}

func writeMarker(argv []string, dir, content string) result.Result {
	if err := os.WriteFile(filepath.Join(dir, ".fake-git"), []byte(content+"\n"), 0o644); err != nil {
		return result.FromError(argv, err)
	}
	return result.Result{Args: argv}
}
