// Package pipeline drives one project through configure, build and install
// against a source directory and a separate build directory.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/vk/weaver/internal/ctxlog"
	"github.com/vk/weaver/internal/project"
	"github.com/vk/weaver/internal/result"
	"github.com/vk/weaver/internal/runner"
	"github.com/vk/weaver/internal/template"
)

// DefaultMake is the build tool invocation used when Pipeline.MakeCmd is nil.
var DefaultMake = []string{"make"}

// EnterFunc is told about every operation before it starts.
type EnterFunc func(project string, op Op)

// Pipeline is the mutable build state of one project for one run.
type Pipeline struct {
	Project *project.Project
	Hooks   Hooks
	Runner  runner.Runner

	SourceDir string
	BuildDir  string
	Jobs      int

	// ConfigureCmd defaults to <SourceDir>/configure.
	ConfigureCmd []string
	// MakeCmd defaults to DefaultMake.
	MakeCmd []string

	// SkipConfigure and SkipBuild turn the stage command into a no-op for
	// projects that only install. Hooks still run and the stage still
	// advances.
	SkipConfigure bool
	SkipBuild     bool

	// OnEnter, if set, observes operations as they start.
	OnEnter EnterFunc

	// Packages names the other projects taking part in the same build.
	// Configure refuses to run when one of them is a declared conflict.
	Packages []string

	mu    sync.Mutex
	state State
}

// State is a snapshot of a pipeline's progress.
type State struct {
	Stage Stage
	// Commands holds the resolved command of each operation run so far.
	Commands map[Op]runner.Cmd
	Last     result.Result
}

// New creates a pipeline for p.
func New(p *project.Project, r runner.Runner, sourceDir, buildDir string, jobs int) *Pipeline {
	return &Pipeline{
		Project:   p,
		Hooks:     NopHooks{},
		Runner:    r,
		SourceDir: sourceDir,
		BuildDir:  buildDir,
		Jobs:      jobs,
	}
}

// State returns a copy of the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.state
	s.Commands = make(map[Op]runner.Cmd, len(p.state.Commands))
	for k, v := range p.state.Commands {
		s.Commands[k] = v
	}
	return s
}

// Stage returns the current stage.
func (p *Pipeline) Stage() Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Stage
}

// Vars is the placeholder map in effect for the next stage: the project's
// declared variables plus the pipeline's directories and job count.
func (p *Pipeline) Vars() template.Vars {
	jobs := p.Jobs
	if jobs < 1 {
		jobs = 1
	}
	return p.Project.Vars().Merge(template.Vars{
		"source_dir": p.SourceDir,
		"build_dir":  p.BuildDir,
		"jobs":       strconv.Itoa(jobs),
	})
}

// Run is configure, then build, then install.
func (p *Pipeline) Run(ctx context.Context) result.Result {
	return result.And(
		func() result.Result { return p.Configure(ctx) },
		func() result.Result { return p.Build(ctx) },
		func() result.Result { return p.Install(ctx) },
	)
}

// Configure creates the build directory and runs the configure script.
func (p *Pipeline) Configure(ctx context.Context) result.Result {
	ctx, ok, res := p.enter(ctx, OpConfigure)
	if !ok {
		return res
	}
	if err := p.Project.CheckConflicts(p.Packages); err != nil {
		return p.fail(ctx, OpConfigure, err)
	}
	vars := p.Vars()
	args, err := template.ExpandAll(p.Project.ConfigureArgs(), vars)
	if err != nil {
		return p.fail(ctx, OpConfigure, err)
	}
	env, err := template.ExpandMap(p.Project.Spec.ConfigureEnv, vars)
	if err != nil {
		return p.fail(ctx, OpConfigure, err)
	}
	configure := p.ConfigureCmd
	if configure == nil {
		configure = []string{filepath.Join(p.SourceDir, "configure")}
	}
	cmd := runner.Cmd{Args: concat(configure, args), Dir: p.BuildDir, Env: env}

	res = result.And(
		func() result.Result { return mkdir(p.BuildDir) },
		func() result.Result { return p.Hooks.PreConfigure(ctx, p) },
		func() result.Result { return p.exec(ctx, cmd, p.SkipConfigure) },
		func() result.Result { return p.Hooks.PostConfigure(ctx, p) },
	)
	return p.finish(ctx, OpConfigure, cmd, res, Configured)
}

// Build runs the build tool with the build arguments and targets.
func (p *Pipeline) Build(ctx context.Context) result.Result {
	ctx, ok, res := p.enter(ctx, OpBuild)
	if !ok {
		return res
	}
	spec := p.Project.Spec
	cmd, err := p.makeCmd(spec.BuildArgs, spec.BuildTargets, spec.BuildEnv)
	if err != nil {
		return p.fail(ctx, OpBuild, err)
	}
	res = result.And(
		func() result.Result { return p.Hooks.PreBuild(ctx, p) },
		func() result.Result { return p.exec(ctx, cmd, p.SkipBuild) },
		func() result.Result { return p.Hooks.PostBuild(ctx, p) },
	)
	return p.finish(ctx, OpBuild, cmd, res, Built)
}

// Install runs the build tool with the install arguments and targets.
func (p *Pipeline) Install(ctx context.Context) result.Result {
	ctx, ok, res := p.enter(ctx, OpInstall)
	if !ok {
		return res
	}
	spec := p.Project.Spec
	cmd, err := p.makeCmd(spec.InstallArgs, spec.InstallTargets, spec.InstallEnv)
	if err != nil {
		return p.fail(ctx, OpInstall, err)
	}
	res = result.And(
		func() result.Result { return p.Hooks.PreInstall(ctx, p) },
		func() result.Result { return p.exec(ctx, cmd, false) },
		func() result.Result { return p.Hooks.PostInstall(ctx, p) },
	)
	return p.finish(ctx, OpInstall, cmd, res, Installed)
}

// Test runs the test targets. A project without test targets passes
// trivially. The stage does not change.
func (p *Pipeline) Test(ctx context.Context) result.Result {
	ctx, ok, res := p.enter(ctx, OpTest)
	if !ok {
		return res
	}
	spec := p.Project.Spec
	if len(spec.TestTargets) == 0 {
		return result.Success()
	}
	cmd, err := p.makeCmd(nil, spec.TestTargets, spec.BuildEnv)
	if err != nil {
		return p.fail(ctx, OpTest, err)
	}
	res = p.exec(ctx, cmd, false)
	return p.finish(ctx, OpTest, cmd, res, p.Stage())
}

// Clean removes the build directory and resets the pipeline. The source
// checkout is never touched.
func (p *Pipeline) Clean(ctx context.Context) result.Result {
	ctx, _, _ = p.enter(ctx, OpClean)
	cmd := runner.Cmd{Args: []string{"rm", "-rf", p.BuildDir}}
	res := result.And(
		func() result.Result {
			if err := os.RemoveAll(p.BuildDir); err != nil {
				return result.FromError(cmd.Args, err)
			}
			return result.Success()
		},
		func() result.Result { return p.Hooks.Clean(ctx, p) },
	)
	return p.finish(ctx, OpClean, cmd, res, Unconfigured)
}

func (p *Pipeline) makeCmd(args, targets []string, env map[string]string) (runner.Cmd, error) {
	vars := p.Vars()
	a, err := template.ExpandAll(concat(args, targets), vars)
	if err != nil {
		return runner.Cmd{}, err
	}
	e, err := template.ExpandMap(env, vars)
	if err != nil {
		return runner.Cmd{}, err
	}
	mk := p.MakeCmd
	if mk == nil {
		mk = DefaultMake
	}
	mk, err = template.ExpandAll(mk, vars)
	if err != nil {
		return runner.Cmd{}, err
	}
	return runner.Cmd{Args: concat(mk, a), Dir: p.BuildDir, Env: e}, nil
}

// enter validates the transition and announces the operation.
func (p *Pipeline) enter(ctx context.Context, op Op) (context.Context, bool, result.Result) {
	ctx = ctxlog.With(ctx, "component", p.Project.Name, "op", string(op))
	current := p.Stage()
	if current < requires[op] {
		err := &StageError{Project: p.Project.Name, Op: op, Current: current}
		ctxlog.FromContext(ctx).Error("Stage out of order.", "stage", current)
		return ctx, false, result.FromError([]string{string(op), p.Project.Name}, err)
	}
	if p.OnEnter != nil {
		p.OnEnter(p.Project.Name, op)
	}
	ctxlog.FromContext(ctx).Info("Entering stage.", "version", p.Project.Version, "build_dir", p.BuildDir)
	return ctx, true, result.Success()
}

func (p *Pipeline) exec(ctx context.Context, cmd runner.Cmd, skip bool) result.Result {
	if skip {
		ctxlog.FromContext(ctx).Debug("Stage command skipped.")
		return result.Success()
	}
	return p.Runner.Run(ctx, cmd)
}

// fail reports a configuration error found before anything was spawned.
func (p *Pipeline) fail(ctx context.Context, op Op, err error) result.Result {
	res := result.FromError([]string{string(op), p.Project.Name}, fmt.Errorf("%s: %w", p.Project.Name, err))
	p.record(op, runner.Cmd{}, res, failedStage(op))
	ctxlog.FromContext(ctx).Error("Stage configuration failed.", "error", err)
	return res
}

func (p *Pipeline) finish(ctx context.Context, op Op, cmd runner.Cmd, res result.Result, next Stage) result.Result {
	logger := ctxlog.FromContext(ctx)
	if res.Failed() {
		p.record(op, cmd, res, failedStage(op))
		logger.Error("Stage failed.", "exit_code", res.ExitCode, "stderr", string(res.Stderr), "error", res.Err)
		return res
	}
	p.record(op, cmd, res, &next)
	logger.Info("Stage finished.")
	return res
}

// failedStage is the stage a pipeline falls back to when op fails. A failed
// configure leaves the build directory in an unknown state, so everything
// after it must run again.
func failedStage(op Op) *Stage {
	if op != OpConfigure {
		return nil
	}
	s := Unconfigured
	return &s
}

func (p *Pipeline) record(op Op, cmd runner.Cmd, res result.Result, next *Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Commands == nil {
		p.state.Commands = make(map[Op]runner.Cmd)
	}
	if len(cmd.Args) > 0 {
		p.state.Commands[op] = cmd
	}
	p.state.Last = res
	if next != nil {
		p.state.Stage = *next
	}
}

func mkdir(dir string) result.Result {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return result.FromError([]string{"mkdir", "-p", dir}, err)
	}
	return result.Success()
}

func concat(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
