// Package toolchain assembles the staged bootstrap of a GNU cross toolchain:
// support libraries, binutils, kernel headers, a bootstrap compiler, the C
// library and the final compiler. Stages run one at a time in dependency
// order; each fetches its sources through the shared cache and then runs
// its build pipeline.
package toolchain

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sync/atomic"

	"github.com/vk/weaver/internal/buildcfg"
	"github.com/vk/weaver/internal/ctxlog"
	"github.com/vk/weaver/internal/pipeline"
	"github.com/vk/weaver/internal/project"
	"github.com/vk/weaver/internal/result"
	"github.com/vk/weaver/internal/runner"
	"github.com/vk/weaver/internal/source"
	"github.com/vk/weaver/internal/template"
)

// DefaultMinKernel is passed to glibc's --enable-kernel when the kernel
// version is not a release tag.
const DefaultMinKernel = "3.2"

// OpFetch is reported to observers before a component's sources are fetched.
const OpFetch pipeline.Op = "fetch"

// Event announces that a component entered an operation. Seq increases by
// one for every event of a run.
type Event struct {
	Seq       int64
	Component string
	Op        pipeline.Op
}

// Observer receives events synchronously, in order.
type Observer func(Event)

// Options tunes a Graph.
type Options struct {
	// Clean removes each component's build directory before configuring.
	Clean    bool
	Observer Observer
}

// Stage is one component of the graph, bound to its sources and pipeline.
type Stage struct {
	Name     string
	Version  string
	Repo     *source.Repository
	Prepare  [][]string
	Pipeline *pipeline.Pipeline
}

// Graph is the instantiated toolchain for one resolved configuration.
type Graph struct {
	cfg     buildcfg.Config
	catalog *project.Catalog
	stages  map[string]*Stage
	order   []string
	opts    Options
	seq     atomic.Int64
}

// New instantiates every component for cfg. cfg must come from
// buildcfg.Resolve and carry a version for every repository.
func New(cfg buildcfg.Config, cache *source.Cache, r runner.Runner, opts Options) (*Graph, error) {
	if cfg.Prefix == "" || cfg.Hash == "" {
		return nil, fmt.Errorf("toolchain: configuration is not resolved")
	}
	for _, repo := range Repositories {
		if cfg.Version(repo) == "" {
			return nil, fmt.Errorf("toolchain: no version for %s", repo)
		}
	}

	g := &Graph{cfg: cfg, stages: make(map[string]*Stage, len(Components)), opts: opts}
	vars := g.vars()

	projects := make([]*project.Project, 0, len(Components))
	for _, name := range Components {
		repoName := RepoOf(name)
		version := cfg.Version(repoName)
		p, err := project.New(name, version, vars,
			layers(name, cfg.Arch, cfg.ArchConfig[name], cfg.ExtraConfig[name])...)
		if err != nil {
			return nil, fmt.Errorf("toolchain: %w", err)
		}
		projects = append(projects, p)

		remote := DefaultRemotes[repoName]
		if u, ok := cfg.Remotes[repoName]; ok {
			remote = u
		}
		prepare := DefaultPrepare[repoName]
		if cmds, ok := cfg.Prepare[repoName]; ok {
			prepare = cmds
		}
		repo := cache.Repository(repoName, remote)

		buildDir := filepath.Join(cfg.BuildRoot, name, versionDir(version))
		pl := pipeline.New(p, r, repo.CheckoutPath(version), buildDir, cfg.Jobs)
		pl.OnEnter = g.emit
		switch name {
		case Binutils:
			pl.Hooks = binutilsHooks{sysroot: cfg.Sysroot}
		case Linux:
			pl.SkipConfigure = true
			pl.SkipBuild = true
			pl.MakeCmd = []string{"make", "-C", "${source_dir}", "O=${build_dir}"}
		case Glibc:
			pl.Hooks = glibcHooks{sysroot: cfg.Sysroot}
		case GCC:
			pl.Hooks = gccHooks{prefix: cfg.Prefix, target: cfg.Target, sysroot: cfg.Sysroot}
		}

		g.stages[name] = &Stage{Name: name, Version: version, Repo: repo, Prepare: prepare, Pipeline: pl}
	}

	catalog, err := project.NewCatalog(projects...)
	if err != nil {
		return nil, fmt.Errorf("toolchain: %w", err)
	}
	order, err := catalog.Order()
	if err != nil {
		return nil, fmt.Errorf("toolchain: %w", err)
	}
	for _, s := range g.stages {
		s.Pipeline.Packages = order
	}
	g.catalog = catalog
	g.order = order
	return g, nil
}

// vars is the declared placeholder map shared by every component.
func (g *Graph) vars() template.Vars {
	return template.Vars{
		"arch":           g.cfg.Arch,
		"kernel_arch":    KernelArch(g.cfg.Arch),
		"target":         g.cfg.Target,
		"host":           g.cfg.Host,
		"build":          g.cfg.Build,
		"prefix":         g.cfg.Prefix,
		"sysroot":        g.cfg.Sysroot,
		"kernel_version": g.minKernel(),
		"host_path":      os.Getenv("PATH"),
	}
}

var kernelRelease = regexp.MustCompile(`^v?(\d+\.\d+)`)

func (g *Graph) minKernel() string {
	if g.cfg.MinKernel != "" {
		return g.cfg.MinKernel
	}
	if m := kernelRelease.FindStringSubmatch(g.cfg.Version(Linux)); m != nil {
		return m[1]
	}
	return DefaultMinKernel
}

func (g *Graph) emit(component string, op pipeline.Op) {
	seq := g.seq.Add(1)
	if g.opts.Observer != nil {
		g.opts.Observer(Event{Seq: seq, Component: component, Op: op})
	}
}

// Config returns the configuration the graph was built for.
func (g *Graph) Config() buildcfg.Config { return g.cfg }

// Order returns the component names in execution order.
func (g *Graph) Order() []string { return append([]string(nil), g.order...) }

// Stage returns a component's stage.
func (g *Graph) Stage(name string) (*Stage, bool) {
	s, ok := g.stages[name]
	return s, ok
}

// Catalog exposes the component dependency catalog.
func (g *Graph) Catalog() *project.Catalog { return g.catalog }

// Run builds every component in order and stops at the first failure,
// which is returned unchanged.
func (g *Graph) Run(ctx context.Context) result.Result {
	logger := ctxlog.FromContext(ctx)
	if err := g.catalog.CheckConflicts(); err != nil {
		logger.Error("Configuration conflict.", "error", err)
		return result.FromError([]string{"check-conflicts"}, err)
	}
	logger.Info("Building toolchain.", "target", g.cfg.Target, "prefix", g.cfg.Prefix, "stages", len(g.order))

	steps := make([]result.Step, 0, len(g.order))
	for _, name := range g.order {
		stage := g.stages[name]
		steps = append(steps, func() result.Result { return g.runStage(ctx, stage) })
	}
	res := result.And(steps...)
	if res.Failed() {
		logger.Error("Toolchain build failed.", "error", res.Error())
		return res
	}
	logger.Info("Toolchain build finished.", "prefix", g.cfg.Prefix)
	return res
}

func (g *Graph) runStage(ctx context.Context, s *Stage) result.Result {
	ctx = ctxlog.With(ctx, "component", s.Name)
	return result.And(
		func() result.Result { return g.Fetch(ctx, s) },
		func() result.Result {
			if !g.opts.Clean {
				return result.Success()
			}
			return s.Pipeline.Clean(ctx)
		},
		func() result.Result { return s.Pipeline.Run(ctx) },
	)
}

// Fetch makes the stage's checkout available, holding the checkout's lock
// only while it is produced.
func (g *Graph) Fetch(ctx context.Context, s *Stage) result.Result {
	g.emit(s.Name, OpFetch)
	return s.Repo.FetchVersion(ctx, s.Version, source.FetchOptions{Prepare: s.Prepare})
}

// Clean removes every component's build directory.
func (g *Graph) Clean(ctx context.Context) result.Result {
	steps := make([]result.Step, 0, len(g.order))
	for _, name := range g.order {
		pl := g.stages[name].Pipeline
		steps = append(steps, func() result.Result { return pl.Clean(ctx) })
	}
	return result.And(steps...)
}

// versionDir escapes version the way source checkouts are named.
func versionDir(version string) string {
	return url.PathEscape(version)
}
