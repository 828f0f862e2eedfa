package app

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/vk/weaver/internal/buildcfg"
	"github.com/vk/weaver/internal/ctxlog"
	"github.com/vk/weaver/internal/pins"
	"github.com/vk/weaver/internal/result"
	"github.com/vk/weaver/internal/source"
	"github.com/vk/weaver/internal/toolchain"
)

// Run executes the main application logic: load, resolve, then build. A
// failed external command is returned as a *result.FailureError.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	file, err := a.loadFile(ctx)
	if err != nil {
		return err
	}
	a.applyFileLogging(file.Log.Level, file.Log.Format)
	ctx = ctxlog.WithLogger(ctx, a.logger)

	p, err := a.makePlan(ctx, file)
	if err != nil {
		return err
	}

	cache := source.NewCache(p.build.SourceRoot, a.runner)
	a.logger.Info("Resolving versions.", "source_root", p.build.SourceRoot, "offline", a.config.Offline)
	versions, res := toolchain.ResolveVersions(ctx, cache, p.requested, toolchain.ResolveOptions{
		Remotes: p.remotes,
		Offline: a.config.Offline,
	})
	if res.Failed() {
		return a.fail("resolve", res)
	}
	p.build.Versions = versions

	cfg, err := buildcfg.Resolve(p.build)
	if err != nil {
		return err
	}
	a.logger.Info("Build configuration resolved.", "target", cfg.Target, "hash", cfg.Hash, "prefix", cfg.Prefix)
	if p.pinned != nil && p.pinned.Hash != "" && p.pinned.Hash != cfg.Hash {
		a.logger.Warn("Pinned identity differs from this build; settings other than versions changed.",
			"pinned", p.pinned.Hash, "current", cfg.Hash)
	}

	if a.config.PinsOut != "" {
		remotes := make(map[string]string, len(toolchain.Repositories))
		for _, name := range toolchain.Repositories {
			remotes[name] = p.remote(name)
		}
		if err := pins.Write(a.config.PinsOut, pins.FromConfig(cfg, remotes)); err != nil {
			return fmt.Errorf("failed to write pins: %w", err)
		}
		a.logger.Info("Pins written.", "file", a.config.PinsOut)
	}

	if a.config.ResolveOnly {
		return a.printSummary(cfg)
	}

	graph, err := toolchain.New(cfg, cache, a.runner, toolchain.Options{
		Clean: a.config.Clean,
		Observer: func(ev toolchain.Event) {
			a.logger.Info("Stage started.", "seq", ev.Seq, "component", ev.Component, "op", string(ev.Op))
		},
	})
	if err != nil {
		return err
	}

	a.logger.Info("Starting toolchain build.", "stages", strings.Join(graph.Order(), ","), "jobs", cfg.Jobs)
	if res := graph.Run(ctx); res.Failed() {
		return a.fail("build", res)
	}
	a.logger.Info("Toolchain build finished.", "prefix", cfg.Prefix)
	fmt.Fprintf(a.outW, "%s installed at %s\n", cfg.Target, cfg.Prefix)

	a.logger.Debug("App.Run method finished.")
	return nil
}

// applyFileLogging rebuilds the logger from the configuration file's log
// block for whatever the command line left unset.
func (a *App) applyFileLogging(level, format string) {
	if level == "" && format == "" {
		return
	}
	level = pick(a.config.LogLevel, level)
	format = pick(a.config.LogFormat, format)
	a.logger = newLogger(level, format, a.outW).With("run_id", a.runID)
}

func (a *App) fail(phase string, res result.Result) error {
	a.logger.Error("Command failed.",
		"phase", phase,
		"command", strings.Join(res.Args, " "),
		"exit_code", res.ExitCode,
		"stderr", strings.TrimSpace(string(res.Stderr)),
	)
	return res.Error()
}

func (a *App) printSummary(cfg buildcfg.Config) error {
	w := tabwriter.NewWriter(a.outW, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "target\t%s\n", cfg.Target)
	fmt.Fprintf(w, "hash\t%s\n", cfg.Hash)
	fmt.Fprintf(w, "prefix\t%s\n", cfg.Prefix)
	fmt.Fprintf(w, "sysroot\t%s\n", cfg.Sysroot)
	for _, name := range keys(cfg.Versions) {
		fmt.Fprintf(w, "%s\t%s\n", name, cfg.Versions[name])
	}
	return w.Flush()
}
