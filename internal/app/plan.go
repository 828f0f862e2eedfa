package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/vk/weaver/internal/buildcfg"
	"github.com/vk/weaver/internal/config"
	"github.com/vk/weaver/internal/ctxlog"
	"github.com/vk/weaver/internal/pins"
	"github.com/vk/weaver/internal/toolchain"
)

// plan is the merged view of configuration files, pins and flags, before
// versions are resolved.
type plan struct {
	build     buildcfg.Config
	requested map[string]string
	remotes   map[string]string
	prepare   map[string][][]string
	pinned    *pins.File
}

// loadFile reads the configuration files, if any.
func (a *App) loadFile(ctx context.Context) (*config.Toolchain, error) {
	if len(a.config.ConfigPaths) == 0 {
		return &config.Toolchain{}, nil
	}
	tc, err := a.loader.Load(ctx, a.config.ConfigPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return tc, nil
}

// makePlan overlays, from weakest to strongest: built-in defaults, the
// configuration files, the pins file and the command line.
func (a *App) makePlan(ctx context.Context, file *config.Toolchain) (*plan, error) {
	logger := ctxlog.FromContext(ctx)
	flags := a.config

	if err := checkNames("component block", file.ComponentNames(), slices.Concat(toolchain.Components, toolchain.Repositories)); err != nil {
		return nil, err
	}
	for _, ac := range file.ArchConfig {
		if err := checkNames("arch_config", []string{ac.Component}, toolchain.Components); err != nil {
			return nil, err
		}
	}

	p := &plan{
		build: buildcfg.Config{
			Arch:        pick(flags.Arch, file.Arch),
			Org:         pick(flags.Org, file.Org),
			OS:          pick(flags.OS, file.OS),
			Host:        pick(flags.Host, file.Host),
			Build:       pick(flags.Build, file.Build),
			Jobs:        file.Jobs,
			SourceRoot:  pick(flags.SourceRoot, file.SourceRoot, DefaultSourceRoot),
			BuildRoot:   pick(flags.BuildRoot, file.BuildRoot, DefaultBuildRoot),
			InstallRoot: pick(flags.InstallRoot, file.InstallRoot, DefaultInstallRoot),
			MinKernel:   pick(flags.MinKernel, file.MinKernel),
		},
		requested: file.Versions(),
		remotes:   file.Remotes(),
		prepare:   file.Prepare(),
	}
	if p.build.Arch == "" {
		return nil, errors.New("no target architecture: set -arch or `arch` in the configuration")
	}
	if flags.Jobs > 0 {
		p.build.Jobs = flags.Jobs
	}
	for kind, names := range map[string][]string{
		"version": keys(p.requested),
		"remote":  keys(p.remotes),
		"prepare": keys(p.prepare),
	} {
		if err := checkNames(kind, names, toolchain.Repositories); err != nil {
			return nil, err
		}
	}

	if flags.PinsPath != "" {
		pinned, err := pins.Read(flags.PinsPath)
		if err != nil {
			return nil, err
		}
		if err := checkNames("pin", pinned.Names(), toolchain.Repositories); err != nil {
			return nil, err
		}
		maps.Copy(p.requested, pinned.Versions())
		for name, pin := range pinned.Components {
			if pin.Remote != "" {
				p.remotes[name] = pin.Remote
			}
		}
		p.pinned = pinned
		logger.Info("Versions pinned.", "file", flags.PinsPath, "count", len(pinned.Components))
	}
	maps.Copy(p.requested, flags.Versions)

	p.build.ExtraConfig = file.ExtraConfig()
	maps.Copy(p.build.ExtraConfig, flags.ExtraConfig)
	p.build.Remotes = p.remotes
	p.build.Prepare = p.prepare
	if p.build.Arch != "" {
		p.build.ArchConfig = file.ArchArgs(p.build.Arch)
	}
	return p, nil
}

// remote returns the URL repository name is fetched from.
func (p *plan) remote(name string) string {
	if u, ok := p.remotes[name]; ok {
		return u
	}
	return toolchain.DefaultRemotes[name]
}

func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
