package toolchain

import (
	"context"

	"github.com/vk/weaver/internal/ctxlog"
	"github.com/vk/weaver/internal/result"
	"github.com/vk/weaver/internal/source"
)

// ResolveOptions tunes ResolveVersions.
type ResolveOptions struct {
	// Remotes overrides DefaultRemotes per repository.
	Remotes map[string]string
	// Offline skips refreshing mirrors that already exist.
	Offline bool
}

// ResolveVersions turns the requested version of every repository into a
// concrete ref or commit. Missing entries mean "latest". Mirrors are created
// or refreshed first so that symbolic versions name the remote's current
// head and new tags are visible.
func ResolveVersions(ctx context.Context, cache *source.Cache, requested map[string]string, opts ResolveOptions) (map[string]string, result.Result) {
	logger := ctxlog.FromContext(ctx)
	resolved := make(map[string]string, len(Repositories))
	for _, name := range Repositories {
		remote := DefaultRemotes[name]
		if u, ok := opts.Remotes[name]; ok {
			remote = u
		}
		repo := cache.Repository(name, remote)

		refresh := repo.Update
		if opts.Offline {
			refresh = repo.InitialFetch
		}
		if res := refresh(ctx); res.Failed() {
			return nil, res
		}

		version, res := repo.ResolveVersion(ctx, requested[name])
		if res.Failed() {
			return nil, res
		}
		resolved[name] = version
		logger.Debug("Version resolved.", "repo", name, "requested", requested[name], "version", version)
	}
	return resolved, result.Success()
}
