package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/vk/weaver/internal/ctxlog"
	"github.com/vk/weaver/internal/flock"
	"github.com/vk/weaver/internal/result"
	"github.com/vk/weaver/internal/runner"
)

var commitHash = regexp.MustCompile(`^[0-9a-f]{40}([0-9a-f]{24})?$`)

// latestTokens all name the tip of the mirror's default ref.
var latestTokens = map[string]struct{}{
	"":       {},
	"latest": {},
	"master": {},
	"main":   {},
	"head":   {},
	"tip":    {},
}

// IsLatest reports whether version is a symbolic "most recent" request.
func IsLatest(version string) bool {
	_, ok := latestTokens[strings.ToLower(strings.TrimSpace(version))]
	return ok
}

// IsCommitHash reports whether version is a full SHA-1 or SHA-256 object name.
func IsCommitHash(version string) bool {
	return commitHash.MatchString(version)
}

// Repository is one upstream project's version-control origin.
type Repository struct {
	Name       string
	RemoteURL  string
	MirrorPath string

	cache *Cache
}

// FetchOptions tunes FetchVersion.
type FetchOptions struct {
	// NonBlocking fails fast with flock.ErrBusy when another run is already
	// producing this checkout.
	NonBlocking bool
	// Prepare commands run inside the new checkout before it is published,
	// e.g. generating a configure script.
	Prepare [][]string
}

// CheckoutPath is where version's checkout lives.
func (r *Repository) CheckoutPath(version string) string {
	dir, err := checkoutDir(version)
	if err != nil {
		dir = version
	}
	return filepath.Join(r.cache.Root, r.Name, dir)
}

func (r *Repository) logger(ctx context.Context) context.Context {
	return ctxlog.With(ctx, "repo", r.Name)
}

func (r *Repository) run(ctx context.Context, dir string, args ...string) result.Result {
	return r.cache.Runner.Run(ctx, runner.Cmd{Args: r.cache.git(args...), Dir: dir})
}

// InitialFetch creates the bare mirror. It is a no-op success when the mirror
// already exists, including when another run created it while this one waited
// for the lock.
func (r *Repository) InitialFetch(ctx context.Context) result.Result {
	ctx = r.logger(ctx)
	if exists(r.MirrorPath) {
		return result.Success()
	}
	return r.cache.once(r.MirrorPath, func() result.Result {
		return flock.Guard(ctx, r.MirrorPath, r.cache.lockOptions(), func() result.Result {
			if exists(r.MirrorPath) {
				return result.Success()
			}
			ctxlog.FromContext(ctx).Info("Creating bare mirror.", "remote", r.RemoteURL, "path", r.MirrorPath)
			return r.cache.publish(ctx, r.MirrorPath, func(tmp string) result.Result {
				return r.run(ctx, "", "clone", "--bare", "--quiet", r.RemoteURL, tmp)
			})
		})
	})
}

// Update refreshes the mirror from the remote, creating it first if absent.
func (r *Repository) Update(ctx context.Context) result.Result {
	ctx = r.logger(ctx)
	if !exists(r.MirrorPath) {
		return r.InitialFetch(ctx)
	}
	return r.cache.once(r.MirrorPath+"#update", func() result.Result {
		return flock.Guard(ctx, r.MirrorPath, r.cache.lockOptions(), func() result.Result {
			ctxlog.FromContext(ctx).Info("Updating mirror.", "remote", r.RemoteURL)
			return r.run(ctx, r.MirrorPath,
				"fetch", "--quiet", "--prune", "--tags", r.RemoteURL,
				"+refs/heads/*:refs/heads/*")
		})
	})
}

// FetchVersion produces the shallow checkout of version from the mirror. An
// existing checkout is reused unchanged.
func (r *Repository) FetchVersion(ctx context.Context, version string, opts FetchOptions) result.Result {
	ctx = ctxlog.With(r.logger(ctx), "version", version)
	if _, err := checkoutDir(version); err != nil {
		return result.FromError([]string{"fetch", r.Name, version}, err)
	}
	dest := r.CheckoutPath(version)
	if exists(dest) {
		return result.Success()
	}

	produce := func() result.Result {
		if exists(dest) {
			return result.Success()
		}
		ctxlog.FromContext(ctx).Info("Checking out version.", "path", dest)
		return r.cache.publish(ctx, dest, func(tmp string) result.Result {
			steps := r.checkoutSteps(ctx, version, tmp)
			for _, argv := range opts.Prepare {
				argv := argv
				steps = append(steps, func() result.Result {
					return r.cache.Runner.Run(ctx, runner.Cmd{Args: argv, Dir: tmp})
				})
			}
			return result.And(steps...)
		})
	}

	ensureMirror := func() result.Result { return r.InitialFetch(ctx) }

	if opts.NonBlocking {
		return result.And(ensureMirror, func() result.Result {
			return flock.Try(ctx, dest, flock.Exclusive, produce)
		})
	}
	return result.And(ensureMirror, func() result.Result {
		return r.cache.once(dest, func() result.Result {
			return flock.Guard(ctx, dest, r.cache.lockOptions(), produce)
		})
	})
}

func (r *Repository) checkoutSteps(ctx context.Context, version, tmp string) []result.Step {
	mirror := "file://" + r.MirrorPath
	if IsCommitHash(version) {
		return []result.Step{
			func() result.Result { return r.run(ctx, "", "init", "--quiet", tmp) },
			func() result.Result { return r.run(ctx, tmp, "fetch", "--quiet", "--depth", "1", mirror, version) },
			func() result.Result {
				return r.run(ctx, tmp, "-c", "advice.detachedHead=false", "checkout", "--quiet", "--detach", "FETCH_HEAD")
			},
		}
	}
	return []result.Step{
		func() result.Result {
			return r.run(ctx, "", "clone", "--quiet", "--depth", "1", "--single-branch", "--branch", version, mirror, tmp)
		},
	}
}

// ListVersions enumerates the mirror's branch and tag names, deduplicated and
// in descending order. It takes no lock.
func (r *Repository) ListVersions(ctx context.Context) ([]string, result.Result) {
	res := r.run(r.logger(ctx), "", "ls-remote", "--tags", "--heads", r.MirrorPath)
	if res.Failed() {
		return nil, res
	}
	return parseRefNames(res.Stdout), res
}

// ResolveVersion maps a symbolic "most recent" request to the commit the
// mirror's advertised HEAD points at. Any other value is returned unchanged;
// it is not checked against the remote.
func (r *Repository) ResolveVersion(ctx context.Context, version string) (string, result.Result) {
	if !IsLatest(version) {
		return version, result.Success()
	}
	ctx = r.logger(ctx)
	if res := r.InitialFetch(ctx); res.Failed() {
		return "", res
	}
	res := r.run(ctx, "", "ls-remote", r.MirrorPath, "HEAD")
	if res.Failed() {
		return "", res
	}
	hash, _, _ := strings.Cut(strings.TrimSpace(string(res.Stdout)), "\t")
	hash = strings.TrimSpace(hash)
	if !IsCommitHash(hash) {
		err := fmt.Errorf("%s: %w", r.MirrorPath, ErrNoDefaultRef)
		return "", result.FromError(res.Args, err)
	}
	ctxlog.FromContext(ctx).Info("Resolved version.", "requested", version, "resolved", hash)
	return hash, res
}

// parseRefNames turns `git ls-remote` output into unique short ref names.
func parseRefNames(out []byte) []string {
	seen := make(map[string]struct{})
	var names []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		ref := fields[len(fields)-1]
		ref = strings.TrimSuffix(ref, "^{}")
		name := ref[strings.LastIndex(ref, "/")+1:]
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return compareNatural(names[i], names[j]) > 0
	})
	return names
}
