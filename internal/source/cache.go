package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/vk/weaver/internal/ctxlog"
	"github.com/vk/weaver/internal/flock"
	"github.com/vk/weaver/internal/result"
	"github.com/vk/weaver/internal/runner"
)

// DefaultLockTimeout bounds how long a run waits for another run's fetch.
const DefaultLockTimeout = 30 * time.Minute

var (
	// ErrNoDefaultRef is reported when a mirror advertises no HEAD.
	ErrNoDefaultRef = errors.New("mirror advertises no default ref")
	// ErrInvalidVersion is reported for versions that cannot name a checkout.
	ErrInvalidVersion = errors.New("invalid version")
)

// Cache is the shared source root.
type Cache struct {
	// Root is the directory holding mirrors and checkouts.
	Root string
	// Runner executes git.
	Runner runner.Runner
	// Git is the git executable. Defaults to "git".
	Git string
	// LockTimeout bounds blocking lock acquisition.
	LockTimeout time.Duration

	inflight singleflight.Group
}

// NewCache creates a cache rooted at root.
func NewCache(root string, r runner.Runner) *Cache {
	return &Cache{
		Root:        root,
		Runner:      r,
		Git:         "git",
		LockTimeout: DefaultLockTimeout,
	}
}

// Repository returns the handle for one upstream project.
func (c *Cache) Repository(name, remoteURL string) *Repository {
	return &Repository{
		Name:       name,
		RemoteURL:  remoteURL,
		MirrorPath: filepath.Join(c.Root, name+".git"),
		cache:      c,
	}
}

func (c *Cache) git(args ...string) []string {
	g := c.Git
	if g == "" {
		g = "git"
	}
	return append([]string{g}, args...)
}

func (c *Cache) lockOptions() flock.Options {
	return flock.Options{Mode: flock.Exclusive, Timeout: c.LockTimeout}
}

// once collapses concurrent in-process requests for the same path into one
// operation whose result every caller observes.
func (c *Cache) once(key string, fn func() result.Result) result.Result {
	v, _, _ := c.inflight.Do(key, func() (any, error) {
		return fn(), nil
	})
	return v.(result.Result)
}

// publish populates dest through fill, which receives a temporary sibling
// directory path. On success the temporary directory is renamed to dest; on
// failure it is removed. The caller must hold the lock for dest.
func (c *Cache) publish(ctx context.Context, dest string, fill func(tmp string) result.Result) result.Result {
	logger := ctxlog.FromContext(ctx)
	parent := filepath.Dir(dest)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return result.FromError([]string{"mkdir", "-p", parent}, err)
	}

	tmp := fmt.Sprintf("%s.tmp-%s", dest, uuid.NewString())
	res := fill(tmp)
	if res.Failed() {
		if err := os.RemoveAll(tmp); err != nil {
			logger.Warn("Failed to remove partial checkout.", "path", tmp, "error", err)
		}
		return res
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.RemoveAll(tmp)
		return result.FromError([]string{"rename", tmp, dest}, err)
	}
	logger.Debug("Published directory.", "path", dest)
	return res
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// checkoutDir maps a version to a single directory name. Ref names may
// contain slashes ("releases/gcc-13.2.0"); escaping keeps distinct versions
// in distinct directories.
func checkoutDir(version string) (string, error) {
	v := strings.TrimSpace(version)
	if v == "" || v == "." || v == ".." || strings.HasPrefix(v, "-") {
		return "", fmt.Errorf("%w: %q", ErrInvalidVersion, version)
	}
	return url.PathEscape(v), nil
}
