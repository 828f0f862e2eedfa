package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vk/weaver/internal/ctxlog"
	"github.com/vk/weaver/internal/pipeline"
	"github.com/vk/weaver/internal/result"
)

// binutilsHooks creates the empty sysroot skeleton the kernel headers and
// the C library install into.
type binutilsHooks struct {
	pipeline.NopHooks
	sysroot string
}

func (h binutilsHooks) PostInstall(ctx context.Context, _ *pipeline.Pipeline) result.Result {
	ctxlog.FromContext(ctx).Info("Creating sysroot skeleton.", "sysroot", h.sysroot)
	for _, dir := range []string{filepath.Join(h.sysroot, "usr", "include"), filepath.Join(h.sysroot, "usr", "lib")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return result.FromError([]string{"mkdir", "-p", dir}, err)
		}
	}
	return result.Success()
}

// glibcHooks lays out the sysroot once the C library is installed: all
// libraries live in usr/lib and lib, lib64 point there.
type glibcHooks struct {
	pipeline.NopHooks
	sysroot string
}

func (h glibcHooks) PostInstall(ctx context.Context, _ *pipeline.Pipeline) result.Result {
	ctxlog.FromContext(ctx).Info("Normalizing sysroot library layout.", "sysroot", h.sysroot)
	if err := normalizeSysroot(h.sysroot); err != nil {
		return result.FromError([]string{"normalize-sysroot", h.sysroot}, err)
	}
	return result.Success()
}

func normalizeSysroot(sysroot string) error {
	usrLib := filepath.Join(sysroot, "usr", "lib")
	if err := os.MkdirAll(usrLib, 0o755); err != nil {
		return err
	}
	for _, dir := range []string{"lib", "lib64"} {
		path := filepath.Join(sysroot, dir)
		if err := relocate(path, usrLib); err != nil {
			return err
		}
		if err := ensureSymlink(filepath.Join("usr", "lib"), path); err != nil {
			return err
		}
	}
	return nil
}

// gccHooks makes the final compiler's target include directory resolve to
// the sysroot headers.
type gccHooks struct {
	pipeline.NopHooks
	prefix, target, sysroot string
}

func (h gccHooks) PostInstall(ctx context.Context, _ *pipeline.Pipeline) result.Result {
	include := filepath.Join(h.prefix, h.target, "include")
	headers := filepath.Join(h.sysroot, "usr", "include")
	ctxlog.FromContext(ctx).Info("Linking target headers into sysroot.", "include", include, "headers", headers)
	if err := os.MkdirAll(headers, 0o755); err != nil {
		return result.FromError([]string{"mkdir", "-p", headers}, err)
	}
	if err := relocate(include, headers); err != nil {
		return result.FromError([]string{"relocate", include, headers}, err)
	}
	if err := ensureSymlink(headers, include); err != nil {
		return result.FromError([]string{"ln", "-s", headers, include}, err)
	}
	return result.Success()
}

// relocate moves the entries of dir into dest and removes dir. Entries that
// already exist in dest are kept there. It does nothing when dir is absent
// or is a symlink.
func relocate(dir, dest string) error {
	info, err := os.Lstat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		target := filepath.Join(dest, e.Name())
		if _, err := os.Lstat(target); err == nil {
			continue
		}
		if err := os.Rename(filepath.Join(dir, e.Name()), target); err != nil {
			return fmt.Errorf("relocate %s: %w", e.Name(), err)
		}
	}
	return os.RemoveAll(dir)
}

// ensureSymlink creates link pointing at target unless link already exists.
func ensureSymlink(target, link string) error {
	if _, err := os.Lstat(link); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return err
	}
	return os.Symlink(target, link)
}
