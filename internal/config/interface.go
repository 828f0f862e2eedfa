package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/vk/weaver/internal/ctxlog"
	"github.com/vk/weaver/internal/fsutil"
)

// ErrUnknownFormat is returned for a file whose extension no loader handles.
var ErrUnknownFormat = errors.New("unknown configuration format")

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads configuration from the given files and translates them into
	// the format-agnostic model. Later files override earlier ones.
	Load(ctx context.Context, paths ...string) (*Toolchain, error)
}

// Formats dispatches files to loaders by extension (".hcl", ".toml"). It
// implements Loader itself; directories are expanded to every file with a
// known extension, in lexical order.
type Formats map[string]Loader

// Load implements Loader.
func (f Formats) Load(ctx context.Context, paths ...string) (*Toolchain, error) {
	logger := ctxlog.FromContext(ctx)
	files, err := f.expand(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered configuration files.", "count", len(files))

	merged := &Toolchain{}
	for _, file := range files {
		loader, ok := f[filepath.Ext(file)]
		if !ok {
			return nil, fmt.Errorf("%s: %w", file, ErrUnknownFormat)
		}
		tc, err := loader.Load(ctx, file)
		if err != nil {
			return nil, err
		}
		merged.Merge(tc)
	}
	return merged, nil
}

func (f Formats) expand(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, dup := seen[p]; !dup {
			seen[p] = struct{}{}
			files = append(files, p)
		}
	}
	for _, path := range paths {
		isDir, err := fsutil.IsDir(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}
		if !isDir {
			add(path)
			continue
		}
		var found []string
		for ext := range f {
			matches, err := fsutil.FindFilesByExtension(path, ext)
			if err != nil {
				return nil, err
			}
			found = append(found, matches...)
		}
		sort.Strings(found)
		for _, p := range found {
			add(p)
		}
	}
	return files, nil
}
