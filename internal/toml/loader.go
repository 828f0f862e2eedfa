// Package toml provides the TOML implementation of config.Loader, for users
// who keep their build settings next to other TOML configuration.
//
//	arch = "aarch64"
//	jobs = 8
//
//	[components.gcc]
//	version = "releases/gcc-14.1.0"
//	extra_config = ["--enable-languages=c,c++"]
//
//	[[arch_config]]
//	component = "glibc"
//	arch = "aarch64"
//	args = ["--enable-mathvec"]
package toml

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/vk/weaver/internal/config"
	"github.com/vk/weaver/internal/ctxlog"
)

type file struct {
	Arch        string `toml:"arch"`
	Org         string `toml:"org"`
	OS          string `toml:"os"`
	Host        string `toml:"host"`
	Build       string `toml:"build"`
	Jobs        int    `toml:"jobs"`
	SourceRoot  string `toml:"source_root"`
	BuildRoot   string `toml:"build_root"`
	InstallRoot string `toml:"install_root"`
	MinKernel   string `toml:"min_kernel"`

	Components map[string]component `toml:"components"`
	ArchConfig []archConfig          `toml:"arch_config"`
	Log        logSection            `toml:"log"`
}

type component struct {
	Version     string     `toml:"version"`
	Remote      string     `toml:"remote"`
	ExtraConfig []string   `toml:"extra_config"`
	Prepare     [][]string `toml:"prepare"`
}

type archConfig struct {
	Component string   `toml:"component"`
	Arch      string   `toml:"arch"`
	Args      []string `toml:"args"`
}

type logSection struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Loader is the TOML-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new TOML configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads each file in order; later files override earlier ones. Unknown
// keys are rejected.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Toolchain, error) {
	logger := ctxlog.FromContext(ctx)
	merged := &config.Toolchain{}
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		var f file
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}

		tc, err := f.translate()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		merged.Merge(tc)
		logger.Debug("TOML file loaded.", "file", path, "components", len(f.Components))
	}
	return merged, nil
}

func (f *file) translate() (*config.Toolchain, error) {
	tc := &config.Toolchain{
		Arch:        f.Arch,
		Org:         f.Org,
		OS:          f.OS,
		Host:        f.Host,
		Build:       f.Build,
		Jobs:        f.Jobs,
		SourceRoot:  f.SourceRoot,
		BuildRoot:   f.BuildRoot,
		InstallRoot: f.InstallRoot,
		MinKernel:   f.MinKernel,
		Log:         config.Log{Level: f.Log.Level, Format: f.Log.Format},
	}
	for name, c := range f.Components {
		dst := tc.Component(name)
		dst.Version = c.Version
		dst.Remote = c.Remote
		dst.ExtraConfig = c.ExtraConfig
		dst.Prepare = c.Prepare
	}
	for i, ac := range f.ArchConfig {
		if ac.Component == "" || ac.Arch == "" {
			return nil, fmt.Errorf("arch_config[%d]: component and arch are required", i)
		}
		tc.ArchConfig = append(tc.ArchConfig, &config.ArchConfig{
			Component: ac.Component,
			Arch:      ac.Arch,
			Args:      ac.Args,
		})
	}
	return tc, nil
}
