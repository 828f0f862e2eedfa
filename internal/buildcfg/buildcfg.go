// Package buildcfg holds the fully resolved configuration of one toolchain
// build and derives its identity: a fixed-width hash that names the
// installation prefix.
package buildcfg

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vk/weaver/internal/source"
)

const (
	// DefaultOrg is the vendor field of generated target triples.
	DefaultOrg = "weaver"
	// DefaultOS is the system field of generated target triples.
	DefaultOS = "linux-gnu"
	// SysrootDir is the sysroot's name below the prefix.
	SysrootDir = "rootfs"
)

var (
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid build configuration")
	// ErrUnresolvedVersion is reported when a version is still symbolic.
	ErrUnresolvedVersion = errors.New("version not resolved")
)

// Config is the input to one toolchain build. Resolve fills in the derived
// fields; a resolved Config is treated as immutable.
type Config struct {
	Arch  string `validate:"required,triplepart"`
	Org   string `validate:"required,triplepart"`
	OS    string `validate:"required"`
	Host  string `validate:"required"`
	Build string `validate:"required"`
	Jobs  int    `validate:"gte=1"`

	// Versions maps component name to a resolved ref or commit.
	Versions map[string]string `validate:"required,dive,keys,required,endkeys,required"`
	// ExtraConfig holds additional configure arguments per component.
	ExtraConfig map[string][]string `validate:"omitempty,dive,keys,required,endkeys,dive,required"`
	// ArchConfig holds architecture-specific configure arguments per
	// component that extend the built-in table.
	ArchConfig map[string][]string `validate:"omitempty,dive,keys,required,endkeys,dive,required"`

	// MinKernel overrides the kernel version the C library is configured
	// for. Empty derives it from the linux version.
	MinKernel string
	// Remotes overrides the upstream URL per repository.
	Remotes map[string]string `validate:"omitempty,dive,keys,required,endkeys,required"`
	// Prepare overrides the commands run in a fresh checkout per
	// repository. An empty list disables them.
	Prepare map[string][][]string

	SourceRoot  string `validate:"required"`
	BuildRoot   string `validate:"required"`
	InstallRoot string `validate:"required"`

	Target  string
	Hash    string
	Prefix  string
	Sysroot string
}

var triplePart = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("triplepart", func(fl validator.FieldLevel) bool {
		return triplePart.MatchString(fl.Field().String())
	})
	return v
}

// Triple builds `<arch>-<org>-<os>`.
func Triple(arch, org, os string) string {
	return arch + "-" + org + "-" + os
}

// DefaultHost is the triple of the machine running the build.
func DefaultHost() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64-pc-linux-gnu"
	case "386":
		return "i686-pc-linux-gnu"
	case "arm64":
		return "aarch64-unknown-linux-gnu"
	case "ppc64le":
		return "powerpc64le-unknown-linux-gnu"
	}
	return runtime.GOARCH + "-unknown-linux-gnu"
}

// Resolve fills defaults, validates c and derives the target triple, the
// identity hash, the prefix and the sysroot. c itself is not modified.
func Resolve(c Config) (Config, error) {
	c.Versions = maps.Clone(c.Versions)
	c.ExtraConfig = cloneLists(c.ExtraConfig)
	c.ArchConfig = cloneLists(c.ArchConfig)
	c.Remotes = maps.Clone(c.Remotes)
	c.Prepare = cloneCommands(c.Prepare)
	if c.Org == "" {
		c.Org = DefaultOrg
	}
	if c.OS == "" {
		c.OS = DefaultOS
	}
	if c.Host == "" {
		c.Host = DefaultHost()
	}
	if c.Build == "" {
		c.Build = c.Host
	}
	if c.Jobs == 0 {
		c.Jobs = runtime.NumCPU()
	}

	if err := validate.Struct(c); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	for _, name := range sortedKeys(c.Versions) {
		if source.IsLatest(c.Versions[name]) {
			return Config{}, fmt.Errorf("%w: %s=%q", ErrUnresolvedVersion, name, c.Versions[name])
		}
	}

	var err error
	for _, root := range []*string{&c.SourceRoot, &c.BuildRoot, &c.InstallRoot} {
		if *root, err = filepath.Abs(*root); err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	}

	c.Target = Triple(c.Arch, c.Org, c.OS)
	c.Hash = Identity(c)
	c.Prefix = filepath.Join(c.InstallRoot, c.Target+"-"+c.Hash)
	c.Sysroot = filepath.Join(c.Prefix, SysrootDir)
	return c, nil
}

// Version returns the resolved version of component.
func (c Config) Version(component string) string {
	return c.Versions[component]
}

// String summarizes the configuration for logs.
func (c Config) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (host %s, build %s)", c.Target, c.Host, c.Build)
	for _, name := range sortedKeys(c.Versions) {
		fmt.Fprintf(&sb, " %s=%s", name, c.Versions[name])
	}
	return sb.String()
}

func cloneLists(m map[string][]string) map[string][]string {
	if m == nil {
		return nil
	}
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func cloneCommands(m map[string][][]string) map[string][][]string {
	if m == nil {
		return nil
	}
	out := make(map[string][][]string, len(m))
	for k, cmds := range m {
		cp := make([][]string, len(cmds))
		for i, argv := range cmds {
			cp[i] = append([]string(nil), argv...)
		}
		out[k] = cp
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
