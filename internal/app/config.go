package app

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/vk/weaver/internal/toolchain"
)

// Default roots, used when neither a flag nor a configuration file sets one.
const (
	DefaultSourceRoot  = "/source"
	DefaultBuildRoot   = "/build"
	DefaultInstallRoot = "/toolchains"
)

// Config holds all the necessary configuration for an App instance to run.
// Zero values mean "not given on the command line".
type Config struct {
	ConfigPaths []string // .hcl/.toml files or directories

	Arch  string
	Org   string
	OS    string
	Host  string
	Build string
	Jobs  int

	SourceRoot  string
	BuildRoot   string
	InstallRoot string
	MinKernel   string

	// Versions maps repository name to the requested version.
	Versions map[string]string
	// ExtraConfig maps component name to extra configure arguments.
	ExtraConfig map[string][]string

	PinsPath string // read versions from
	PinsOut  string // write resolved versions to

	ResolveOnly bool
	Clean       bool
	Offline     bool

	LogFormat string
	LogLevel  string
}

// NewConfig validates cfg and returns a copy.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.Jobs < 0 {
		return nil, errors.New("jobs must not be negative")
	}
	if err := checkNames("version", keys(cfg.Versions), toolchain.Repositories); err != nil {
		return nil, err
	}
	if err := checkNames("extra config", keys(cfg.ExtraConfig), toolchain.Components); err != nil {
		return nil, err
	}
	if cfg.ResolveOnly && cfg.Clean {
		return nil, errors.New("-clean has no effect with -resolve-only")
	}
	return &cfg, nil
}

func checkNames(kind string, names, known []string) error {
	for _, name := range names {
		if !slices.Contains(known, name) {
			return fmt.Errorf("%s given for unknown component %q (known: %v)", kind, name, known)
		}
	}
	return nil
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
