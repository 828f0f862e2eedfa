package config

import "sort"

// Toolchain is the unified representation of one or more configuration
// files. Empty fields mean "not set" and are filled by flags or defaults.
type Toolchain struct {
	Arch  string
	Org   string
	OS    string
	Host  string
	Build string
	Jobs  int

	SourceRoot  string
	BuildRoot   string
	InstallRoot string

	// MinKernel overrides the kernel version glibc is configured for.
	MinKernel string

	// Components is keyed by component or repository name.
	Components map[string]*Component
	ArchConfig []*ArchConfig

	Log Log
}

// Component carries the per-component settings of a `component` block.
type Component struct {
	Name        string
	Version     string
	Remote      string
	ExtraConfig []string
	// Prepare replaces the default commands run inside a fresh checkout.
	// A nil value keeps the defaults; an empty non-nil one disables them.
	Prepare [][]string
}

// ArchConfig adds configure arguments to Component when building for Arch.
type ArchConfig struct {
	Component string
	Arch      string
	Args      []string
}

// Log holds logging preferences; flags take precedence.
type Log struct {
	Level  string
	Format string
}

// Merge overlays other onto t. Set scalars replace, components merge field
// by field, arch_config entries accumulate.
func (t *Toolchain) Merge(other *Toolchain) {
	if other == nil {
		return
	}
	setString(&t.Arch, other.Arch)
	setString(&t.Org, other.Org)
	setString(&t.OS, other.OS)
	setString(&t.Host, other.Host)
	setString(&t.Build, other.Build)
	if other.Jobs != 0 {
		t.Jobs = other.Jobs
	}
	setString(&t.SourceRoot, other.SourceRoot)
	setString(&t.BuildRoot, other.BuildRoot)
	setString(&t.InstallRoot, other.InstallRoot)
	setString(&t.MinKernel, other.MinKernel)
	setString(&t.Log.Level, other.Log.Level)
	setString(&t.Log.Format, other.Log.Format)

	for name, c := range other.Components {
		cur := t.Component(name)
		setString(&cur.Version, c.Version)
		setString(&cur.Remote, c.Remote)
		if c.ExtraConfig != nil {
			cur.ExtraConfig = append([]string(nil), c.ExtraConfig...)
		}
		if c.Prepare != nil {
			cur.Prepare = cloneCommands(c.Prepare)
		}
	}
	for _, ac := range other.ArchConfig {
		cp := *ac
		cp.Args = append([]string(nil), ac.Args...)
		t.ArchConfig = append(t.ArchConfig, &cp)
	}
}

// Component returns the named component, creating it when absent.
func (t *Toolchain) Component(name string) *Component {
	if t.Components == nil {
		t.Components = make(map[string]*Component)
	}
	c, ok := t.Components[name]
	if !ok {
		c = &Component{Name: name}
		t.Components[name] = c
	}
	return c
}

// ComponentNames returns the configured component names, sorted.
func (t *Toolchain) ComponentNames() []string {
	names := make([]string, 0, len(t.Components))
	for name := range t.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Versions returns the requested version of every component that sets one.
func (t *Toolchain) Versions() map[string]string {
	out := make(map[string]string)
	for name, c := range t.Components {
		if c.Version != "" {
			out[name] = c.Version
		}
	}
	return out
}

// Remotes returns the remote override of every component that sets one.
func (t *Toolchain) Remotes() map[string]string {
	out := make(map[string]string)
	for name, c := range t.Components {
		if c.Remote != "" {
			out[name] = c.Remote
		}
	}
	return out
}

// ExtraConfig returns the extra configure arguments per component.
func (t *Toolchain) ExtraConfig() map[string][]string {
	out := make(map[string][]string)
	for name, c := range t.Components {
		if len(c.ExtraConfig) > 0 {
			out[name] = append([]string(nil), c.ExtraConfig...)
		}
	}
	return out
}

// Prepare returns the prepare-command overrides per component.
func (t *Toolchain) Prepare() map[string][][]string {
	out := make(map[string][][]string)
	for name, c := range t.Components {
		if c.Prepare != nil {
			out[name] = cloneCommands(c.Prepare)
		}
	}
	return out
}

// ArchArgs collects the arch_config arguments that apply to arch, per
// component, in declaration order.
func (t *Toolchain) ArchArgs(arch string) map[string][]string {
	out := make(map[string][]string)
	for _, ac := range t.ArchConfig {
		if ac.Arch == arch {
			out[ac.Component] = append(out[ac.Component], ac.Args...)
		}
	}
	return out
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func cloneCommands(cmds [][]string) [][]string {
	out := make([][]string, len(cmds))
	for i, c := range cmds {
		out[i] = append([]string(nil), c...)
	}
	return out
}
