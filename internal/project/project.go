package project

import (
	"fmt"

	"github.com/vk/weaver/internal/template"
)

// Project is one buildable unit at one version.
type Project struct {
	Name    string
	Version string
	Spec    Spec

	vars template.Vars
}

// New composes layers into a project and validates its options. vars are the
// statically declared placeholder values; they override values declared by
// the layers. `name` and `version` are always declared.
func New(name, version string, vars template.Vars, layers ...Layer) (*Project, error) {
	p := &Project{
		Name:    name,
		Version: version,
		Spec:    Compose(layers...),
	}
	p.vars = template.Vars(p.Spec.Vars).Merge(vars).Merge(template.Vars{
		"name":    name,
		"version": version,
	})
	for _, o := range p.Spec.Options {
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return p, nil
}

// Vars returns a copy of the declared placeholder values.
func (p *Project) Vars() template.Vars {
	return p.vars.Merge(nil)
}

// SetVar declares or replaces a placeholder value.
func (p *Project) SetVar(name, value string) {
	p.vars[name] = value
}

// option returns a pointer into the spec's options, or nil.
func (p *Project) option(name string) *Option {
	for i := range p.Spec.Options {
		if p.Spec.Options[i].Name == name {
			return &p.Spec.Options[i]
		}
	}
	return nil
}

// Enable switches an option on with value. The value is validated.
func (p *Project) Enable(name, value string) error {
	o := p.option(name)
	if o == nil {
		return fmt.Errorf("%s: unknown option %q", p.Name, name)
	}
	candidate := *o
	candidate.Value = value
	if err := candidate.Validate(); err != nil {
		return fmt.Errorf("%s: %w", p.Name, err)
	}
	candidate.Enabled = true
	*o = candidate
	return nil
}

// Disable switches an option off.
func (p *Project) Disable(name string) error {
	o := p.option(name)
	if o == nil {
		return fmt.Errorf("%s: unknown option %q", p.Name, name)
	}
	o.Enabled = false
	return nil
}

// ActiveConfig returns the enabled options, in declaration order.
func (p *Project) ActiveConfig() []Option {
	var out []Option
	for _, o := range p.Spec.Options {
		if o.Enabled {
			out = append(out, o)
		}
	}
	return out
}

// ConfigureArgs is the composed configure argument list followed by the
// enabled options.
func (p *Project) ConfigureArgs() []string {
	args := append([]string(nil), p.Spec.ConfigureArgs...)
	for _, o := range p.ActiveConfig() {
		args = append(args, o.Arg())
	}
	return args
}

// CheckConflicts verifies, before anything runs, that every enabled option's
// dependencies are enabled and its conflicts are not, and that none of the
// project's declared package conflicts is among enabledPackages.
func (p *Project) CheckConflicts(enabledPackages []string) error {
	pkgs := make(map[string]bool, len(enabledPackages))
	for _, name := range enabledPackages {
		pkgs[name] = true
	}
	enabled := func(r Ref) bool {
		if r.Kind == PackageRef {
			return pkgs[r.Name]
		}
		o := p.option(r.Name)
		return o != nil && o.Enabled
	}

	for _, name := range p.Spec.Conflicts {
		if pkgs[name] {
			return &ConflictError{Project: p.Name, Conflict: name, Kind: PackageRef}
		}
	}
	for _, o := range p.ActiveConfig() {
		for _, dep := range o.Dependencies {
			if !enabled(dep) {
				return &DependencyError{Project: p.Name, Subject: o.Name, Missing: dep.Name, Kind: dep.Kind}
			}
		}
		for _, c := range o.Conflicts {
			if enabled(c) {
				return &ConflictError{Project: p.Name, Subject: o.Name, Conflict: c.Name, Kind: c.Kind}
			}
		}
	}
	return nil
}
