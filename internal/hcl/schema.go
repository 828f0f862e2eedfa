package hcl

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes every top-level attribute and block a file may carry.
// Unknown attributes and blocks are rejected by gohcl.
type fileRoot struct {
	Arch        string `hcl:"arch,optional"`
	Org         string `hcl:"org,optional"`
	OS          string `hcl:"os,optional"`
	Host        string `hcl:"host,optional"`
	Build       string `hcl:"build,optional"`
	Jobs        int    `hcl:"jobs,optional"`
	SourceRoot  string `hcl:"source_root,optional"`
	BuildRoot   string `hcl:"build_root,optional"`
	InstallRoot string `hcl:"install_root,optional"`
	MinKernel   string `hcl:"min_kernel,optional"`

	Components []*componentBlock  `hcl:"component,block"`
	ArchConfig []*archConfigBlock `hcl:"arch_config,block"`
	Log        *logBlock          `hcl:"log,block"`
}

// componentBlock is `component "<name>" { ... }`.
type componentBlock struct {
	Name        string   `hcl:"name,label"`
	Version     string   `hcl:"version,optional"`
	Remote      string   `hcl:"remote,optional"`
	ExtraConfig []string `hcl:"extra_config,optional"`
	// Prepare stays an expression so that `prepare = []` can be told apart
	// from an omitted attribute.
	Prepare hcl.Expression `hcl:"prepare,optional"`
}

// archConfigBlock is `arch_config "<component>" "<arch>" { args = [...] }`.
type archConfigBlock struct {
	Component string   `hcl:"component,label"`
	Arch      string   `hcl:"arch,label"`
	Args      []string `hcl:"args"`
}

type logBlock struct {
	Level  string `hcl:"level,optional"`
	Format string `hcl:"format,optional"`
}
