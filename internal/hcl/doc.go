// Package hcl provides the HCL implementation of config.Loader. Files are
// parsed with hclparse, decoded with gohcl into the schema structs of this
// package and translated into the format-agnostic config.Toolchain.
//
// Expressions may reference the process environment through the `env`
// object, e.g. `source_root = "${env.HOME}/src"`.
package hcl
