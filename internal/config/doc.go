// Package config defines the format-agnostic model of a toolchain
// configuration file, along with the Loader interface that HCL and TOML
// front-ends implement.
//
// A `config.Toolchain` is only the user's input: versions may still be
// symbolic and roots may be relative. The app package overlays command-line
// flags on it and hands the result to `buildcfg.Resolve`.
package config
