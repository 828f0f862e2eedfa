// Package app contains the core application logic. It loads the toolchain
// configuration, overlays the command-line settings, resolves versions and
// drives the toolchain build, decoupled from any specific entrypoint.
package app
