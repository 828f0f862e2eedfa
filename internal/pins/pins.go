// Package pins records the concrete versions a toolchain was resolved to,
// so a later run can rebuild exactly the same thing without consulting the
// remotes for "latest".
package pins

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/vk/weaver/internal/buildcfg"
)

// FormatVersion is the pins file schema version written by this package.
const FormatVersion = 1

// ErrFormat is returned for files with an unsupported schema version.
var ErrFormat = errors.New("unsupported pins format")

// File is the on-disk pins document.
type File struct {
	Version int    `yaml:"version"`
	Target  string `yaml:"target"`
	Hash    string `yaml:"hash"`
	Prefix  string `yaml:"prefix,omitempty"`
	// Components maps repository name to its pin.
	Components map[string]Pin `yaml:"components"`
}

// Pin is the resolved version of one repository.
type Pin struct {
	Version string `yaml:"version"`
	Remote  string `yaml:"remote,omitempty"`
}

// FromConfig captures the versions of a resolved configuration. remotes
// holds the URL each repository was fetched from.
func FromConfig(cfg buildcfg.Config, remotes map[string]string) *File {
	f := &File{
		Version:    FormatVersion,
		Target:     cfg.Target,
		Hash:       cfg.Hash,
		Prefix:     cfg.Prefix,
		Components: make(map[string]Pin, len(cfg.Versions)),
	}
	for name, v := range cfg.Versions {
		f.Components[name] = Pin{Version: v, Remote: remotes[name]}
	}
	return f
}

// Versions returns the pinned version per repository.
func (f *File) Versions() map[string]string {
	out := make(map[string]string, len(f.Components))
	for name, p := range f.Components {
		out[name] = p.Version
	}
	return out
}

// Names returns the pinned repository names, sorted.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Components))
	for name := range f.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Read loads and checks a pins file.
func Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pins file %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse pins file %s: %w", path, err)
	}
	if f.Version != FormatVersion {
		return nil, fmt.Errorf("%s: %w: version %d", path, ErrFormat, f.Version)
	}
	for name, p := range f.Components {
		if p.Version == "" {
			return nil, fmt.Errorf("%s: component %q has no version", path, name)
		}
	}
	return &f, nil
}

// Write stores f at path, replacing any previous file atomically.
func Write(path string, f *File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode pins: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".pins-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
