package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/weaver/internal/config"
	"github.com/vk/weaver/internal/hcl"
	"github.com/vk/weaver/internal/testutil"
	"github.com/vk/weaver/internal/toml"
)

func formats() config.Formats {
	return config.Formats{".hcl": hcl.NewLoader(), ".toml": toml.NewLoader()}
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFormats_MixedFilesMergeInOrder(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	dir := t.TempDir()
	write(t, filepath.Join(dir, "10-base.toml"), "arch = \"x86_64\"\njobs = 4\n")
	write(t, filepath.Join(dir, "20-gcc.hcl"), "arch = \"aarch64\"\ncomponent \"gcc\" {\n  version = \"releases/gcc-14.1.0\"\n}\n")
	write(t, filepath.Join(dir, "README.md"), "ignored")
	extra := filepath.Join(t.TempDir(), "local.toml")
	write(t, extra, "[components.gcc]\nextra_config = [\"--disable-nls\"]\n")

	tc, err := formats().Load(ctx, dir, extra)
	require.NoError(t, err)
	assert.Equal(t, "aarch64", tc.Arch)
	assert.Equal(t, 4, tc.Jobs)
	assert.Equal(t, "releases/gcc-14.1.0", tc.Components["gcc"].Version)
	assert.Equal(t, []string{"--disable-nls"}, tc.Components["gcc"].ExtraConfig)
}

func TestFormats_Errors(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	dir := t.TempDir()

	yml := filepath.Join(dir, "weaver.yaml")
	write(t, yml, "arch: x86_64\n")
	_, err := formats().Load(ctx, yml)
	assert.ErrorIs(t, err, config.ErrUnknownFormat)

	_, err = formats().Load(ctx, filepath.Join(dir, "missing.hcl"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestToolchain_Merge(t *testing.T) {
	base := &config.Toolchain{Arch: "x86_64", Jobs: 2, Log: config.Log{Level: "info"}}
	base.Component("gcc").Version = "releases/gcc-13.2.0"
	base.Component("gmp").Prepare = [][]string{{"./.bootstrap"}}
	base.ArchConfig = []*config.ArchConfig{{Component: "gcc", Arch: "x86_64", Args: []string{"--a"}}}

	over := &config.Toolchain{Org: "acme", Log: config.Log{Format: "json"}}
	over.Component("gcc").Remote = "https://mirror/gcc.git"
	over.Component("gmp").Prepare = [][]string{}
	over.ArchConfig = []*config.ArchConfig{{Component: "gcc", Arch: "x86_64", Args: []string{"--b"}}}

	base.Merge(over)
	base.Merge(nil)

	assert.Equal(t, "x86_64", base.Arch)
	assert.Equal(t, "acme", base.Org)
	assert.Equal(t, 2, base.Jobs)
	assert.Equal(t, config.Log{Level: "info", Format: "json"}, base.Log)
	assert.Equal(t, "releases/gcc-13.2.0", base.Components["gcc"].Version)
	assert.Equal(t, "https://mirror/gcc.git", base.Components["gcc"].Remote)
	assert.Equal(t, map[string][][]string{"gmp": {}}, base.Prepare())
	assert.Equal(t, map[string][]string{"gcc": {"--a", "--b"}}, base.ArchArgs("x86_64"))
	assert.Equal(t, []string{"gcc", "gmp"}, base.ComponentNames())
}
