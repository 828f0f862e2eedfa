package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	out := &bytes.Buffer{}
	cfg, shouldExit, err := Parse([]string{
		"-c", "base.hcl", "-config", "local.toml",
		"-j", "16",
		"-gcc-version", "releases/gcc-14.1.0",
		"-version", "glibc=glibc-2.39",
		"-gcc-extra-config", "--disable-nls  --enable-languages=c,c++",
		"-pins", "pins.yaml",
		"-offline",
		"-log-level", "DEBUG",
		"aarch64",
	}, out)
	require.NoError(t, err)
	require.False(t, shouldExit)

	assert.Equal(t, []string{"base.hcl", "local.toml"}, cfg.ConfigPaths)
	assert.Equal(t, "aarch64", cfg.Arch)
	assert.Equal(t, 16, cfg.Jobs)
	assert.Equal(t, map[string]string{"gcc": "releases/gcc-14.1.0", "glibc": "glibc-2.39"}, cfg.Versions)
	assert.Equal(t, map[string][]string{"gcc": {"--disable-nls", "--enable-languages=c,c++"}}, cfg.ExtraConfig)
	assert.Equal(t, "pins.yaml", cfg.PinsPath)
	assert.True(t, cfg.Offline)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Empty(t, cfg.LogFormat, "unset flags leave room for the configuration file")
}

func TestParse_ShouldExit(t *testing.T) {
	for _, args := range [][]string{{"-h"}, {}} {
		out := &bytes.Buffer{}
		cfg, shouldExit, err := Parse(args, out)
		require.NoError(t, err)
		assert.True(t, shouldExit)
		assert.Nil(t, cfg)
		assert.Contains(t, out.String(), "Usage:")
	}
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{name: "unknown flag", args: []string{"-nope"}, wantMsg: "flag provided but not defined"},
		{name: "bad version pair", args: []string{"-version", "gcc", "x86_64"}, wantMsg: "expected <component>=<version>"},
		{name: "unknown component", args: []string{"-version", "llvm=main", "x86_64"}, wantMsg: `unknown component "llvm"`},
		{name: "log format", args: []string{"-log-format", "xml", "x86_64"}, wantMsg: "invalid log-format"},
		{name: "log level", args: []string{"-log-level", "trace", "x86_64"}, wantMsg: "invalid log-level"},
		{name: "two arches", args: []string{"-arch", "x86_64", "aarch64"}, wantMsg: "conflicting architectures"},
		{name: "extra args", args: []string{"x86_64", "aarch64"}, wantMsg: "too many arguments"},
		{name: "negative jobs", args: []string{"-jobs", "-1", "x86_64"}, wantMsg: "jobs must not be negative"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Parse(tc.args, &bytes.Buffer{})
			require.Error(t, err)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.wantMsg)
		})
	}
}
