package toolchain

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/weaver/internal/buildcfg"
	"github.com/vk/weaver/internal/pipeline"
	"github.com/vk/weaver/internal/project"
	"github.com/vk/weaver/internal/result"
	"github.com/vk/weaver/internal/runner"
	"github.com/vk/weaver/internal/source"
	"github.com/vk/weaver/internal/testutil"
)

func resolvedConfig(t *testing.T, mutate ...func(*buildcfg.Config)) buildcfg.Config {
	t.Helper()
	root := t.TempDir()
	in := buildcfg.Config{
		Arch: "aarch64",
		Host: "x86_64-pc-linux-gnu",
		Jobs: 4,
		Versions: map[string]string{
			GMP: "v6.3.0", MPFR: "4.2.1", MPC: "1.3.1", ISL: "isl-0.26",
			Binutils: "binutils-2_42", Linux: "v6.6", GCC: "releases/gcc-14.1.0", Glibc: "glibc-2.39",
		},
		SourceRoot:  filepath.Join(root, "src"),
		BuildRoot:   filepath.Join(root, "build"),
		InstallRoot: filepath.Join(root, "opt"),
	}
	for _, m := range mutate {
		m(&in)
	}
	cfg, err := buildcfg.Resolve(in)
	require.NoError(t, err)
	return cfg
}

// argValue returns the value of the first KEY=value argument.
func argValue(args []string, key string) string {
	for _, a := range args {
		if v, ok := strings.CutPrefix(a, key+"="); ok {
			return v
		}
	}
	return ""
}

// newFakeToolchain scripts a runner whose kernel header install creates the
// header directory and whose glibc configure fails without it.
func newFakeToolchain(t *testing.T, cfg buildcfg.Config) (*testutil.FakeRunner, *source.Cache) {
	t.Helper()
	fake := testutil.NewFakeRunner()
	fake.On(testutil.HasArg("headers_install"), func(_ context.Context, cmd runner.Cmd) result.Result {
		dir := filepath.Join(argValue(cmd.Args, "INSTALL_HDR_PATH"), "include", "linux")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return result.FromError(cmd.Args, err)
		}
		return result.Result{Args: cmd.Args}
	})
	fake.On(testutil.HasArg("--with-headers="+cfg.Sysroot+"/usr/include"), func(_ context.Context, cmd runner.Cmd) result.Result {
		if _, err := os.Stat(filepath.Join(cfg.Sysroot, "usr", "include", "linux")); err != nil {
			return result.Failure(1, cmd.Args, "configure: error: kernel headers not found")
		}
		return result.Result{Args: cmd.Args}
	})
	(&testutil.FakeGit{}).Install(fake)
	return fake, source.NewCache(cfg.SourceRoot, fake)
}

func TestGraph_Order(t *testing.T) {
	cfg := resolvedConfig(t)
	fake, cache := newFakeToolchain(t, cfg)
	g, err := New(cfg, cache, fake, Options{})
	require.NoError(t, err)

	if diff := cmp.Diff(Components, g.Order()); diff != "" {
		t.Errorf("Order() mismatch (-want +got):\n%s", diff)
	}
	deps, err := g.Catalog().Dependencies(Glibc)
	require.NoError(t, err)
	assert.Equal(t, []string{Binutils, GCCStatic, Linux}, deps)

	rdeps, err := g.Catalog().ReverseDependencies(GMP)
	require.NoError(t, err)
	assert.Equal(t, []string{Binutils, GCC, GCCStatic, ISL, MPC, MPFR}, rdeps)
}

func TestGraph_Run(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	cfg := resolvedConfig(t)
	fake, cache := newFakeToolchain(t, cfg)

	var events []Event
	g, err := New(cfg, cache, fake, Options{Observer: func(e Event) { events = append(events, e) }})
	require.NoError(t, err)

	res := g.Run(ctx)
	require.True(t, res.OK(), res.String())

	t.Run("every stage enters fetch, configure, build, install in order", func(t *testing.T) {
		require.Len(t, events, 4*len(Components))
		for i, e := range events {
			assert.Equal(t, int64(i+1), e.Seq)
			assert.Equal(t, Components[i/4], e.Component)
			assert.Equal(t, []pipeline.Op{OpFetch, pipeline.OpConfigure, pipeline.OpBuild, pipeline.OpInstall}[i%4], e.Op)
		}
	})

	t.Run("kernel headers exist before glibc configures", func(t *testing.T) {
		assert.DirExists(t, filepath.Join(cfg.Sysroot, "usr", "include", "linux"))
		testutil.AssertRanBefore(t, fake, "headers_install", "--with-headers=")
	})

	t.Run("glibc installs before the final compiler configures", func(t *testing.T) {
		testutil.AssertRanBefore(t, fake, "install_root="+cfg.Sysroot, "--enable-threads=posix")
		testutil.AssertRanBefore(t, fake, "install-target-libgcc", "--with-headers=")
	})

	t.Run("sysroot is normalized after glibc", func(t *testing.T) {
		assert.DirExists(t, filepath.Join(cfg.Sysroot, "usr", "lib"))
		link, err := os.Readlink(filepath.Join(cfg.Sysroot, "lib64"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("usr", "lib"), link)
	})

	t.Run("final compiler sees the sysroot headers", func(t *testing.T) {
		link, err := os.Readlink(filepath.Join(cfg.Prefix, cfg.Target, "include"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(cfg.Sysroot, "usr", "include"), link)
	})

	t.Run("static and final gcc share one checkout", func(t *testing.T) {
		assert.Equal(t, 1, fake.Count(testutil.HasArg("--branch", "releases/gcc-14.1.0")))
		static, _ := g.Stage(GCCStatic)
		final, _ := g.Stage(GCC)
		assert.Equal(t, static.Pipeline.SourceDir, final.Pipeline.SourceDir)
		assert.NotEqual(t, static.Pipeline.BuildDir, final.Pipeline.BuildDir)
	})

	t.Run("support libraries run their prepare step", func(t *testing.T) {
		assert.Equal(t, 1, fake.Count(testutil.Argv("./.bootstrap")))
		assert.Equal(t, 1, fake.Count(testutil.Argv("autoreconf", "-i")))
	})
}

func TestGraph_Commands(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	cfg := resolvedConfig(t)
	fake, cache := newFakeToolchain(t, cfg)
	g, err := New(cfg, cache, fake, Options{})
	require.NoError(t, err)
	require.True(t, g.Run(ctx).OK())

	stage, _ := g.Stage(Linux)
	st := stage.Pipeline.State()
	want := []string{"make", "-C", stage.Pipeline.SourceDir, "O=" + stage.Pipeline.BuildDir,
		"ARCH=arm64", "INSTALL_HDR_PATH=" + cfg.Sysroot + "/usr", "headers_install"}
	if diff := cmp.Diff(want, st.Commands[pipeline.OpInstall].Args); diff != "" {
		t.Errorf("kernel install mismatch (-want +got):\n%s", diff)
	}

	stage, _ = g.Stage(GCCStatic)
	st = stage.Pipeline.State()
	assert.Equal(t, []string{"make", "-j4", "all-gcc", "all-target-libgcc"}, st.Commands[pipeline.OpBuild].Args)
	assert.Equal(t, []string{"make", "install-gcc", "install-target-libgcc"}, st.Commands[pipeline.OpInstall].Args)
	assert.Equal(t, cfg.Prefix+"/bin:"+os.Getenv("PATH"), st.Commands[pipeline.OpBuild].Env["PATH"])

	stage, _ = g.Stage(Glibc)
	st = stage.Pipeline.State()
	conf := st.Commands[pipeline.OpConfigure]
	assert.Contains(t, conf.Args, "--enable-kernel=6.6")
	assert.Contains(t, conf.Args, "--host="+cfg.Target)
	assert.Equal(t, cfg.Target+"-gcc", conf.Env["CC"])
	assert.Equal(t, "gcc", conf.Env["BUILD_CC"])

	stage, _ = g.Stage(GCC)
	st = stage.Pipeline.State()
	assert.Equal(t, []string{"make", "AS_FOR_TARGET=" + cfg.Target + "-as", "LD_FOR_TARGET=" + cfg.Target + "-ld", "-j4"},
		st.Commands[pipeline.OpBuild].Args)

	stage, _ = g.Stage(MPFR)
	st = stage.Pipeline.State()
	assert.Equal(t, []string{
		filepath.Join(stage.Pipeline.SourceDir, "configure"),
		"--with-gmp=" + cfg.Prefix, "--disable-static", "--prefix=" + cfg.Prefix,
	}, st.Commands[pipeline.OpConfigure].Args)
	assert.Equal(t, "-Wl,-rpath,"+cfg.Prefix+"/lib", st.Commands[pipeline.OpConfigure].Env["LDFLAGS"])
}

func TestGraph_MergePrecedence(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	saved := ArchConfigs[GCC]["aarch64"]
	ArchConfigs[GCC]["aarch64"] = []string{"--with-arch=armv8-a"}
	t.Cleanup(func() { ArchConfigs[GCC]["aarch64"] = saved })

	cfg := resolvedConfig(t, func(c *buildcfg.Config) {
		c.ExtraConfig = map[string][]string{GCC: {"--enable-lto"}}
		c.ArchConfig = map[string][]string{GCC: {"--with-abi=lp64"}}
	})
	fake, cache := newFakeToolchain(t, cfg)
	g, err := New(cfg, cache, fake, Options{})
	require.NoError(t, err)
	require.True(t, g.Run(ctx).OK())

	stage, _ := g.Stage(GCC)
	args := stage.Pipeline.State().Commands[pipeline.OpConfigure].Args
	require.Greater(t, len(args), 5)
	assert.Equal(t, []string{"--enable-lto", "--with-arch=armv8-a", "--with-abi=lp64", "--prefix=" + cfg.Prefix}, args[1:5])
	assert.Contains(t, args, "--enable-threads=posix", "generic arguments are kept")

	static, _ := g.Stage(GCCStatic)
	assert.NotContains(t, static.Pipeline.State().Commands[pipeline.OpConfigure].Args, "--enable-lto")
}

func TestGraph_FailureAborts(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	cfg := resolvedConfig(t)
	fake, cache := newFakeToolchain(t, cfg)
	binutils := filepath.Join(cfg.BuildRoot, Binutils)
	fake.Fail(testutil.All(testutil.Argv("make", "-j4"), func(c runner.Cmd) bool {
		return strings.HasPrefix(c.Dir, binutils)
	}), 2, "ld: cannot find -lz")

	var events []Event
	g, err := New(cfg, cache, fake, Options{Observer: func(e Event) { events = append(events, e) }})
	require.NoError(t, err)

	res := g.Run(ctx)
	require.True(t, res.Failed())
	assert.Equal(t, 2, res.ExitCode)
	assert.Contains(t, string(res.Stderr), "cannot find -lz")

	last := events[len(events)-1]
	assert.Equal(t, Binutils, last.Component)
	assert.Equal(t, pipeline.OpBuild, last.Op)
	assert.Equal(t, -1, fake.IndexOf("headers_install"))
	assert.Zero(t, fake.Count(testutil.HasArg("--branch", "releases/gcc-14.1.0")))
}

func TestGraph_ConflictBeforeAnyProcess(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	cfg := resolvedConfig(t)
	fake, cache := newFakeToolchain(t, cfg)
	g, err := New(cfg, cache, fake, Options{})
	require.NoError(t, err)

	stage, _ := g.Stage(GCCStatic)
	stage.Pipeline.Project.Spec.Conflicts = []string{Glibc}

	res := g.Run(ctx)
	require.True(t, res.Failed())
	var conflict *project.ConflictError
	require.ErrorAs(t, res.Err, &conflict)
	assert.Equal(t, GCCStatic, conflict.Project)
	assert.Equal(t, Glibc, conflict.Conflict)
	assert.Empty(t, fake.Calls())
}

func TestGraph_Clean(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	cfg := resolvedConfig(t)
	fake, cache := newFakeToolchain(t, cfg)
	g, err := New(cfg, cache, fake, Options{Clean: true})
	require.NoError(t, err)
	require.True(t, g.Run(ctx).OK())

	stage, _ := g.Stage(GMP)
	require.DirExists(t, stage.Pipeline.BuildDir)
	require.True(t, g.Clean(ctx).OK())
	assert.NoDirExists(t, stage.Pipeline.BuildDir)
	assert.DirExists(t, stage.Pipeline.SourceDir, "checkouts are never cleaned")
}

func TestNew_Errors(t *testing.T) {
	cfg := resolvedConfig(t)
	fake, cache := newFakeToolchain(t, cfg)

	_, err := New(buildcfg.Config{}, cache, fake, Options{})
	assert.ErrorContains(t, err, "not resolved")

	missing := cfg
	missing.Versions = map[string]string{GCC: "x"}
	_, err = New(missing, cache, fake, Options{})
	assert.ErrorContains(t, err, "no version for")
}

func TestMinKernel(t *testing.T) {
	tests := []struct{ version, want string }{
		{"v6.6", "6.6"},
		{"v5.10.200", "5.10"},
		{"6.1", "6.1"},
		{testutil.DefaultHead, DefaultMinKernel},
		{"master-ish", DefaultMinKernel},
	}
	for _, tt := range tests {
		g := &Graph{cfg: buildcfg.Config{Versions: map[string]string{Linux: tt.version}}}
		assert.Equal(t, tt.want, g.minKernel(), tt.version)
	}
	g := &Graph{cfg: buildcfg.Config{MinKernel: "4.19"}}
	assert.Equal(t, "4.19", g.minKernel())
}

func TestGraph_X86_64Latest(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	root := t.TempDir()
	sourceRoot := filepath.Join(root, "src")

	resolver := (&testutil.FakeGit{}).Install(testutil.NewFakeRunner())
	versions, res := ResolveVersions(ctx, source.NewCache(sourceRoot, resolver), nil, ResolveOptions{})
	require.True(t, res.OK(), res.String())
	for _, repo := range Repositories {
		assert.Equal(t, testutil.DefaultHead, versions[repo], repo)
	}

	cfg, err := buildcfg.Resolve(buildcfg.Config{
		Arch:        "x86_64",
		Host:        "x86_64-pc-linux-gnu",
		Jobs:        2,
		Versions:    versions,
		SourceRoot:  sourceRoot,
		BuildRoot:   filepath.Join(root, "build"),
		InstallRoot: filepath.Join(root, "opt"),
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Prefix, buildcfg.SysrootDir), cfg.Sysroot)
	fake, cache := newFakeToolchain(t, cfg)

	var events []Event
	seen := map[string]bool{}
	observe := func(e Event) {
		events = append(events, e)
		switch {
		case e.Component == Linux && e.Op == pipeline.OpInstall:
			seen["skeleton before headers"] = dirExists(filepath.Join(cfg.Sysroot, "usr", "include")) &&
				dirExists(filepath.Join(cfg.Sysroot, "usr", "lib"))
		case e.Component == Glibc && e.Op == pipeline.OpConfigure:
			seen["headers before glibc"] = dirExists(filepath.Join(cfg.Sysroot, "usr", "include", "linux"))
		case e.Component == GCC && e.Op == pipeline.OpConfigure:
			_, err := os.Readlink(filepath.Join(cfg.Sysroot, "lib64"))
			seen["glibc sysroot before final gcc"] = err == nil
		}
	}
	g, err := New(cfg, cache, fake, Options{Observer: observe})
	require.NoError(t, err)
	require.True(t, g.Run(ctx).OK())

	var got []string
	for _, e := range events {
		if e.Op == pipeline.OpConfigure {
			got = append(got, e.Component)
		}
	}
	if diff := cmp.Diff(Components, got); diff != "" {
		t.Errorf("stage sequence mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, map[string]bool{
		"skeleton before headers":       true,
		"headers before glibc":          true,
		"glibc sysroot before final gcc": true,
	}, seen)

	assert.Equal(t, 1, fake.Count(testutil.HasArg("ARCH=x86", "INSTALL_HDR_PATH="+cfg.Sysroot+"/usr")))
	testutil.AssertRanBefore(t, fake, "install_root="+cfg.Sysroot, "--enable-threads=posix")
	assert.Equal(t, len(Repositories), fake.Count(testutil.HasArg("fetch", "--depth", testutil.DefaultHead)),
		"every repository is checked out at the resolved commit")
	assert.Contains(t, cfg.Target, "x86_64")
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func TestVersionDir(t *testing.T) {
	assert.NotEqual(t, versionDir("a/b"), versionDir("a_b"))
	assert.NotEqual(t, versionDir("a/b"), versionDir("a%2Fb"))
	assert.Equal(t, "binutils-2_42", versionDir("binutils-2_42"))
}
