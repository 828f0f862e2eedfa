package toolchain

import (
	"github.com/vk/weaver/internal/pipeline"
	"github.com/vk/weaver/internal/project"
)

// crossPath puts the freshly installed cross tools ahead of the host's.
const crossPath = "${prefix}/bin:${host_path}"

// hostTools declares the host compiler driver names every native-built
// component uses.
var hostTools = project.Layer{Name: "host-tools", Spec: project.Spec{
	Vars: map[string]string{"cc": "gcc", "cxx": "g++", "ld": "ld", "ar": "ar"},
}}

var supportLib = project.Layer{Name: "support-lib", Spec: project.Spec{
	ConfigureArgs: []string{"--disable-static", "--prefix=${prefix}"},
	ConfigureEnv: map[string]string{
		"LDFLAGS": "-Wl,-rpath,${prefix}/lib",
		"CC":      "${cc}",
		"CXX":     "${cxx}",
		"LD":      "${ld}",
	},
}}

func concreteLayer(component string) project.Layer {
	switch component {
	case GMP:
		return project.Layer{Name: GMP, Spec: project.Spec{
			ConfigureArgs: []string{"--enable-cxx"},
		}}
	case MPFR:
		return project.Layer{Name: MPFR, Spec: project.Spec{
			ConfigureArgs: []string{"--with-gmp=${prefix}"},
			Dependencies:  []string{GMP},
		}}
	case MPC:
		return project.Layer{Name: MPC, Spec: project.Spec{
			ConfigureArgs: []string{"--with-gmp=${prefix}", "--with-mpfr=${prefix}"},
			Dependencies:  []string{GMP, MPFR},
		}}
	case ISL:
		return project.Layer{Name: ISL, Spec: project.Spec{
			ConfigureArgs: []string{"--with-gmp-prefix=${prefix}"},
			Dependencies:  []string{GMP},
		}}
	case Binutils:
		return project.Layer{Name: Binutils, Spec: project.Spec{
			ConfigureArgs: []string{
				"--prefix=${prefix}",
				"--host=${host}",
				"--build=${build}",
				"--target=${target}",
				"--with-sysroot=${sysroot}",
				"--with-gmp=${prefix}",
				"--with-mpfr=${prefix}",
				"--with-mpc=${prefix}",
				"--with-isl=${prefix}",
				"--disable-werror",
			},
			ConfigureEnv: map[string]string{
				"LDFLAGS": "-Wl,-rpath,${prefix}/lib",
				"CC":      "${cc}",
				"CXX":     "${cxx}",
				"LD":      "${ld}",
			},
			Dependencies: []string{GMP, MPFR, MPC, ISL},
		}}
	case Linux:
		return project.Layer{Name: Linux, Spec: project.Spec{
			InstallArgs:    []string{"ARCH=${kernel_arch}", "INSTALL_HDR_PATH=${sysroot}/usr"},
			InstallTargets: []string{"headers_install"},
		}}
	case GCCStatic:
		return project.Layer{Name: GCCStatic, Spec: project.Spec{
			ConfigureArgs: []string{
				"--prefix=${prefix}",
				"--target=${target}",
				"--build=${build}",
				"--host=${host}",
				"--with-sysroot=${sysroot}",
				"--with-native-system-header-dir=/usr/include",
				"--without-headers",
				"--with-newlib",
				"--enable-default-pie",
				"--enable-default-ssp",
				"--disable-nls",
				"--disable-shared",
				"--disable-decimal-float",
				"--disable-threads",
				"--disable-libatomic",
				"--disable-libgomp",
				"--disable-libmudflap",
				"--disable-libssp",
				"--disable-libitm",
				"--disable-libsanitizer",
				"--disable-libquadmath",
				"--disable-libstdcxx",
				"--with-gmp=${prefix}",
				"--with-mpfr=${prefix}",
				"--with-mpc=${prefix}",
				"--with-isl=${prefix}",
				"--enable-languages=c",
				"--disable-werror",
			},
			ConfigureEnv: map[string]string{
				"LDFLAGS": "-Wl,-rpath,${prefix}/lib",
				"CC":      "${cc}",
				"CXX":     "${cxx}",
				"LD":      "${ld}",
				"AR":      "${ar}",
				"PATH":    crossPath,
			},
			BuildTargets:   []string{"all-gcc", "all-target-libgcc"},
			BuildEnv:       map[string]string{"PATH": crossPath},
			InstallTargets: []string{"install-gcc", "install-target-libgcc"},
			InstallEnv:     map[string]string{"PATH": crossPath},
			Dependencies:   []string{GMP, MPFR, MPC, ISL, Binutils},
		}}
	case Glibc:
		// install_root makes the libc.so linker script carry sysroot-relative
		// paths (sourceware bug 24183).
		return project.Layer{Name: Glibc, Spec: project.Spec{
			ConfigureArgs: []string{
				"--host=${target}",
				"--build=${build}",
				"--prefix=/usr",
				"--libdir=/usr/lib",
				"--with-headers=${sysroot}/usr/include",
				"--with-binutils=${prefix}/bin",
				"--enable-kernel=${kernel_version}",
				"--enable-shared",
				"--disable-profile",
				"--disable-werror",
			},
			ConfigureEnv: map[string]string{
				"BUILD_CC": "${cc}",
				"CC":       "${target}-gcc",
				"CXX":      "${target}-g++",
				"AR":       "${target}-ar",
				"RANLIB":   "${target}-ranlib",
				"PATH":     crossPath,
			},
			BuildEnv:     map[string]string{"PATH": crossPath},
			InstallArgs:  []string{"install_root=${sysroot}"},
			InstallEnv:   map[string]string{"PATH": crossPath},
			Dependencies: []string{Binutils, Linux, GCCStatic},
		}}
	case GCC:
		return project.Layer{Name: GCC, Spec: project.Spec{
			ConfigureArgs: []string{
				"--prefix=${prefix}",
				"--target=${target}",
				"--host=${host}",
				"--build=${build}",
				"--with-sysroot=${sysroot}",
				"--with-native-system-header-dir=/usr/include",
				"--enable-default-pie",
				"--enable-default-ssp",
				"--enable-languages=c,c++",
				"--enable-threads=posix",
				"--with-mpc=${prefix}",
				"--with-mpfr=${prefix}",
				"--with-gmp=${prefix}",
				"--with-isl=${prefix}",
			},
			ConfigureEnv: map[string]string{
				"AR":      "${ar}",
				"LDFLAGS": "-Wl,-rpath,${prefix}/lib",
				"CC":      "${cc}",
				"CXX":     "${cxx}",
				"PATH":    crossPath,
			},
			BuildArgs:    []string{"AS_FOR_TARGET=${target}-as", "LD_FOR_TARGET=${target}-ld"},
			BuildEnv:     map[string]string{"PATH": crossPath},
			InstallEnv:   map[string]string{"PATH": crossPath},
			Dependencies: []string{GMP, MPFR, MPC, ISL, Binutils, Glibc},
		}}
	}
	return project.Layer{Name: component}
}

// layers returns the composition stack of a component: generic make
// defaults, its category, the component itself, architecture quirks, and
// user extras. Quirks and extras only ever add arguments.
func layers(component, arch string, configQuirks, extras []string) []project.Layer {
	stack := []project.Layer{pipeline.MakeLayer(), hostTools}
	switch component {
	case GMP, MPFR, MPC, ISL:
		stack = append(stack, supportLib)
	}
	stack = append(stack, concreteLayer(component))

	quirks := append(append([]string(nil), archArgs(component, arch)...), configQuirks...)
	if len(quirks) > 0 {
		stack = append(stack, project.Layer{Name: "arch:" + arch, Spec: project.Spec{ConfigureArgs: quirks}})
	}
	if len(extras) > 0 {
		stack = append(stack, project.Layer{Name: "extra", Spec: project.Spec{ConfigureArgs: extras}})
	}
	return stack
}
