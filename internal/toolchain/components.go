package toolchain

import "strings"

// Component names. gcc-static is built from the gcc repository.
const (
	GMP       = "gmp"
	MPFR      = "mpfr"
	MPC       = "mpc"
	ISL       = "isl"
	Binutils  = "binutils"
	Linux     = "linux"
	GCCStatic = "gcc-static"
	Glibc     = "glibc"
	GCC       = "gcc"
)

// Components lists every stage in build order.
var Components = []string{GMP, MPFR, MPC, ISL, Binutils, Linux, GCCStatic, Glibc, GCC}

// Repositories lists the source repositories, one per versioned input.
var Repositories = []string{GMP, MPFR, MPC, ISL, Binutils, Linux, GCC, Glibc}

// RepoOf returns the repository a component is built from.
func RepoOf(component string) string {
	if component == GCCStatic {
		return GCC
	}
	return component
}

// DefaultRemotes are the upstream git remotes.
var DefaultRemotes = map[string]string{
	GMP:      "https://github.com/gmp-mirror/gmp.git",
	MPFR:     "https://gitlab.inria.fr/mpfr/mpfr.git",
	MPC:      "https://gitlab.inria.fr/mpc/mpc.git",
	ISL:      "https://repo.or.cz/isl.git",
	Binutils: "https://sourceware.org/git/binutils-gdb.git",
	Linux:    "https://git.kernel.org/pub/scm/linux/kernel/git/stable/linux.git",
	GCC:      "https://gcc.gnu.org/git/gcc.git",
	Glibc:    "https://sourceware.org/git/glibc.git",
}

// DefaultPrepare generates the configure script for repositories that do
// not commit one. The commands run inside a fresh checkout before it is
// published.
var DefaultPrepare = map[string][][]string{
	GMP:  {{"./.bootstrap"}},
	MPFR: {{"./autogen.sh"}},
	MPC:  {{"autoreconf", "-i"}},
	ISL:  {{"./autogen.sh"}},
}

// Arches are the architectures the quirk table knows about.
var Arches = []string{"x86", "x86_64", "aarch64", "ppc", "ppc64", "arm", "armhf"}

// ArchConfigs holds extra configure arguments per component and
// architecture. Entries are appended to the generic arguments, never
// substituted for them.
var ArchConfigs = func() map[string]map[string][]string {
	table := make(map[string]map[string][]string)
	for _, c := range []string{GCC, GCCStatic, Binutils, Glibc} {
		table[c] = make(map[string][]string, len(Arches))
		for _, a := range Arches {
			table[c][a] = nil
		}
	}
	return table
}()

// archArgs looks up the quirk arguments for component on arch.
func archArgs(component, arch string) []string {
	return ArchConfigs[component][arch]
}

// kernelArches maps architecture names that differ from the kernel's.
var kernelArches = map[string]string{
	"aarch64": "arm64",
	"x86_64":  "x86",
	"i686":    "x86",
	"armhf":   "arm",
}

// KernelArch returns the kernel source tree's name for arch.
func KernelArch(arch string) string {
	if k, ok := kernelArches[arch]; ok {
		return k
	}
	if strings.HasPrefix(arch, "ppc") || strings.HasPrefix(arch, "powerpc") {
		return "powerpc"
	}
	return arch
}
