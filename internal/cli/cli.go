package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/weaver/internal/app"
	"github.com/vk/weaver/internal/toolchain"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("weaver", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
weaver - Bootstraps a GNU cross toolchain (binutils, gcc, glibc, kernel headers).

Usage:
  weaver [options] [ARCH]

Arguments:
  ARCH
    Target architecture, e.g. aarch64, x86_64, armhf, ppc64. Same as -arch.

Options:
`)
		flagSet.PrintDefaults()
	}

	var configPaths listFlag
	versions := versionsFlag{}
	flagSet.Var(&configPaths, "config", "Path to a .hcl/.toml file or a directory of them. Repeatable; later files win.")
	flagSet.Var(&configPaths, "c", "Path to a configuration file or directory (shorthand).")
	flagSet.Var(versions, "version", "Pin a component version as <component>=<version>. Repeatable.")

	archFlag := flagSet.String("arch", "", "Target architecture.")
	orgFlag := flagSet.String("org", "", "Vendor field of the target triple (default \"weaver\").")
	osFlag := flagSet.String("os", "", "System field of the target triple (default \"linux-gnu\").")
	hostFlag := flagSet.String("host", "", "Triple of the machine the toolchain will run on.")
	buildFlag := flagSet.String("build", "", "Triple of the machine doing the build.")
	jobsFlag := flagSet.Int("jobs", 0, "Number of parallel make jobs. 0 uses every CPU.")
	jFlag := flagSet.Int("j", 0, "Number of parallel make jobs (shorthand).")
	sourceRootFlag := flagSet.String("source-root", "", "Directory holding mirrors and checkouts (default \""+app.DefaultSourceRoot+"\").")
	buildRootFlag := flagSet.String("build-root", "", "Directory holding build trees (default \""+app.DefaultBuildRoot+"\").")
	installRootFlag := flagSet.String("install-root", "", "Directory the toolchain prefix is created in (default \""+app.DefaultInstallRoot+"\").")
	minKernelFlag := flagSet.String("min-kernel", "", "Oldest kernel the C library must support.")
	pinsFlag := flagSet.String("pins", "", "Read component versions from this pins file.")
	pinsOutFlag := flagSet.String("pins-out", "", "Write the resolved versions to this pins file.")
	resolveOnlyFlag := flagSet.Bool("resolve-only", false, "Resolve versions and print the build identity without building.")
	cleanFlag := flagSet.Bool("clean", false, "Remove each component's build directory before configuring it.")
	offlineFlag := flagSet.Bool("offline", false, "Do not refresh existing mirrors from their remotes.")
	logFormatFlag := flagSet.String("log-format", "", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	perVersion := make(map[string]*string, len(toolchain.Repositories))
	for _, name := range toolchain.Repositories {
		perVersion[name] = flagSet.String(name+"-version", "", fmt.Sprintf("Version of %s: a tag, branch, commit or 'latest'.", name))
	}
	perExtra := make(map[string]*string, len(toolchain.Components))
	for _, name := range toolchain.Components {
		perExtra[name] = flagSet.String(name+"-extra-config", "", fmt.Sprintf("Extra configure arguments for %s, space separated.", name))
	}

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	arch := *archFlag
	switch {
	case flagSet.NArg() > 1:
		return nil, false, &ExitError{Code: 2, Message: "too many arguments: " + strings.Join(flagSet.Args(), " ")}
	case flagSet.NArg() == 1 && arch != "" && arch != flagSet.Arg(0):
		return nil, false, &ExitError{Code: 2, Message: "conflicting architectures: -arch " + arch + " and " + flagSet.Arg(0)}
	case flagSet.NArg() == 1:
		arch = flagSet.Arg(0)
	}

	if arch == "" && len(configPaths) == 0 {
		slog.Debug("No architecture or configuration provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	switch logFormat {
	case "", "text", "json":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	jobs := *jobsFlag
	if *jFlag != 0 {
		jobs = *jFlag
	}

	for name, v := range perVersion {
		if *v != "" {
			versions[name] = *v
		}
	}
	extra := make(map[string][]string)
	for name, v := range perExtra {
		if fields := strings.Fields(*v); len(fields) > 0 {
			extra[name] = fields
		}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		ConfigPaths: configPaths,
		Arch:        arch,
		Org:         *orgFlag,
		OS:          *osFlag,
		Host:        *hostFlag,
		Build:       *buildFlag,
		Jobs:        jobs,
		SourceRoot:  *sourceRootFlag,
		BuildRoot:   *buildRootFlag,
		InstallRoot: *installRootFlag,
		MinKernel:   *minKernelFlag,
		Versions:    versions,
		ExtraConfig: extra,
		PinsPath:    *pinsFlag,
		PinsOut:     *pinsOutFlag,
		ResolveOnly: *resolveOnlyFlag,
		Clean:       *cleanFlag,
		Offline:     *offlineFlag,
		LogFormat:   logFormat,
		LogLevel:    logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "arch", config.Arch, "config_paths", config.ConfigPaths)
	return config, false, nil
}
