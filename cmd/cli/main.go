package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vk/weaver/internal/app"
	"github.com/vk/weaver/internal/cli"
	"github.com/vk/weaver/internal/config"
	"github.com/vk/weaver/internal/flock"
	"github.com/vk/weaver/internal/hcl"
	"github.com/vk/weaver/internal/result"
	"github.com/vk/weaver/internal/runner"
	"github.com/vk/weaver/internal/toml"
)

// main is the entrypoint for the weaver application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Args[1:], runner.NewExec())
	stop()
	if err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW io.Writer, args []string, r runner.Runner) error {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	loader := config.Formats{
		".hcl":  hcl.NewLoader(),
		".toml": toml.NewLoader(),
	}
	weaver := app.NewApp(outW, appConfig, loader, r)
	return exitError(weaver.Run(ctx))
}

// exitError maps a run error onto the process exit status: lock contention
// exits with EX_TEMPFAIL, a failed command with its own status.
func exitError(err error) error {
	var failure *result.FailureError
	if err == nil || !errors.As(err, &failure) {
		return err
	}
	code := failure.Result.ExitCode
	if flock.IsContention(failure.Result) {
		code = flock.ExitTempFail
	}
	if code <= 0 || code > 255 {
		code = 1
	}
	return &cli.ExitError{Code: code, Message: err.Error()}
}
