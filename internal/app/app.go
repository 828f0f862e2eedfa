package app

import (
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vk/weaver/internal/config"
	"github.com/vk/weaver/internal/runner"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	loader config.Loader
	runner runner.Runner
	runID  string
}

// NewApp is the constructor for the main application. Every App gets its own
// logger tagged with a fresh run_id. A nil runner means real processes.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader, r runner.Runner) *App {
	if r == nil {
		r = runner.NewExec()
	}
	runID := uuid.NewString()
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW).With("run_id", runID)
	logger.Debug("Logger configured successfully.")

	return &App{
		outW:   outW,
		logger: logger,
		config: appConfig,
		loader: loader,
		runner: r,
		runID:  runID,
	}
}

// RunID identifies this run in logs.
func (a *App) RunID() string {
	return a.runID
}
