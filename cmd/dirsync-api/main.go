// Package main is the entry point for the directory sync API server.
package main

import (
	"log/slog"
	"os"

	"github.com/stitchflow-website/dirsync/cmd/dirsync-api/app"
)

func main() {
	// Logs go to stderr so stdout stays clean for commands that print data (e.g. version --format json).
	app.LogLevel.Set(getLogLevel())
	logger, closeLog := newLogger(os.Stderr, app.LogLevel, getLogFile())
	slog.SetDefault(logger)

	slog.Info("Starting directory sync API server")

	err := app.NewRootCmd().Execute()
	if closeErr := closeLog(); closeErr != nil {
		slog.Error("Failed to close log file", "error", closeErr)
	}
	if err != nil {
		os.Exit(1)
	}
}
