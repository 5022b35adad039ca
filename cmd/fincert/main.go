// Command fincert downloads the antifraud feeds and the bulletins
// published by FinCERT into local directories.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sufield/fincert/internal/app"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := NewCommandRegistry(VersionInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	})
	registerCommands(registry)

	err := registry.Execute(ctx, os.Args[1:])
	stop()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return app.ExitOK
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, "Error:", err)
		return app.ExitConfig
	default:
		code := app.ExitCode(err)
		fmt.Fprintf(os.Stderr, "Error: %v (exit %d)\n", err, code)
		return code
	}
}
