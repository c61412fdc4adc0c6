package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AlanZ-Git/HealthDatabase/cmd"
	"github.com/AlanZ-Git/HealthDatabase/internal/buildinfo"
	"github.com/AlanZ-Git/HealthDatabase/internal/config"
)

// Set by the linker, e.g. -ldflags "-X main.version=v1.0.0"
var (
	version   string
	buildDate string
	commit    string
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &config.Context{}
	info := buildinfo.NewContext(version, buildDate, commit)
	err := cmd.RootCommand(app, info).ExecuteContext(ctx)

	if closeErr := app.Close(); closeErr != nil {
		fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", closeErr)
	}
	if err != nil {
		return 1
	}
	return 0
}
