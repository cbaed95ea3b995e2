// ./main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nullwave7/gatescout/cmd"
)

// main is the non-interactive entry point for the gatescout application.
// The full interactive shell lives in cmd/gatescout.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	if err := cmd.Execute(ctx); err != nil {
		os.Exit(1)
	}
}
