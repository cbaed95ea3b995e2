// File: cmd/gatescout/main.go
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/nullwave7/gatescout/cmd"
	"github.com/nullwave7/gatescout/internal/observability"
)

const panicLogFile = "panic.log"

const asciiArt = `
    __.--.__       "Every storefront ends
   /  |  |  \       at a checkout."
  |---+--+---|
   \__|__|__/          [ gatescout v1.0 ]
      |  |          +---------------------+
      |  |          | 10 Locale Profiles  |
                    | 26 Provider Brands  |
                    +---------------------+

`

// Define function variables for dependency injection/mocking in tests.
var (
	osWriteFile = os.WriteFile
	// Allows mocking os.Exit in tests.
	osExit = os.Exit
)

// main is the entry point of the application.
func main() {
	defer handlePanic()

	// Set up a context that listens for interrupt signals (SIGINT, SIGTERM) for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// If arguments are passed, execute the command directly and exit.
	if len(os.Args) > 1 {
		if err := cmd.Execute(ctx); err != nil {
			// cmd.Execute handles the logging, we just handle the exit code.
			if errors.Is(err, context.Canceled) {
				osExit(0) // Exit cleanly on graceful shutdown
			} else {
				osExit(1)
			}
		}
		return
	}

	// -- Interactive Mode --
	fmt.Print(asciiArt)
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("gatescout > ")
		if !scanner.Scan() {
			break // Exit on EOF (Ctrl+D)
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if line == "exit" || line == "quit" {
			break
		}

		executeInteractiveCommand(ctx, line)
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "Error reading from stdin:", err)
		osExit(1)
	}

	fmt.Println("Exiting gatescout.")
}

// interactiveArgs turns one shell line into command arguments. Bare URLs are
// shorthand for "analyze <url>" so a pasted storefront address just works.
func interactiveArgs(line string) []string {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	switch args[0] {
	case "analyze", "serve", "help", "completion":
		return args
	}
	if strings.HasPrefix(args[0], "-") {
		return args
	}
	return append([]string{"analyze"}, args...)
}

// executeInteractiveCommand parses and runs the command from the interactive shell.
func executeInteractiveCommand(ctx context.Context, line string) {
	// Create a new, clean command instance for each execution.
	// This is critical for ensuring flags from one command don't leak into the next.
	rootCmd := cmd.NewRootCommand()
	rootCmd.SetArgs(interactiveArgs(line))

	// Execute the command, capturing panics to avoid crashing the interactive session.
	func() {
		defer func() {
			if r := recover(); r != nil {
				fmt.Fprintf(os.Stderr, "Error: Command panicked: %v\n", r)
			}
		}()
		if err := rootCmd.ExecuteContext(ctx); err != nil {
			// In interactive mode, print the error but keep the shell alive.
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}()
}

// handlePanic writes fatal panics to a log file before exiting so crash
// details survive terminal scrollback.
func handlePanic() {
	if r := recover(); r != nil {
		// Ensure logs are flushed before proceeding.
		observability.Sync()

		stackTrace := debug.Stack()
		panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, stackTrace)

		if err := osWriteFile(panicLogFile, []byte(panicMessage), 0644); err != nil {
			// If logging fails, print to stderr as a fallback.
			fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
			fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
			osExit(1)
			return // Return facilitates testing when osExit is mocked.
		}

		fmt.Fprintf(os.Stderr, "\nCRASH DETECTED. Details logged to %s\n", panicLogFile)
		osExit(1)
	}
}
