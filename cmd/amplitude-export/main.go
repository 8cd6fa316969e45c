// Package main is the entry point for the amplitude-export command line tool.
// It downloads raw event exports from Amplitude and can load them into SQLite.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	// Export boundaries are UTC hours; keep every timestamp we print in UTC too.
	time.Local = time.UTC

	if err := run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires signal handling around the root command.
func run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newApp(os.Stdout, os.Stderr).command().Run(ctx, args)
}
