package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bindforge/internal/bindforge"
)

func main() {
	// 1. CONTEXT AND SIGNAL SETUP
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	// Register to receive SIGINT (Ctrl+C) and SIGTERM (kill command)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	// 2. SIGNAL HANDLING GOROUTINE
	// First signal cancels the context so downloads and child processes can
	// clean up partial state; a second signal forces immediate exit.
	go func() {
		<-sigs
		fmt.Fprintln(os.Stderr, "\nInterrupt received, cancelling (press Ctrl+C again to force exit)")
		cancel()
		<-sigs
		fmt.Fprintln(os.Stderr, "\nForced immediate exit.")
		os.Exit(130)
	}()

	os.Exit(bindforge.Run(ctx, os.Args[1:]))
}
