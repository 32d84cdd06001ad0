package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benzoXdev/bundleobf/internal/cli"
	"github.com/benzoXdev/bundleobf/internal/engine"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Clean exit on Ctrl+C
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
		fmt.Fprintln(os.Stderr, "\nInterrupted.")
		os.Exit(130)
	}()

	start := time.Now()
	if err := cli.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := engine.ErrorHint(err); hint != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		os.Exit(1)
	}
	if os.Getenv("BUNDLEOBF_TIMING") != "" {
		fmt.Fprintf(os.Stderr, "Done in %s\n", time.Since(start).Round(time.Millisecond))
	}
}
