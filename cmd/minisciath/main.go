package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"minisciath/internal/cli"
)

// main canonicalizes all CLI inputs into an Invocation before any test runs.
func main() {
	inv, err := cli.ParseInvocation(os.Args[1:])
	if err != nil {
		var invErr *cli.InvocationError
		if errors.As(err, &invErr) {
			fmt.Fprintln(os.Stderr, invErr.Message)
			os.Exit(invErr.ExitCode)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitInternalError)
	}
	inv.Program = os.Args[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, execErr := cli.Execute(ctx, inv, cli.Streams{Out: os.Stdout, Err: os.Stderr})
	if execErr != nil {
		fmt.Fprintln(os.Stderr, execErr)
	}
	stop()
	os.Exit(result.ExitCode)
}
