package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"polyglot/internal/delivery/tui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli := newCLI(os.Stdin, os.Stdout, os.Stderr)
	err := cli.rootCommand().ExecuteContext(ctx)
	cli.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, red("Error:"), tui.DescribeError(err))
		os.Exit(1)
	}
}
