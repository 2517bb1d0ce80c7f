// clamdscan talks to a ClamAV daemon over TCP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/DevHatRo/clamd-sdk-go/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := cli.Execute(ctx, os.Args[1:], cli.Env{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	switch {
	case err == nil:
	case errors.Is(err, cli.ErrVirusFound):
		cancel()
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "clamdscan: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
