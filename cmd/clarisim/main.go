// Command clarisim deploys, calls, tests and analyzes contracts on an
// in-process simulated chain.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/hirosystems/clarinet-sub000/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "clarisim: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
