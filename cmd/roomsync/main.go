// Command roomsync synchronizes chat rooms with a shared ledger.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/roomsync/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "roomsync:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
