package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/roomsync/internal/engine"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the request and sync loops until interrupted",
		Long: `Start the engine for one identity and keep its rooms in sync with the
ledger until interrupted.

Example:
  roomsync run --as alice --ledger ./ledger.db --cache ./alice-cache.db
  roomsync run -c ./roomsync.yaml --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd, rootOpts)
		},
	}
}

func runEngine(cmd *cobra.Command, opts *RootOptions) error {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	c, err := openClient(ctx, opts)
	if err != nil {
		return err
	}
	defer c.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	go watchState(ctx, c.engine.State())

	fmt.Fprintf(cmd.OutOrStdout(), "Engine started as %s. Press Ctrl-C to stop.\n", c.cfg.Identity)

	if err := c.engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "engine error", err)
	}

	slog.Info("engine stopped gracefully")
	return nil
}

// watchState logs every publication until ctx is done.
func watchState(ctx context.Context, state *engine.State) {
	for {
		changed := state.Changed()
		select {
		case <-ctx.Done():
			return
		case <-changed:
			snap := state.Current()
			slog.Info("rooms updated", "seq", snap.Seq, "rooms", len(snap.Rooms))
		}
	}
}
