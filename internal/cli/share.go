package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/roomsync/internal/engine"
	"github.com/roach88/roomsync/internal/ledger"
)

// NewShareCommand creates the share command.
func NewShareCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "share <room> <recipient>",
		Short: "Share a room with another identity",
		Long: `Grant another identity read and write access to a room and post a joined
message on their behalf. The recipient links the room on their next sync.

Example:
  roomsync share --as alice --ledger ./ledger.db 3f2a... carol`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return shareRoom(cmd, rootOpts, args[0], ledger.Identity(args[1]))
		},
	}
}

func shareRoom(cmd *cobra.Command, opts *RootOptions, ref string, recipient ledger.Identity) error {
	ctx := cmd.Context()
	f := opts.formatter(cmd)
	c, err := openClient(ctx, opts)
	if err != nil {
		return err
	}
	defer c.Close()

	snap, err := c.sync(ctx)
	if err != nil {
		return f.Fail("sync failed", err)
	}
	r, err := c.findRoom(snap, ref)
	if err != nil {
		return f.Fail("share failed", err)
	}

	res := c.engine.Do(ctx, engine.ShareRequest(r.Path, recipient))
	if res.Err != nil {
		return f.Fail("share failed", res.Err)
	}
	if _, err := c.sync(ctx); err != nil {
		return f.Fail("sync failed", err)
	}

	return f.Success(claimView{
		Action:     "shared",
		Room:       r.ID,
		Path:       res.Path,
		Slot:       res.Slot,
		Collisions: res.Collisions,
		Shared:     []ledger.Identity{recipient},
	})
}
