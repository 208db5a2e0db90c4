package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewSendCommand creates the send command.
func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "send <room> <text...>",
		Short: "Append a message to a room",
		Long: `Append a message to a room, identified by ID or path. The message lands
in the room's next free slot.

Example:
  roomsync send --as alice --ledger ./ledger.db 3f2a... hello bob`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendMessage(cmd, rootOpts, args[0], strings.Join(args[1:], " "))
		},
	}
}

func sendMessage(cmd *cobra.Command, opts *RootOptions, ref, text string) error {
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
		return f.Fail("send failed", err)
	}

	req, err := c.engine.MessageRequest(r.Path, text)
	if err != nil {
		return f.Fail("send failed", err)
	}
	res := c.engine.Do(ctx, req)
	if res.Err != nil {
		return f.Fail("send failed", res.Err)
	}
	if _, err := c.sync(ctx); err != nil {
		return f.Fail("sync failed", err)
	}

	return f.Success(claimView{
		Action:     "sent",
		Room:       r.ID,
		Path:       res.Path,
		Slot:       res.Slot,
		Collisions: res.Collisions,
	})
}
