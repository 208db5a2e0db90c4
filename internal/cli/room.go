package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/roomsync/internal/engine"
	"github.com/roach88/roomsync/internal/ledger"
)

// NewRoomCommand creates the room command group.
func NewRoomCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "room",
		Short: "Create, list and show rooms",
	}
	cmd.AddCommand(newRoomCreateCommand(rootOpts))
	cmd.AddCommand(newRoomListCommand(rootOpts))
	cmd.AddCommand(newRoomShowCommand(rootOpts))
	return cmd
}

func newRoomCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var with []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a room, optionally sharing it",
		Long: `Create a room in the next free slot of this identity's root. With --with,
the room is shared with each recipient and the creator posts a joined
message, which is how a conversation starts.

Example:
  roomsync room create --as alice --ledger ./ledger.db --with bob,carol`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return createRoom(cmd, rootOpts, with)
		},
	}
	cmd.Flags().StringSliceVar(&with, "with", nil, "identities to share the room with")
	return cmd
}

func createRoom(cmd *cobra.Command, opts *RootOptions, with []string) error {
	ctx := cmd.Context()
	f := opts.formatter(cmd)
	c, err := openClient(ctx, opts)
	if err != nil {
		return err
	}
	defer c.Close()

	correlations := opts.Correlations
	if correlations == nil {
		correlations = engine.UUIDv7Generator{}
	}
	id := correlations.Generate()

	res := c.engine.Do(ctx, engine.CreateRoomRequest(id))
	if res.Err != nil {
		return f.Fail("create room failed", res.Err)
	}
	if _, err := c.sync(ctx); err != nil {
		return f.Fail("sync failed", err)
	}

	view := claimView{
		Action:        "created",
		Room:          res.Path.Last(),
		Path:          res.Path,
		Slot:          res.Slot,
		Collisions:    res.Collisions,
		CorrelationID: &id,
	}

	if len(with) > 0 {
		shared, err := startConversation(ctx, c, res.Path, with)
		view.Shared = shared
		if err != nil {
			return f.Fail("share failed", err)
		}
	}
	return f.Success(view)
}

// startConversation shares room with every recipient, then announces the
// creator, mirroring Engine.StartConversation without the running loops.
func startConversation(ctx context.Context, c *client, room ledger.RecordPath, with []string) ([]ledger.Identity, error) {
	var shared []ledger.Identity
	for _, recipient := range with {
		res := c.engine.Do(ctx, engine.ShareRequest(room, ledger.Identity(recipient)))
		if res.Err != nil {
			return shared, res.Err
		}
		shared = append(shared, ledger.Identity(recipient))
	}

	if res := c.engine.Do(ctx, c.engine.JoinedRequest(room)); res.Err != nil {
		return shared, res.Err
	}
	_, err := c.sync(ctx)
	return shared, err
}

func newRoomListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rooms, most recent activity first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRooms(cmd, rootOpts)
		},
	}
}

func newRoomShowCommand(rootOpts *RootOptions) *cobra.Command {
	var peek bool
	cmd := &cobra.Command{
		Use:   "show <room>",
		Short: "Show a room's messages in discovery order",
		Long: `Show a room's messages in discovery order and mark them read, as opening
a room does. Read state is kept in the local cache only.

Example:
  roomsync room show --as alice --ledger ./ledger.db --cache ./alice-cache.db 3f2a...
  roomsync room show --peek --as alice --ledger ./ledger.db 3f2a...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showRoom(cmd, rootOpts, args[0], peek)
		},
	}
	cmd.Flags().BoolVar(&peek, "peek", false, "show the room without marking messages read")
	return cmd
}

func showRoom(cmd *cobra.Command, opts *RootOptions, ref string, peek bool) error {
	f := opts.formatter(cmd)
	c, err := openClient(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer c.Close()

	snap, err := c.sync(cmd.Context())
	if err != nil {
		return f.Fail("sync failed", err)
	}
	r, err := c.findRoom(snap, ref)
	if err != nil {
		return f.Fail("show room failed", err)
	}
	if err := f.Success(newRoomView(r, c.profiles)); err != nil {
		return err
	}

	if peek {
		return nil
	}
	if _, err := c.engine.MarkRead(cmd.Context(), r.Path); err != nil {
		return WrapExitError(ExitFailure, "mark read failed", err)
	}
	return nil
}
