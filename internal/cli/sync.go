package cli

import (
	"github.com/spf13/cobra"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one synchronization pass and print the inbox",
		Long: `Run a single synchronization pass: link rooms shared with this identity,
discover new rooms and messages, and persist the cache.

Example:
  roomsync sync --as bob --ledger ./ledger.db --cache ./bob-cache.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRooms(cmd, rootOpts)
		},
	}
}

// listRooms syncs and prints the inbox. Shared by sync and room list.
func listRooms(cmd *cobra.Command, opts *RootOptions) error {
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
	return f.Success(newInboxView(snap, c.profiles))
}
