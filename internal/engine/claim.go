package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/roomsync/internal/ledger"
)

// claimFunc attempts to write a record at slot.
type claimFunc func(ctx context.Context, slot uint32) (ledger.RecordPath, ledger.Outcome, error)

// claimed is a successful claim.
type claimed struct {
	path       ledger.RecordPath
	slot       uint32
	collisions int
}

// claimSlot runs the claim-or-advance loop under parent.
//
// Before every attempt the cursor is re-read, since discovery may have moved
// it past slots other writers took. The slot tried is the larger of the
// fresh cursor and the previous attempt plus one, so the loop never retries
// a slot it saw occupied. maxAttempts <= 0 means unbounded.
func claimSlot(ctx context.Context, parent ledger.RecordPath, cursor func() uint32, claim claimFunc, maxAttempts int) (claimed, error) {
	var (
		slot uint32
		prev uint32
	)
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return claimed{}, err
		}
		if maxAttempts > 0 && attempt >= maxAttempts {
			return claimed{}, newContendedError(parent, attempt)
		}

		slot = cursor()
		if attempt > 0 && slot <= prev {
			slot = prev + 1
		}

		path, outcome, err := claim(ctx, slot)
		if err != nil {
			return claimed{}, newStoreError("claim slot", parent, err)
		}
		if outcome == ledger.Claimed {
			return claimed{path: path, slot: slot, collisions: attempt}, nil
		}

		slog.Debug("slot occupied, advancing", "parent", parent, "slot", slot)
		prev = slot
	}
}
