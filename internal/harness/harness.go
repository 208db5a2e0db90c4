package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/roomsync/internal/cache"
	"github.com/roach88/roomsync/internal/clock"
	"github.com/roach88/roomsync/internal/engine"
	"github.com/roach88/roomsync/internal/ledger"
	"github.com/roach88/roomsync/internal/rooms"
	"github.com/roach88/roomsync/internal/testutil"
)

// stepTick is how far the clock moves after every step, so that each
// step's writes carry a distinct timestamp.
const stepTick = time.Second

// Harness is the test execution engine.
// It runs scenarios with a fake clock and sequential correlation ids.
type Harness struct {
	store   *ledger.Store
	clock   *clock.FakeClock
	ids     *testutil.SequentialIDs
	engines map[ledger.Identity]*engine.Engine
	logger  *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs on a fresh ledger in a temporary directory, removed
// before Run returns.
//
// Execution flow:
// 1. Create a fresh ledger and one engine per participant
// 2. Execute flow steps with expect validation
// 3. Sync every participant once more
// 4. Evaluate assertions
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "roomsync-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	fake := clock.Fake(testutil.Epoch)
	st, err := ledger.Open(filepath.Join(dir, "ledger.db"), ledger.WithClock(fake))
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:   st,
		clock:   fake,
		ids:     testutil.NewSequentialIDs(),
		engines: make(map[ledger.Identity]*engine.Engine),
		logger:  slog.Default().With("scenario", scenario.Name),
	}

	profiles := scenarioProfiles(scenario)
	for _, p := range scenario.Participants {
		id := ledger.Identity(p)
		session, err := st.Session(id)
		if err != nil {
			return nil, fmt.Errorf("participant %s: %w", p, err)
		}
		eng, err := engine.New(ctx, session, cache.NewMemoryBlobStore(),
			engine.WithClock(fake),
			engine.WithCorrelationGenerator(h.ids),
			engine.WithProfiles(rooms.NewDirectory(id, profiles...)),
		)
		if err != nil {
			return nil, fmt.Errorf("participant %s: %w", p, err)
		}
		h.engines[id] = eng
	}

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	for _, p := range scenario.Participants {
		id := ledger.Identity(p)
		eng := h.engines[id]
		if _, err := eng.SyncOnce(ctx); err != nil {
			result.AddError(fmt.Sprintf("final sync of %s: %v", p, err))
		}
		result.State[id] = eng.State().Current()
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

func scenarioProfiles(s *Scenario) []rooms.Profile {
	profiles := make([]rooms.Profile, 0, len(s.Participants))
	for _, p := range s.Participants {
		profile := rooms.Profile{Identity: ledger.Identity(p)}
		for _, b := range s.Blocks[p] {
			profile.Blocked = append(profile.Blocked, ledger.Identity(b))
		}
		profiles = append(profiles, profile)
	}
	return profiles
}

// executeFlow runs all flow steps and validates expect clauses. A step
// that fails without an expect clause naming its error fails the scenario
// but does not stop it.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		ev := TraceEvent{Step: i, Actor: ledger.Identity(step.As), Action: step.Do, Room: step.Room}

		if step.Do == ActionAdvance {
			h.clock.Advance(step.By)
			result.AddTrace(ev)
			continue
		}

		eng := h.engines[ledger.Identity(step.As)]
		stepErr := h.execute(ctx, eng, step, result, &ev)
		if stepErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			ev.Error = errorCode(stepErr)
		}
		result.AddTrace(ev)
		h.validate(i, step, ev, stepErr, result)

		h.logger.Debug("flow step completed",
			"step", i,
			"actor", step.As,
			"action", step.Do,
			"error", ev.Error,
		)
		h.clock.Advance(stepTick)
	}
	return nil
}

func (h *Harness) execute(ctx context.Context, eng *engine.Engine, step FlowStep, result *Result, ev *TraceEvent) error {
	if step.Do == ActionSync {
		published, err := eng.SyncOnce(ctx)
		ev.Published = &published
		return err
	}

	// Writers refresh first so the room is known and cursors are current.
	if _, err := eng.SyncOnce(ctx); err != nil {
		return err
	}

	if step.Do == ActionRead {
		_, err := eng.MarkRead(ctx, result.Rooms[step.Room])
		return err
	}

	var res engine.Result
	switch step.Do {
	case ActionCreateRoom:
		res = eng.Do(ctx, engine.CreateRoomRequest(h.ids.Generate()))
		if res.Err == nil {
			result.Rooms[step.Room] = res.Path
		}
	case ActionSend:
		req, err := eng.MessageRequest(result.Rooms[step.Room], step.Text)
		if err != nil {
			return err
		}
		res = eng.Do(ctx, req)
	case ActionShare:
		res = eng.Do(ctx, engine.ShareRequest(result.Rooms[step.Room], ledger.Identity(step.To)))
	}
	if res.Err != nil {
		return res.Err
	}

	slot := res.Slot
	ev.Path = res.Path
	ev.Slot = &slot
	ev.Collisions = res.Collisions
	return nil
}

// validate compares a step's outcome with its expect clause.
func (h *Harness) validate(i int, step FlowStep, ev TraceEvent, stepErr error, result *Result) {
	want := step.Expect
	if want == nil {
		want = &ExpectClause{}
	}

	if ev.Error != want.Error {
		msg := fmt.Sprintf("flow[%d]: %s %s: expected error %q, got %q", i, step.As, step.Do, want.Error, ev.Error)
		if stepErr != nil {
			msg += fmt.Sprintf(" (%v)", stepErr)
		}
		result.AddError(msg)
		return
	}
	if want.Slot != nil && (ev.Slot == nil || *ev.Slot != *want.Slot) {
		result.AddError(fmt.Sprintf("flow[%d]: %s %s: expected slot %d, got %s", i, step.As, step.Do, *want.Slot, formatSlot(ev.Slot)))
	}
	if want.Collisions != nil && ev.Collisions != *want.Collisions {
		result.AddError(fmt.Sprintf("flow[%d]: %s %s: expected %d collisions, got %d", i, step.As, step.Do, *want.Collisions, ev.Collisions))
	}
	if want.Published != nil && (ev.Published == nil || *ev.Published != *want.Published) {
		result.AddError(fmt.Sprintf("flow[%d]: %s %s: expected published=%t", i, step.As, step.Do, *want.Published))
	}
}

func formatSlot(slot *uint32) string {
	if slot == nil {
		return "none"
	}
	return fmt.Sprint(*slot)
}

// errorCode returns the service error code of err, or "ERROR" for anything
// else.
func errorCode(err error) string {
	var se *engine.ServiceError
	if errors.As(err, &se) {
		return string(se.Code)
	}
	return "ERROR"
}
